package primitives

import "encoding/binary"

// Accumulator combines two values sharing the same key into one.
//
// Associative accumulators permit partial combines during spill merges
// (the spill engine may fold two on-disk/in-memory records for the same
// key into one mid-merge). Non-associative accumulators are never
// combined during a spill merge: duplicate-keyed records from different
// spill generations are carried forward unmerged until the final global
// cursor pass, where every instance of a key is present at once. Either
// kind is combined at accept time with an earlier same-key record still
// held in memory by the same partition.
type Accumulator interface {
	// Combine folds incoming into existing and returns the combined
	// value. It must not retain references into either input slice
	// beyond the call (both may be reused block memory).
	Combine(existing, incoming []byte) []byte

	// Associative reports whether Combine may be applied partially,
	// out of full-arrival order, during a spill merge.
	Associative() bool
}

// accumulatorFunc adapts a combine function and an associativity flag to
// Accumulator, mirroring ComparatorFunc.
type accumulatorFunc struct {
	combine func(existing, incoming []byte) []byte
	assoc   bool
}

func (f accumulatorFunc) Combine(existing, incoming []byte) []byte {
	return f.combine(existing, incoming)
}
func (f accumulatorFunc) Associative() bool { return f.assoc }

// NewAccumulator builds an Accumulator from a combine function and an
// associativity flag.
func NewAccumulator(assoc bool, combine func(existing, incoming []byte) []byte) Accumulator {
	return accumulatorFunc{combine: combine, assoc: assoc}
}

// IntSumAccumulator combines two big-endian int64 values by addition.
// It is associative: summation may be carried out in any grouping.
func IntSumAccumulator() Accumulator {
	return NewAccumulator(true, func(existing, incoming []byte) []byte {
		a := decodeInt64(existing)
		b := decodeInt64(incoming)
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, uint64(a+b))
		return out
	})
}

// LastWriteWinsAccumulator keeps whichever value was combined last. It is
// non-associative: which value is "last" depends on full arrival order,
// which a partial spill-merge combine cannot know, so the engine never
// combines it during a spill merge and leaves those combines to the final
// cursor pass. Within one not-yet-spilled partition, where arrival order
// is known, it is combined at accept time.
func LastWriteWinsAccumulator() Accumulator {
	return NewAccumulator(false, func(_, incoming []byte) []byte {
		out := make([]byte, len(incoming))
		copy(out, incoming)
		return out
	})
}

func decodeInt64(b []byte) int64 {
	if len(b) < 8 {
		var padded [8]byte
		copy(padded[8-len(b):], b)
		return int64(binary.BigEndian.Uint64(padded[:]))
	}
	return int64(binary.BigEndian.Uint64(b))
}

// EncodeInt64 encodes v as an 8-byte big-endian value, the format expected
// by IntSumAccumulator.
func EncodeInt64(v int64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(v))
	return out
}
