package sorted

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/wbrown/dataflow-core/primitives"
)

// BenchmarkAggregatorReversedInsertSpill stresses the spill path at full
// scale: a large stream inserted in reverse key order that forces
// repeated spill passes through a deliberately small block pool, then a
// full cursor drain verified to come back in ascending lexicographic
// order with every tuple accounted for.
func BenchmarkAggregatorReversedInsertSpill(b *testing.B) {
	sizes := []int{10_000, 100_000, 1_000_000, 10_000_000}

	for _, n := range sizes {
		b.Run(fmt.Sprintf("n_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				dir := b.TempDir()
				a, err := New(Options{
					PartitionCount:     8,
					SpillingBufferSize: 8 << 16,
					BlockSize:          1 << 16,
					Comparator:         primitives.Bytewise,
					SpillDir:           dir,
					SpillingChunkSize:  64,
				})
				if err != nil {
					b.Fatalf("New: %v", err)
				}
				b.StartTimer()

				for k := n - 1; k >= 0; k-- {
					t := tuple(intKey(k), int64(k))
					for {
						ok, err := a.Accept(t)
						if err != nil {
							b.Fatalf("Accept: %v", err)
						}
						if ok {
							break
						}
						if err := benchDriveSpill(a); err != nil {
							b.Fatalf("spill: %v", err)
						}
					}
				}
				if err := benchDriveSort(a); err != nil {
					b.Fatalf("sort: %v", err)
				}
				c, err := a.Cursor()
				if err != nil {
					b.Fatalf("Cursor: %v", err)
				}
				var prev string
				count := 0
				for {
					ok, err := c.Advance()
					if err != nil {
						b.Fatalf("Advance: %v", err)
					}
					if !ok {
						break
					}
					k := string(c.Tuple().Key)
					if count > 0 && k < prev {
						b.Fatalf("cursor regressed from %s to %s at index %d", prev, k, count)
					}
					prev = k
					count++
				}
				c.Close()
				if count != n {
					b.Fatalf("expected %d tuples, got %d", n, count)
				}
				a.Dispose()
			}
		})
	}
}

// BenchmarkAggregatorDuplicateKeys stresses a fixed key space revisited
// by many duplicates, once with an associative accumulator (free to
// combine mid-spill) and once with a non-associative one (never combined
// mid-spill, so combines across spill generations wait for the final
// cursor pass). The drain verifies ascending
// key order and the exact combined value of every key: the sum of the
// duplicate values for the associative run, the last-written value for
// the non-associative one.
func BenchmarkAggregatorDuplicateKeys(b *testing.B) {
	const keys = 1_000_000
	const dups = 10

	accumulators := []struct {
		name string
		acc  primitives.Accumulator
		want int64
	}{
		{"associative", primitives.IntSumAccumulator(), 45}, // 0+1+...+9
		{"non_associative", primitives.LastWriteWinsAccumulator(), 9},
	}

	for _, ac := range accumulators {
		b.Run(ac.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				dir := b.TempDir()
				a, err := New(Options{
					PartitionCount:     16,
					SpillingBufferSize: 16 << 16,
					BlockSize:          1 << 16,
					Comparator:         primitives.Bytewise,
					Accumulator:        ac.acc,
					SpillDir:           dir,
					SpillingChunkSize:  256,
				})
				if err != nil {
					b.Fatalf("New: %v", err)
				}
				b.StartTimer()

				for d := 0; d < dups; d++ {
					for k := 0; k < keys; k++ {
						t := tuple(intKey(k), int64(d))
						for {
							ok, err := a.Accept(t)
							if err != nil {
								b.Fatalf("Accept: %v", err)
							}
							if ok {
								break
							}
							if err := benchDriveSpill(a); err != nil {
								b.Fatalf("spill: %v", err)
							}
						}
					}
				}
				if err := benchDriveSort(a); err != nil {
					b.Fatalf("sort: %v", err)
				}
				c, err := a.Cursor()
				if err != nil {
					b.Fatalf("Cursor: %v", err)
				}
				var prev string
				count := 0
				for {
					ok, err := c.Advance()
					if err != nil {
						b.Fatalf("Advance: %v", err)
					}
					if !ok {
						break
					}
					tup := c.Tuple()
					k := string(tup.Key)
					if count > 0 && k < prev {
						b.Fatalf("cursor regressed from %s to %s at index %d", prev, k, count)
					}
					prev = k
					if v := int64(binary.BigEndian.Uint64(tup.Value)); v != ac.want {
						b.Fatalf("key %s: expected combined value %d, got %d", k, ac.want, v)
					}
					count++
				}
				c.Close()
				if count != keys {
					b.Fatalf("expected %d distinct keys, got %d", keys, count)
				}
				a.Dispose()
			}
		})
	}
}

func benchDriveSpill(a *Aggregator) error {
	if err := a.StartSpilling(); err != nil {
		return err
	}
	for {
		done, err := a.SpillNextChunk()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func benchDriveSort(a *Aggregator) error {
	if err := a.PrepareToSort(); err != nil {
		return err
	}
	for {
		done, err := a.Sort()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
