// Package sorted implements the spill-to-disk sorted aggregator: tuples
// are hash-routed into partitions backed by a bounded block pool,
// transparently spilled to disk when the pool is exhausted, and later
// returned through a globally sorted, optionally accumulating cursor.
//
// Like the session package, the aggregator is single-threaded and
// cooperative: every long operation (spill merge, sort) is sliced into
// "…NextChunk()" calls returning a done flag, so an external scheduler
// retains strict back-pressure control with no internal goroutines or
// locks.
package sorted

import (
	"fmt"

	"github.com/wbrown/dataflow-core/primitives"
)

// SortOrder selects ascending or descending cursor order.
type SortOrder uint8

const (
	Ascending SortOrder = iota
	Descending
)

// ChainingRule selects the cursor's merge strategy. Heap always merges
// through a bounded-fanout min-heap; Native additionally takes a direct
// pairwise-comparison shortcut when the live source count is at most two,
// the same ordering produced either way.
type ChainingRule uint8

const (
	Heap ChainingRule = iota
	Native
)

// Options configures a new Aggregator. All fields are required except
// Accumulator, BlockSize, SortOrder, ChainingRule, and UseBigEndian, which
// default to "no accumulator", primitives.DefaultBlockSize, Ascending,
// Heap, and little-endian respectively.
type Options struct {
	// PartitionCount is the number of independent hash partitions.
	PartitionCount int

	// SpillingBufferSize is the total in-memory budget, in bytes, backing
	// the shared block pool. The pool holds SpillingBufferSize/BlockSize
	// fixed-size blocks (at least one).
	SpillingBufferSize int

	// BlockSize is the size of one pool block, defaulting to
	// primitives.DefaultBlockSize if zero.
	BlockSize int

	// Comparator totally orders key bytes.
	Comparator primitives.Comparator

	// Accumulator, if non-nil, combines values sharing a key. If nil,
	// every accepted tuple is retained distinctly.
	Accumulator primitives.Accumulator

	// SpillDir is a writable directory, unique to this aggregator
	// instance, under which partition-<i>/run-<id> files are written.
	SpillDir string

	// SortOrder selects ascending (default) or descending cursor order.
	SortOrder SortOrder

	// SpillingChunkSize bounds the number of records written to disk by
	// a single SpillNextChunk call.
	SpillingChunkSize int

	// UseBigEndian selects the byte order for spill records and for the
	// records held in pool blocks.
	UseBigEndian bool

	// ChainingRule selects the cursor merge strategy.
	ChainingRule ChainingRule
}

func (o Options) validate() error {
	if o.PartitionCount <= 0 {
		return fmt.Errorf("%w: partitionCount must be positive, got %d", primitives.ErrConfiguration, o.PartitionCount)
	}
	if o.SpillingBufferSize <= 0 {
		return fmt.Errorf("%w: spillingBufferSize must be positive, got %d", primitives.ErrConfiguration, o.SpillingBufferSize)
	}
	if o.BlockSize < 0 {
		return fmt.Errorf("%w: blockSize must not be negative, got %d", primitives.ErrConfiguration, o.BlockSize)
	}
	if o.Comparator == nil {
		return fmt.Errorf("%w: comparator is required", primitives.ErrConfiguration)
	}
	if o.SpillDir == "" {
		return fmt.Errorf("%w: spillDir is required", primitives.ErrConfiguration)
	}
	if o.SpillingChunkSize <= 0 {
		return fmt.Errorf("%w: spillingChunkSize must be positive, got %d", primitives.ErrConfiguration, o.SpillingChunkSize)
	}
	return nil
}

func (o Options) blockSize() int {
	if o.BlockSize > 0 {
		return o.BlockSize
	}
	return primitives.DefaultBlockSize
}

func (o Options) blockCount() int {
	n := o.SpillingBufferSize / o.blockSize()
	if n < 1 {
		n = 1
	}
	return n
}

// effectiveComparator applies SortOrder to the configured comparator.
func (o Options) effectiveComparator() primitives.Comparator {
	if o.SortOrder == Descending {
		return primitives.Reversed(o.Comparator)
	}
	return o.Comparator
}
