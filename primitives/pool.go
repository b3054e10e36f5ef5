package primitives

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Pool is a bounded pool of fixed-size blocks — the only source of memory
// for a sorted-aggregator instance. A partition acquires blocks on demand
// and returns them once its contents have been drained (spilled, or
// disposed of).
type Pool struct {
	blockSize int
	free      []*Block
	total     int
}

// NewPool builds a pool of blockCount blocks of blockSize bytes each.
func NewPool(blockCount, blockSize int) (*Pool, error) {
	if blockCount <= 0 {
		return nil, fmt.Errorf("%w: blockCount must be positive, got %d", ErrConfiguration, blockCount)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: blockSize must be positive, got %d", ErrConfiguration, blockSize)
	}

	free := make([]*Block, blockCount)
	for i := range free {
		free[i] = &Block{buf: make([]byte, blockSize)}
	}
	return &Pool{blockSize: blockSize, free: free, total: blockCount}, nil
}

// BlockSize returns the fixed size of every block in the pool.
func (p *Pool) BlockSize() int { return p.blockSize }

// Acquire lends one block from the pool, or returns ok=false if the pool
// is exhausted. A caller that gets ok=false must spill to reclaim blocks
// before retrying; Acquire never blocks.
func (p *Pool) Acquire() (block *Block, ok bool) {
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	b := p.free[n-1]
	p.free = p.free[:n-1]
	return b, true
}

// Release returns a block to the pool, clearing its contents first so the
// next borrower sees an empty block.
func (p *Pool) Release(b *Block) {
	b.reset()
	p.free = append(p.free, b)
}

// PoolStats is a point-in-time snapshot of pool occupancy, used for
// diagnostics and rendered by String.
type PoolStats struct {
	TotalBlocks int
	FreeBlocks  int
	BlockSize   int
}

// Stats snapshots the pool's current occupancy.
func (p *Pool) Stats() PoolStats {
	return PoolStats{TotalBlocks: p.total, FreeBlocks: len(p.free), BlockSize: p.blockSize}
}

// String renders pool occupancy with human-readable byte sizes.
func (s PoolStats) String() string {
	inUse := s.TotalBlocks - s.FreeBlocks
	usedBytes := uint64(inUse) * uint64(s.BlockSize)
	totalBytes := uint64(s.TotalBlocks) * uint64(s.BlockSize)
	return fmt.Sprintf("%d/%d blocks in use (%s of %s)",
		inUse, s.TotalBlocks, humanize.Bytes(usedBytes), humanize.Bytes(totalBytes))
}
