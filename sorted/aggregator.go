package sorted

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/wbrown/dataflow-core/primitives"
)

type phase int

const (
	phaseAccepting phase = iota
	phaseSpilling
	phaseSorting
	phaseSorted
	phaseBroken
	phaseDisposed
)

// Aggregator is the external-memory sorted aggregator: a fixed number of
// hash partitions share a bounded block pool, spilling transparently to
// disk when the pool is exhausted, and finally exposed through a single
// globally sorted Cursor.
//
// Like session.Operator, Aggregator owns no goroutines and takes no
// locks. Accept is O(1) amortized; the spill merge and the in-memory sort
// are sliced into steps (SpillNextChunk, Sort) that an external scheduler
// drives to completion; StartSpilling sorts every partition it is about
// to spill within that one call.
type Aggregator struct {
	opts Options
	pool *primitives.Pool
	cmp  primitives.Comparator

	partitions []*partition
	active     []*spillPlan // one per partition, nil where that partition had nothing to spill

	spillCursor int // index of the partition the current spill pass is draining
	sortCursor  int // index of the next partition Sort will advance

	phase phase
}

// New validates cfg and constructs an Aggregator ready to Accept.
func New(cfg Options) (*Aggregator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pool, err := primitives.NewPool(cfg.blockCount(), cfg.blockSize())
	if err != nil {
		return nil, err
	}

	order := primitives.ByteOrderFor(cfg.UseBigEndian)
	partitions := make([]*partition, cfg.PartitionCount)
	for i := range partitions {
		partitions[i] = newPartition(i, order, cfg.SpillDir, cfg.Accumulator != nil)
	}

	return &Aggregator{
		opts:       cfg,
		pool:       pool,
		cmp:        cfg.effectiveComparator(),
		partitions: partitions,
		phase:      phaseAccepting,
	}, nil
}

func (a *Aggregator) partitionFor(key []byte) *partition {
	h := xxhash.Sum64(key)
	idx := int(h % uint64(len(a.partitions)))
	return a.partitions[idx]
}

// Accept routes t to its partition and stores it, combining it with any
// existing same-key record in that partition if an Accumulator is
// configured. ok is false when the pool has no free block left to lend;
// the caller must drive a spill pass (StartSpilling/SpillNextChunk) to
// reclaim blocks and then retry. Accept never blocks.
func (a *Aggregator) Accept(t primitives.Tuple) (ok bool, err error) {
	if err := a.requirePhase(phaseAccepting); err != nil {
		return false, err
	}
	p := a.partitionFor(t.Key)
	ok, err = p.accept(a.pool, t, a.opts.Accumulator)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// StartSpilling transitions from accepting to spilling, sorting every
// non-empty partition and opening a merge plan against its prior on-disk
// run (if any) for each. Call SpillNextChunk repeatedly afterward until
// it reports done.
func (a *Aggregator) StartSpilling() error {
	if err := a.requirePhase(phaseAccepting); err != nil {
		return err
	}
	a.active = make([]*spillPlan, len(a.partitions))
	for i, p := range a.partitions {
		if p.empty() && p.runPath == "" {
			continue
		}
		p.sort(a.cmp)
		plan, err := newSpillPlan(p, primitives.ByteOrderFor(a.opts.UseBigEndian))
		if err != nil {
			a.phase = phaseBroken
			return err
		}
		a.active[i] = plan
	}
	a.spillCursor = 0
	a.phase = phaseSpilling
	return nil
}

// SpillNextChunk writes at most one chunk (SpillingChunkSize records) of
// one partition's merge, draining partitions one at a time in round-robin
// order so the per-call work bound does not grow with the partition
// count. It returns done=true, and transitions back to accepting, once
// every partition's merge has finished and its blocks are returned to the
// pool.
func (a *Aggregator) SpillNextChunk() (done bool, err error) {
	if err := a.requirePhase(phaseSpilling); err != nil {
		return false, err
	}

	for a.spillCursor < len(a.active) {
		plan := a.active[a.spillCursor]
		if plan == nil || plan.done {
			a.spillCursor++
			continue
		}
		if err := plan.step(a.opts.SpillingChunkSize, a.cmp, a.opts.Accumulator); err != nil {
			a.phase = phaseBroken
			return false, err
		}
		if !plan.done {
			return false, nil
		}
		if err := plan.finish(a.pool); err != nil {
			a.phase = phaseBroken
			return false, err
		}
		a.spillCursor++
		// Any further partition's merge starts on the next call, so one
		// call never steps more than one chunk.
		for a.spillCursor < len(a.active) && a.active[a.spillCursor] == nil {
			a.spillCursor++
		}
		if a.spillCursor < len(a.active) {
			return false, nil
		}
	}

	a.active = nil
	a.phase = phaseAccepting
	return true, nil
}

// PrepareToSort transitions from accepting to sorting, after which Accept
// can no longer be called. Call Sort repeatedly afterward until it
// reports done.
func (a *Aggregator) PrepareToSort() error {
	if err := a.requirePhase(phaseAccepting); err != nil {
		return err
	}
	a.sortCursor = 0
	a.phase = phaseSorting
	return nil
}

// Sort advances the in-memory sort of one partition per call, keeping
// each step bounded for the driving scheduler. It returns done=true, and
// transitions to sorted, once every partition has been sorted.
func (a *Aggregator) Sort() (done bool, err error) {
	if err := a.requirePhase(phaseSorting); err != nil {
		return false, err
	}
	if a.sortCursor < len(a.partitions) {
		p := a.partitions[a.sortCursor]
		if !p.sorted {
			p.sort(a.cmp)
		}
		a.sortCursor++
	}
	if a.sortCursor < len(a.partitions) {
		return false, nil
	}
	a.phase = phaseSorted
	return true, nil
}

// Cursor builds the final k-way merge across every partition's sorted
// in-memory records and any on-disk run left from a prior spill pass.
// PrepareToSort and Sort (driven to completion) must be called first. The
// returned Cursor must be closed by the caller once consumed.
func (a *Aggregator) Cursor() (*Cursor, error) {
	if err := a.requirePhase(phaseSorted); err != nil {
		return nil, err
	}
	order := primitives.ByteOrderFor(a.opts.UseBigEndian)
	sources := make([]tupleSource, 0, len(a.partitions)*2)
	for _, p := range a.partitions {
		// The on-disk run (if any) holds strictly older generations of
		// this partition's data than what is still in memory: appending
		// it first gives it the lower srcIndex, so the cursor's
		// equal-key tiebreak processes it before the in-memory data, and
		// a deferred non-associative Combine's final "incoming" is
		// always the most recently accepted value.
		if p.runPath != "" {
			rs, err := openRunSource(p.runPath, order)
			if err != nil {
				a.phase = phaseBroken
				return nil, err
			}
			sources = append(sources, rs)
		}
		sources = append(sources, newPartitionSource(p))
	}
	return newCursor(sources, a.cmp, a.opts.Accumulator, a.opts.ChainingRule)
}

// Dispose releases the block pool and removes this aggregator's spill
// directory. It is idempotent: disposing an already-disposed Aggregator
// is a no-op.
func (a *Aggregator) Dispose() error {
	if a.phase == phaseDisposed {
		return nil
	}
	if a.phase == phaseSpilling {
		// A spill pass may be mid-merge with open run files; close them
		// before the directory they live in is removed, rather than
		// leaving dangling file descriptors for files unlinked out from
		// under them.
		for _, plan := range a.active {
			if plan != nil {
				plan.abort()
			}
		}
		a.active = nil
	}
	for _, p := range a.partitions {
		p.releaseBlocks(a.pool)
	}
	a.phase = phaseDisposed
	return removeSpillDir(a.opts.SpillDir)
}

func (a *Aggregator) requirePhase(want phase) error {
	switch a.phase {
	case phaseDisposed:
		return fmt.Errorf("%w", primitives.ErrDisposed)
	case phaseBroken:
		return fmt.Errorf("%w", primitives.ErrBroken)
	}
	if a.phase != want {
		return fmt.Errorf("%w: operation requires phase %d, got %d", primitives.ErrInvariantViolation, want, a.phase)
	}
	return nil
}
