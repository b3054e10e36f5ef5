package sorted

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/wbrown/dataflow-core/primitives"
)

// tupleRef locates one encoded tuple record inside a partition's block
// chain.
type tupleRef struct {
	block  int
	offset int
}

// partition is one hash bucket of the aggregator: an ordered chain of
// blocks borrowed from the shared pool, plus a hash index used for
// duplicate-key detection when an accumulator is configured.
type partition struct {
	index int
	order binary.ByteOrder

	blocks []*primitives.Block
	// liveRefs holds one entry per distinct key in arrival order when an
	// accumulator is configured (duplicates are folded via hashIndex),
	// or one entry per acceptance otherwise.
	liveRefs []tupleRef
	// hashIndex maps a key's bytes (as a string) to its index in
	// liveRefs, present only when an accumulator is configured.
	hashIndex map[string]int

	sortedOrder []tupleRef
	sorted      bool

	runPath  string // on-disk run from a previous spill pass, if any
	runID    int    // next monotonic run id to allocate
	spillDir string // directory under which this partition's runs are written
}

func newPartition(index int, order binary.ByteOrder, spillDir string, withAccumulator bool) *partition {
	p := &partition{index: index, order: order, spillDir: spillDir}
	if withAccumulator {
		p.hashIndex = make(map[string]int)
	}
	return p
}

// accept appends t, or combines it into an existing same-key record via
// accum when one exists in this not-yet-spilled partition. ok is false
// only when the pool has no block to lend; the caller must spill and
// retry.
func (p *partition) accept(pool *primitives.Pool, t primitives.Tuple, accum primitives.Accumulator) (ok bool, err error) {
	size := primitives.EncodedSize(t)
	blockSize := pool.BlockSize()
	if size > blockSize {
		return false, fmt.Errorf("sorted: tuple of %d bytes exceeds block size %d", size, blockSize)
	}

	if accum != nil {
		key := string(t.Key)
		if idx, exists := p.hashIndex[key]; exists {
			existing := p.tupleAt(p.liveRefs[idx])
			combined := accum.Combine(existing.Value, t.Value)
			ref, appended := p.append(pool, primitives.Tuple{Key: t.Key, Value: combined})
			if !appended {
				return false, nil
			}
			p.liveRefs[idx] = ref
			return true, nil
		}
		ref, appended := p.append(pool, t)
		if !appended {
			return false, nil
		}
		p.liveRefs = append(p.liveRefs, ref)
		p.hashIndex[key] = len(p.liveRefs) - 1
		return true, nil
	}

	ref, appended := p.append(pool, t)
	if !appended {
		return false, nil
	}
	p.liveRefs = append(p.liveRefs, ref)
	return true, nil
}

// append writes t to the partition's active block, acquiring a new one
// from pool if the active block (or no block yet) cannot hold it.
func (p *partition) append(pool *primitives.Pool, t primitives.Tuple) (tupleRef, bool) {
	size := primitives.EncodedSize(t)

	if len(p.blocks) == 0 {
		b, ok := pool.Acquire()
		if !ok {
			return tupleRef{}, false
		}
		p.blocks = append(p.blocks, b)
	}

	active := p.blocks[len(p.blocks)-1]
	if active.Free() < size {
		b, ok := pool.Acquire()
		if !ok {
			return tupleRef{}, false
		}
		p.blocks = append(p.blocks, b)
		active = b
	}

	buf := make([]byte, size)
	primitives.Encode(p.order, buf, t)
	offset, ok := active.Append(buf)
	if !ok {
		return tupleRef{}, false // unreachable given the Free() check above
	}
	return tupleRef{block: len(p.blocks) - 1, offset: offset}, true
}

func (p *partition) tupleAt(ref tupleRef) primitives.Tuple {
	block := p.blocks[ref.block]
	t, _, _ := primitives.Decode(p.order, block.From(ref.offset))
	return t
}

// sort orders liveRefs by cmp, breaking ties by arrival order so repeated
// sorts of equal data return equal orderings.
func (p *partition) sort(cmp primitives.Comparator) {
	refs := make([]tupleRef, len(p.liveRefs))
	copy(refs, p.liveRefs)
	arrival := make(map[tupleRef]int, len(refs))
	for i, r := range refs {
		arrival[r] = i
	}

	sort.Slice(refs, func(i, j int) bool {
		a, b := p.tupleAt(refs[i]), p.tupleAt(refs[j])
		if c := cmp.Compare(a.Key, b.Key); c != 0 {
			return c < 0
		}
		return arrival[refs[i]] < arrival[refs[j]]
	})

	p.sortedOrder = refs
	p.sorted = true
}

// releaseBlocks returns every block this partition owns to pool and
// clears all in-memory state, leaving the partition empty (its on-disk
// run, if any, is untouched).
func (p *partition) releaseBlocks(pool *primitives.Pool) {
	for _, b := range p.blocks {
		pool.Release(b)
	}
	p.blocks = nil
	p.liveRefs = nil
	p.sortedOrder = nil
	p.sorted = false
	if p.hashIndex != nil {
		p.hashIndex = make(map[string]int)
	}
}

func (p *partition) empty() bool { return len(p.liveRefs) == 0 }
