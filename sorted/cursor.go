package sorted

import (
	"container/heap"
	"encoding/binary"
	"fmt"

	"github.com/wbrown/dataflow-core/primitives"
)

// tupleSource yields tuples in ascending source-local order. Every
// implementation (an in-memory partition, or a run file on disk) is
// pre-positioned at its first record by its constructor.
type tupleSource interface {
	// peek returns the current head record, or ok=false if exhausted.
	peek() (primitives.Tuple, bool)
	// advance discards the head record and loads the next one.
	advance() error
	close() error
}

// partitionSource walks a partition's already-sorted in-memory records.
type partitionSource struct {
	p   *partition
	pos int
}

func newPartitionSource(p *partition) *partitionSource {
	return &partitionSource{p: p}
}

func (s *partitionSource) peek() (primitives.Tuple, bool) {
	if s.pos >= len(s.p.sortedOrder) {
		return primitives.Tuple{}, false
	}
	return s.p.tupleAt(s.p.sortedOrder[s.pos]), true
}

func (s *partitionSource) advance() error {
	s.pos++
	return nil
}

func (s *partitionSource) close() error { return nil }

// runSource walks a sorted run file on disk, one record of lookahead.
type runSource struct {
	r    *runReader
	head primitives.Tuple
	ok   bool
}

// openRunSource opens path and primes the first record.
func openRunSource(path string, order binary.ByteOrder) (*runSource, error) {
	r, err := openRunReader(path, order)
	if err != nil {
		return nil, err
	}
	s := &runSource{r: r}
	if err := s.advance(); err != nil {
		r.close()
		return nil, err
	}
	return s, nil
}

func (s *runSource) peek() (primitives.Tuple, bool) { return s.head, s.ok }

func (s *runSource) advance() error {
	t, ok, err := s.r.next()
	if err != nil {
		return err
	}
	s.head, s.ok = t, ok
	return nil
}

func (s *runSource) close() error { return s.r.close() }

// heapItem pairs a source with its current head record. srcIndex is the
// source's fixed position in Cursor.sources, used as a deterministic
// tiebreak so that two sources yielding comparator-equal keys are always
// ordered the same way regardless of heap push/pop history.
type heapItem struct {
	src      tupleSource
	srcIndex int
	key      primitives.Tuple
}

type sourceHeap struct {
	items []heapItem
	cmp   primitives.Comparator
}

func (h *sourceHeap) Len() int { return len(h.items) }
func (h *sourceHeap) Less(i, j int) bool {
	if c := h.cmp.Compare(h.items[i].key.Key, h.items[j].key.Key); c != 0 {
		return c < 0
	}
	return h.items[i].srcIndex < h.items[j].srcIndex
}
func (h *sourceHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *sourceHeap) Push(x any)    { h.items = append(h.items, x.(heapItem)) }
func (h *sourceHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// Cursor performs the final, guaranteed-complete k-way merge across every
// partition's in-memory sorted records plus any on-disk runs left by
// earlier spill passes. Advance must be called once before the first
// Tuple call, and after every subsequent Tuple call.
type Cursor struct {
	sources []tupleSource
	cmp     primitives.Comparator
	accum   primitives.Accumulator
	rule    ChainingRule

	h       *sourceHeap
	current primitives.Tuple
	done    bool
}

func newCursor(sources []tupleSource, cmp primitives.Comparator, accum primitives.Accumulator, rule ChainingRule) (*Cursor, error) {
	c := &Cursor{sources: sources, cmp: cmp, accum: accum, rule: rule}
	c.h = &sourceHeap{cmp: cmp}
	for i, src := range sources {
		if t, ok := src.peek(); ok {
			heap.Push(c.h, heapItem{src: src, srcIndex: i, key: t})
		}
	}
	return c, nil
}

// Advance loads the next merged, fully combined record. It returns
// ok=false once every source is exhausted.
func (c *Cursor) Advance() (ok bool, err error) {
	if c.rule == Native && c.h.Len() <= 2 {
		return c.advanceNative()
	}
	return c.advanceHeap()
}

func (c *Cursor) advanceHeap() (bool, error) {
	if c.h.Len() == 0 {
		return false, nil
	}
	return c.finishAdvance(heap.Pop(c.h).(heapItem))
}

// advanceNative takes a direct pairwise-comparison shortcut when at most
// two sources remain live, producing the identical total order as
// advanceHeap: a pure optimization, never a semantic change. It operates
// on the heap's own item slice so the heap invariant (and c.h.Len()) stay
// accurate for the next call.
func (c *Cursor) advanceNative() (bool, error) {
	switch c.h.Len() {
	case 0:
		return false, nil
	case 1:
		top := c.h.items[0]
		c.h.items = c.h.items[:0]
		return c.finishAdvance(top)
	default:
		top, other := c.h.items[0], c.h.items[1]
		cmp := c.cmp.Compare(top.key.Key, other.key.Key)
		if cmp > 0 || (cmp == 0 && other.srcIndex < top.srcIndex) {
			top, other = other, top
		}
		c.h.items = c.h.items[:0]
		heap.Push(c.h, other)
		return c.finishAdvance(top)
	}
}

// finishAdvance consumes top's head record, then — when an Accumulator is
// configured — keeps folding equal-keyed records off the heap until the
// head key changes, so every occurrence of a key is combined into one
// result regardless of how many sources (or how many records within one
// run file, for the deferred non-associative path) carry it. Without an
// accumulator every tuple is retained distinctly, even same-keyed ones.
func (c *Cursor) finishAdvance(top heapItem) (bool, error) {
	result := top.key
	if err := c.advanceSource(top.src, top.srcIndex); err != nil {
		return false, err
	}
	for c.accum != nil && c.h.Len() > 0 && c.cmp.Compare(c.h.items[0].key.Key, result.Key) == 0 {
		next := heap.Pop(c.h).(heapItem)
		result = c.combineIfConfigured(result, next.key)
		if err := c.advanceSource(next.src, next.srcIndex); err != nil {
			return false, err
		}
	}
	c.current = result
	return true, nil
}

func (c *Cursor) advanceSource(src tupleSource, srcIndex int) error {
	if err := src.advance(); err != nil {
		return err
	}
	if t, ok := src.peek(); ok {
		heap.Push(c.h, heapItem{src: src, srcIndex: srcIndex, key: t})
	}
	return nil
}

// combineIfConfigured folds b into a when an Accumulator is configured;
// this pass is guaranteed complete (every source is present), so
// combination happens unconditionally regardless of associativity.
func (c *Cursor) combineIfConfigured(a, b primitives.Tuple) primitives.Tuple {
	if c.accum == nil {
		return a
	}
	return primitives.Tuple{Key: a.Key, Value: c.accum.Combine(a.Value, b.Value)}
}

// Tuple returns the record loaded by the most recent successful Advance.
func (c *Cursor) Tuple() primitives.Tuple { return c.current }

// Close releases every underlying source (closing any open run files).
func (c *Cursor) Close() error {
	var first error
	for _, s := range c.sources {
		if err := s.close(); err != nil && first == nil {
			first = fmt.Errorf("sorted: closing cursor source: %w", err)
		}
	}
	return first
}
