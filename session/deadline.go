package session

import "container/heap"

// deadlineEntry is one (end, key) pair in the deadline index. Entries are
// never mutated or removed in place; a window whose end changes (via
// extend or merge) simply gets a fresh entry pushed for its new end. The
// stale entry for its old end is discarded lazily when popped.
type deadlineEntry struct {
	end int64
	key string
}

// deadlineHeap is a min-heap ordered by end, with key as a deterministic
// tiebreak so iteration order is reproducible for equal ends.
type deadlineHeap []deadlineEntry

func (h deadlineHeap) Len() int { return len(h) }
func (h deadlineHeap) Less(i, j int) bool {
	if h[i].end != h[j].end {
		return h[i].end < h[j].end
	}
	return h[i].key < h[j].key
}
func (h deadlineHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)   { *h = append(*h, x.(deadlineEntry)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// deadlineIndex is the ordered end -> key mapping the watermark sweep
// drains, implemented as a lazily-deleted min-heap rather than a balanced
// ordered map.
type deadlineIndex struct {
	h deadlineHeap
}

func newDeadlineIndex() *deadlineIndex {
	idx := &deadlineIndex{}
	heap.Init(&idx.h)
	return idx
}

func (d *deadlineIndex) push(key string, end int64) {
	heap.Push(&d.h, deadlineEntry{end: end, key: key})
}

// peek returns the smallest live entry without popping it, or ok=false if
// empty.
func (d *deadlineIndex) peek() (deadlineEntry, bool) {
	if d.h.Len() == 0 {
		return deadlineEntry{}, false
	}
	return d.h[0], true
}

func (d *deadlineIndex) popMin() deadlineEntry {
	return heap.Pop(&d.h).(deadlineEntry)
}

func (d *deadlineIndex) len() int { return d.h.Len() }
