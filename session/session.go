// Package session implements the per-key session-window operator: events
// are grouped into variable-length sessions using event-time watermarks,
// with gap-driven merging and memory bounded by live sessions only.
//
// The operator is single-threaded and cooperative: an external scheduler
// owns the thread and calls Accept/AcceptWatermark/Complete directly; the
// operator owns no goroutines of its own.
package session

import (
	"fmt"

	"github.com/wbrown/dataflow-core/primitives"
)

// Session is one emitted, finished window: (key, start, end, result).
type Session struct {
	Key    string
	Start  int64
	End    int64
	Result any
}

// Options configures an Operator. Every field is required; Options are
// validated once, at New, and never revisited.
type Options struct {
	// SessionTimeout is the gap, in the same units as event timestamps,
	// within which two events of the same key merge into one session.
	SessionTimeout int64

	// Timestamp extracts an event's event-time timestamp.
	Timestamp func(event any) int64

	// Key extracts an event's grouping key.
	Key func(event any) string

	// NewAcc creates a fresh accumulator for a new window.
	NewAcc func() any

	// Accumulate folds one event into an accumulator, in place.
	Accumulate func(acc any, event any)

	// Combine folds accB into accA, in place, when two windows merge.
	Combine func(accA, accB any)

	// Finish converts a finished window's accumulator into its result.
	Finish func(acc any) any
}

func (o Options) validate() error {
	if o.SessionTimeout <= 0 {
		return fmt.Errorf("%w: sessionTimeout must be positive, got %d", primitives.ErrConfiguration, o.SessionTimeout)
	}
	if o.Timestamp == nil || o.Key == nil || o.NewAcc == nil || o.Accumulate == nil || o.Combine == nil || o.Finish == nil {
		return fmt.Errorf("%w: all of Timestamp, Key, NewAcc, Accumulate, Combine, Finish are required", primitives.ErrConfiguration)
	}
	return nil
}

// Operator groups events of the same key into variable-length sessions:
// two events share a session iff no gap between successive events exceeds
// SessionTimeout. It holds no goroutines and does no I/O; it is driven
// entirely by its exported methods.
type Operator struct {
	cfg      Options
	windows  map[string]*windowList
	deadline *deadlineIndex
}

// New builds a session-window Operator, returning a ConfigurationError if
// cfg is incomplete or invalid.
func New(cfg Options) (*Operator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Operator{
		cfg:      cfg,
		windows:  make(map[string]*windowList),
		deadline: newDeadlineIndex(),
	}, nil
}

// Accept ingests one event. It performs at most one window mutation plus
// at most one deadline-index insertion; entries for superseded ends go
// stale in place and are dropped lazily at watermark time.
func (op *Operator) Accept(event any) {
	t := op.cfg.Timestamp(event)
	key := op.cfg.Key(event)
	eventEnd := t + op.cfg.SessionTimeout

	wl := op.windows[key]
	if wl == nil {
		wl = &windowList{}
		op.windows[key] = wl
	}

	j := 0
	for j < wl.len() && wl.starts[j] <= eventEnd {
		if wl.ends[j] < t {
			// Event is after Wj; it cannot reach back into it.
			j++
			continue
		}
		if wl.starts[j] <= t && wl.ends[j] >= eventEnd {
			// Wj already covers the event outright.
			op.cfg.Accumulate(wl.accs[j], event)
			return
		}

		// Wj partially overlaps the event interval. Merge forward any
		// further windows that also overlap once Wj is extended, then
		// extend Wj to cover the event and the merged chain. Deadline
		// entries for merged-away ends go stale in place and are
		// discarded lazily at pop time.
		newStart := min64(wl.starts[j], t)
		newEnd := max64(wl.ends[j], eventEnd)
		for j+1 < wl.len() && wl.starts[j+1] <= newEnd {
			op.cfg.Combine(wl.accs[j], wl.accs[j+1])
			newEnd = max64(newEnd, wl.ends[j+1])
			wl.removeAt(j + 1)
		}

		oldEnd := wl.ends[j]
		wl.starts[j] = newStart
		wl.ends[j] = newEnd
		op.cfg.Accumulate(wl.accs[j], event)
		if oldEnd != newEnd {
			op.deadline.push(key, newEnd)
		}
		return
	}

	// No candidate consumed the event: insert a new window at position j.
	acc := op.cfg.NewAcc()
	wl.insertAt(j, t, eventEnd, acc)
	op.cfg.Accumulate(acc, event)
	op.deadline.push(key, eventEnd)
}

// AcceptWatermark emits every session across every key whose end is
// strictly less than wm; a watermark landing exactly on a window's end
// does not close it. Sessions come out in non-decreasing end order.
func (op *Operator) AcceptWatermark(wm int64) []Session {
	var out []Session
	for {
		top, ok := op.deadline.peek()
		if !ok || top.end >= wm {
			break
		}
		entry := op.deadline.popMin()

		wl, exists := op.windows[entry.key]
		if !exists || wl.len() == 0 || wl.ends[0] != entry.end {
			// Stale: superseded by a merge/extend, or the key's windows
			// were already fully emitted.
			continue
		}

		out = append(out, Session{
			Key:    entry.key,
			Start:  wl.starts[0],
			End:    wl.ends[0],
			Result: op.cfg.Finish(wl.accs[0]),
		})
		wl.removeFront(1)
		if wl.len() == 0 {
			delete(op.windows, entry.key)
		}
	}
	return out
}

// Complete flushes every remaining session, equivalent to
// AcceptWatermark(+Inf).
func (op *Operator) Complete() []Session {
	return op.AcceptWatermark(maxTimestamp)
}

// maxTimestamp stands in for a +Inf watermark: every live window's end is
// strictly less than it, since event timestamps and sessionTimeout are
// ordinary finite int64s.
const maxTimestamp = 1<<63 - 1

// KeyCount returns the number of keys with at least one live window, for
// diagnostics and leak checks in tests.
func (op *Operator) KeyCount() int { return len(op.windows) }

// DeadlineCount returns the number of live entries in the deadline index
// (including lazily-stale ones not yet popped), for diagnostics.
func (op *Operator) DeadlineCount() int { return op.deadline.len() }
