// Package primitives holds the shared, allocation-conscious building blocks
// used by both the session-window operator and the sorted-aggregator core:
// fixed-size memory blocks and their pool, the tuple wire codec, and the
// comparator/accumulator capability tables.
package primitives

import "errors"

// Sentinel errors shared by the session and sorted packages. Callers should
// use errors.Is against these, since both packages wrap them with
// operation-specific detail via fmt.Errorf's %w.
var (
	// ErrInvariantViolation marks a programming error: a method called in
	// the wrong phase. It is fatal and is never recovered internally. The
	// session operator does not check watermarks for monotonicity and
	// never returns it. (A repeated Dispose is not one of
	// these — it is a no-op, and calls after disposal report
	// ErrDisposed.)
	ErrInvariantViolation = errors.New("primitives: invariant violation")

	// ErrConfiguration marks a bad constructor argument (non-positive
	// size, zero partition count, and similar). It is only ever returned
	// from a New* constructor.
	ErrConfiguration = errors.New("primitives: configuration error")

	// ErrBroken marks an operator that suffered an IOFailure on a spill
	// run file (while spilling, or while opening a run for its cursor)
	// and has entered its terminal broken state. Every method but
	// Dispose returns it once set.
	ErrBroken = errors.New("primitives: operator is broken")

	// ErrDisposed marks a method called on an operator after Dispose,
	// other than a second Dispose (which is a no-op).
	ErrDisposed = errors.New("primitives: operator already disposed")
)
