package session

import (
	"testing"
)

type event struct {
	key string
	ts  int64
}

func sumOptions(timeout int64) Options {
	return Options{
		SessionTimeout: timeout,
		Timestamp:      func(e any) int64 { return e.(event).ts },
		Key:            func(e any) string { return e.(event).key },
		NewAcc:         func() any { return new(int) },
		Accumulate: func(acc any, e any) {
			p := acc.(*int)
			*p++
		},
		Combine: func(accA, accB any) {
			a, b := accA.(*int), accB.(*int)
			*a += *b
		},
		Finish: func(acc any) any { return *acc.(*int) },
	}
}

func TestCloseEventsShareOneSession(t *testing.T) {
	op, err := New(sumOptions(10))
	if err != nil {
		t.Fatal(err)
	}
	op.Accept(event{"a", 1})
	op.Accept(event{"a", 5})
	out := op.AcceptWatermark(100)
	if len(out) != 1 {
		t.Fatalf("expected 1 session, got %d: %+v", len(out), out)
	}
	s := out[0]
	if s.Start != 1 || s.End != 15 || s.Result != 2 {
		t.Fatalf("expected [1,15) result=2, got %+v", s)
	}
}

func TestDistantEventsSplitSessions(t *testing.T) {
	op, err := New(sumOptions(10))
	if err != nil {
		t.Fatal(err)
	}
	op.Accept(event{"a", 1})
	op.Accept(event{"a", 20})
	out := op.AcceptWatermark(100)
	if len(out) != 2 {
		t.Fatalf("expected 2 sessions, got %d: %+v", len(out), out)
	}
	if out[0].Start != 1 || out[0].End != 11 {
		t.Fatalf("expected first [1,11), got %+v", out[0])
	}
	if out[1].Start != 20 || out[1].End != 30 {
		t.Fatalf("expected second [20,30), got %+v", out[1])
	}
}

// TestOutOfOrderMiddleEventStaysSeparate feeds an event that lands
// between two already-seen events. Every pairwise gap among {1, 30, 15}
// exceeds the 10-unit sessionTimeout (29, 14, and 15 respectively), so no
// two of the three events may share a session: the middle event opens its
// own window rather than bridging its neighbors into one.
func TestOutOfOrderMiddleEventStaysSeparate(t *testing.T) {
	op, err := New(sumOptions(10))
	if err != nil {
		t.Fatal(err)
	}
	op.Accept(event{"a", 1})
	op.Accept(event{"a", 30})
	op.Accept(event{"a", 15})
	out := op.AcceptWatermark(100)

	want := []Session{
		{Key: "a", Start: 1, End: 11, Result: 1},
		{Key: "a", Start: 15, End: 25, Result: 1},
		{Key: "a", Start: 30, End: 40, Result: 1},
	}
	if len(out) != len(want) {
		t.Fatalf("expected %d sessions, got %d: %+v", len(want), len(out), out)
	}
	for i, s := range out {
		if s != want[i] {
			t.Fatalf("session %d: expected %+v, got %+v", i, want[i], s)
		}
	}
}

func TestWatermarkBeforeAnyEventYieldsNothing(t *testing.T) {
	op, err := New(sumOptions(10))
	if err != nil {
		t.Fatal(err)
	}
	out := op.AcceptWatermark(100)
	if len(out) != 0 {
		t.Fatalf("expected no output, got %+v", out)
	}
	if op.KeyCount() != 0 || op.DeadlineCount() != 0 {
		t.Fatalf("expected no state, got keys=%d deadlines=%d", op.KeyCount(), op.DeadlineCount())
	}
}

// TestEmissionNeverRegressesInEnd checks that emitted sessions across
// repeated watermarks never regress in end.
func TestEmissionNeverRegressesInEnd(t *testing.T) {
	op, err := New(sumOptions(5))
	if err != nil {
		t.Fatal(err)
	}
	op.Accept(event{"a", 1})
	op.Accept(event{"b", 2})
	op.Accept(event{"a", 100})
	op.Accept(event{"b", 200})

	var lastEnd int64 = -1
	for _, wm := range []int64{10, 50, 110, 300} {
		for _, s := range op.AcceptWatermark(wm) {
			if s.End < lastEnd {
				t.Fatalf("non-monotone emission: %+v after end %d", s, lastEnd)
			}
			lastEnd = s.End
		}
	}
}

// TestGapBoundarySemantics checks that every accepted event lands in
// exactly one session covering its timestamp, and that sessions split
// exactly at the sessionTimeout boundary.
func TestGapBoundarySemantics(t *testing.T) {
	timeout := int64(10)
	op, err := New(sumOptions(timeout))
	if err != nil {
		t.Fatal(err)
	}
	// Gap exactly at the boundary merges ("any tighter gap merges").
	op.Accept(event{"a", 0})
	op.Accept(event{"a", 10})
	// Gap one past the boundary separates ("any looser gap separates").
	op.Accept(event{"b", 0})
	op.Accept(event{"b", 11})

	out := op.Complete()
	var aSessions, bSessions []Session
	for _, s := range out {
		switch s.Key {
		case "a":
			aSessions = append(aSessions, s)
		case "b":
			bSessions = append(bSessions, s)
		}
	}
	if len(aSessions) != 1 {
		t.Fatalf("expected key a to merge into one session, got %+v", aSessions)
	}
	if aSessions[0].Start != 0 || aSessions[0].End != 20 {
		t.Fatalf("expected a session [0,20), got %+v", aSessions[0])
	}
	if len(bSessions) != 2 {
		t.Fatalf("expected key b to split into two sessions, got %+v", bSessions)
	}
}

func TestNoStateLeaksAfterComplete(t *testing.T) {
	op, err := New(sumOptions(10))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		op.Accept(event{"k", int64(i * 100)})
	}
	op.Complete()
	if op.KeyCount() != 0 {
		t.Fatalf("expected empty key map, got %d", op.KeyCount())
	}
	if op.DeadlineCount() != 0 {
		t.Fatalf("expected empty deadline index, got %d", op.DeadlineCount())
	}
}

func TestWatermarkIdempotentAtSameTimestamp(t *testing.T) {
	op, err := New(sumOptions(10))
	if err != nil {
		t.Fatal(err)
	}
	op.Accept(event{"a", 1})
	first := op.AcceptWatermark(5)
	if len(first) != 0 {
		t.Fatalf("watermark before any end should emit nothing, got %+v", first)
	}
	second := op.AcceptWatermark(5)
	if len(second) != 0 {
		t.Fatalf("repeated non-advancing watermark must be idempotent, got %+v", second)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected configuration error for zero-value Options")
	}
	opts := sumOptions(0)
	if _, err := New(opts); err == nil {
		t.Fatal("expected configuration error for non-positive sessionTimeout")
	}
}
