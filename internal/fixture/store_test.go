package fixture

import "testing"

func TestSeedAndEachRoundTrips(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	events := DemoEvents()
	if err := s.Seed(events); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	var got []Event
	if err := s.Each(func(e Event) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("Each: %v", err)
	}

	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i, e := range got {
		if e != events[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, events[i], e)
		}
	}
}
