package fixture

// DemoEvents returns a small, fixed set of sample events spanning several
// keys and session gaps, used by the dataflow-demo command so a run is
// reproducible without external input.
func DemoEvents() []Event {
	return []Event{
		{Key: "alice", Timestamp: 0, Value: 3},
		{Key: "bob", Timestamp: 2, Value: 1},
		{Key: "alice", Timestamp: 6, Value: 4},
		{Key: "bob", Timestamp: 9, Value: 2},
		{Key: "alice", Timestamp: 40, Value: 7},
		{Key: "carol", Timestamp: 12, Value: 5},
		{Key: "bob", Timestamp: 55, Value: 6},
		{Key: "carol", Timestamp: 16, Value: 1},
		{Key: "alice", Timestamp: 44, Value: 2},
		{Key: "carol", Timestamp: 80, Value: 9},
	}
}
