// Package fixture provides a small embedded event source for the
// dataflow-demo command. It is not part of either operator's own state:
// both session.Operator and sorted.Aggregator keep no state outside the
// spill files they manage themselves, and fixture.Store exists purely to
// hand the demo harness a reproducible stream of sample events to feed
// them, the way a real deployment would read from a Kafka topic or a
// change-data-capture log.
package fixture

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Event is one sample event: a key the session operator groups by, an
// event-time timestamp, and an integer value a demo accumulator sums.
type Event struct {
	Key       string
	Timestamp int64
	Value     int64
}

// Store is a disposable badger-backed holding area for demo events,
// replayed in the order they were seeded.
type Store struct {
	db *badger.DB
}

// Open creates or opens a badger database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.MemTableSize = 16 << 20
	opts.ValueThreshold = 1 << 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("fixture: opening badger store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("fixture: closing badger store: %w", err)
	}
	return nil
}

// Seed writes events into the store in one transaction, keyed so a scan
// replays them in the order given (not necessarily sorted by timestamp:
// callers wanting out-of-order replay, e.g. to exercise a watermark,
// pass events already in their desired arrival order and rely on the seq
// component of the key, not the timestamp, for scan order).
func (s *Store) Seed(events []Event) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for i, e := range events {
			key := make([]byte, 16)
			binary.BigEndian.PutUint64(key[0:8], uint64(i))
			binary.BigEndian.PutUint64(key[8:16], uint64(e.Timestamp))
			val := encodeEvent(e)
			if err := txn.Set(key, val); err != nil {
				return fmt.Errorf("fixture: seeding event %d: %w", i, err)
			}
		}
		return nil
	})
}

// Each scans every seeded event in arrival order and calls fn once per
// event. It stops and returns fn's error if fn returns non-nil.
func (s *Store) Each(fn func(Event) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var e Event
			if err := item.Value(func(val []byte) error {
				var decodeErr error
				e, decodeErr = decodeEvent(val)
				return decodeErr
			}); err != nil {
				return fmt.Errorf("fixture: reading event: %w", err)
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeEvent(e Event) []byte {
	buf := make([]byte, 8+8+4+len(e.Key))
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.Timestamp))
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.Value))
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(e.Key)))
	copy(buf[20:], e.Key)
	return buf
}

func decodeEvent(buf []byte) (Event, error) {
	if len(buf) < 20 {
		return Event{}, fmt.Errorf("fixture: truncated event record (%d bytes)", len(buf))
	}
	ts := int64(binary.BigEndian.Uint64(buf[0:8]))
	val := int64(binary.BigEndian.Uint64(buf[8:16]))
	klen := binary.BigEndian.Uint32(buf[16:20])
	if len(buf) < 20+int(klen) {
		return Event{}, fmt.Errorf("fixture: truncated event key (%d bytes)", len(buf))
	}
	key := string(buf[20 : 20+klen])
	return Event{Key: key, Timestamp: ts, Value: val}, nil
}
