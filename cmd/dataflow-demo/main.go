// Command dataflow-demo drives the session-window operator and the
// sorted aggregator end to end against a small embedded dataset:
// reproducible sample data, no external services beyond a throwaway
// badger directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/dataflow-core/internal/fixture"
	"github.com/wbrown/dataflow-core/primitives"
	"github.com/wbrown/dataflow-core/session"
	"github.com/wbrown/dataflow-core/sorted"
)

func main() {
	var dbPath string
	var spillDir string
	var sessionTimeout int64
	var partitionCount int
	var spillBufferSize int

	flag.StringVar(&dbPath, "db", "dataflow-demo.db", "badger directory for the sample event fixture")
	flag.StringVar(&spillDir, "spill-dir", "", "spill directory for the sorted aggregator (default: a temp dir)")
	flag.Int64Var(&sessionTimeout, "session-timeout", 10, "session gap timeout used by the session-window demo")
	flag.IntVar(&partitionCount, "partitions", 4, "sorted aggregator partition count")
	flag.IntVar(&spillBufferSize, "spill-buffer", 128, "sorted aggregator in-memory buffer in bytes (kept small to force a spill)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs the session-window operator over a small sample event set, then\n")
		fmt.Fprintf(os.Stderr, "feeds its output through the spill-to-disk sorted aggregator.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if spillDir == "" {
		dir, err := os.MkdirTemp("", "dataflow-demo-spill-")
		if err != nil {
			log.Fatalf("creating spill directory: %v", err)
		}
		defer os.RemoveAll(dir)
		spillDir = dir
	}

	store, err := fixture.Open(dbPath)
	if err != nil {
		log.Fatalf("opening event fixture: %v", err)
	}
	defer store.Close()

	if isEmpty(store) {
		fmt.Println("Event fixture is empty, seeding demo data...")
		if err := store.Seed(fixture.DemoEvents()); err != nil {
			log.Fatalf("seeding demo data: %v", err)
		}
	}

	sessions, err := runSessionDemo(store, sessionTimeout)
	if err != nil {
		log.Fatalf("session-window demo: %v", err)
	}
	printSessions(sessions)

	if err := runSortedDemo(sessions, spillDir, partitionCount, spillBufferSize); err != nil {
		log.Fatalf("sorted-aggregator demo: %v", err)
	}
}

func isEmpty(store *fixture.Store) bool {
	any := false
	store.Each(func(fixture.Event) error {
		any = true
		return errStop
	})
	return !any
}

// errStop is a sentinel fixture.Store.Each accepts as "stop iterating";
// it never escapes this file as a reported error.
var errStop = fmt.Errorf("stop")

func runSessionDemo(store *fixture.Store, sessionTimeout int64) ([]session.Session, error) {
	fmt.Println(color.New(color.FgGreen, color.Bold).Sprint("=== Session-Window Demo ==="))

	op, err := session.New(session.Options{
		SessionTimeout: sessionTimeout,
		Timestamp:      func(e any) int64 { return e.(fixture.Event).Timestamp },
		Key:            func(e any) string { return e.(fixture.Event).Key },
		NewAcc:         func() any { var sum int64; return &sum },
		Accumulate: func(acc, e any) {
			p := acc.(*int64)
			*p += e.(fixture.Event).Value
		},
		Combine: func(accA, accB any) {
			a, b := accA.(*int64), accB.(*int64)
			*a += *b
		},
		Finish: func(acc any) any { return *acc.(*int64) },
	})
	if err != nil {
		return nil, fmt.Errorf("constructing session.Operator: %w", err)
	}

	var maxTS int64
	var emitted []session.Session
	const watermarkLag = 20

	err = store.Each(func(e fixture.Event) error {
		op.Accept(e)
		if e.Timestamp > maxTS {
			maxTS = e.Timestamp
		}
		emitted = append(emitted, op.AcceptWatermark(maxTS-watermarkLag)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	emitted = append(emitted, op.Complete()...)
	return emitted, nil
}

func printSessions(sessions []session.Session) {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"key", "start", "end", "sum"})
	for _, s := range sessions {
		table.Append([]string{s.Key, fmt.Sprint(s.Start), fmt.Sprint(s.End), fmt.Sprint(s.Result)})
	}
	table.Render()
	fmt.Println(buf.String())
	fmt.Printf(color.YellowString("%d sessions emitted\n\n"), len(sessions))
}

func runSortedDemo(sessions []session.Session, spillDir string, partitionCount, spillBufferSize int) error {
	fmt.Println(color.New(color.FgGreen, color.Bold).Sprint("=== Sorted-Aggregator Demo ==="))

	agg, err := sorted.New(sorted.Options{
		PartitionCount:     partitionCount,
		SpillingBufferSize: spillBufferSize,
		// Tiny blocks so even the demo's handful of tuples exercises the
		// pool-exhaustion and spill path.
		BlockSize:         64,
		Comparator:        primitives.Bytewise,
		Accumulator:       primitives.IntSumAccumulator(),
		SpillDir:          spillDir,
		SpillingChunkSize: 8,
	})
	if err != nil {
		return fmt.Errorf("constructing sorted.Aggregator: %w", err)
	}
	defer agg.Dispose()

	for _, s := range sessions {
		t := primitives.Tuple{Key: []byte(s.Key), Value: primitives.EncodeInt64(s.Result.(int64))}
		for {
			ok, err := agg.Accept(t)
			if err != nil {
				return fmt.Errorf("accepting tuple: %w", err)
			}
			if ok {
				break
			}
			fmt.Println(color.CyanString("  pool exhausted, spilling..."))
			if err := driveSpill(agg); err != nil {
				return err
			}
		}
	}

	if err := agg.PrepareToSort(); err != nil {
		return fmt.Errorf("preparing to sort: %w", err)
	}
	if err := driveSort(agg); err != nil {
		return err
	}
	cursor, err := agg.Cursor()
	if err != nil {
		return fmt.Errorf("opening cursor: %w", err)
	}
	defer cursor.Close()

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"key", "total"})
	for {
		ok, err := cursor.Advance()
		if err != nil {
			return fmt.Errorf("advancing cursor: %w", err)
		}
		if !ok {
			break
		}
		tup := cursor.Tuple()
		table.Append([]string{string(tup.Key), fmt.Sprint(decodeTotal(tup.Value))})
	}
	table.Render()
	fmt.Println(buf.String())
	return nil
}

func driveSpill(agg *sorted.Aggregator) error {
	if err := agg.StartSpilling(); err != nil {
		return fmt.Errorf("starting spill: %w", err)
	}
	for {
		done, err := agg.SpillNextChunk()
		if err != nil {
			return fmt.Errorf("spilling chunk: %w", err)
		}
		if done {
			return nil
		}
	}
}

func driveSort(agg *sorted.Aggregator) error {
	for {
		done, err := agg.Sort()
		if err != nil {
			return fmt.Errorf("sorting: %w", err)
		}
		if done {
			return nil
		}
	}
}

func decodeTotal(v []byte) int64 {
	var out int64
	for _, b := range v {
		out = out<<8 | int64(b)
	}
	return out
}
