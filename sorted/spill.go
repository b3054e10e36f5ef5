package sorted

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/wbrown/dataflow-core/primitives"
)

// spillPlan tracks one partition's progress through a single spill pass:
// writing its current (already sorted) in-memory records merged against
// its prior on-disk run, if any, into a new run file.
type spillPlan struct {
	p *partition

	memPos  int // next index into p.sortedOrder still to emit
	prior   *runSource
	priorT  primitives.Tuple
	priorOK bool

	w       *runWriter
	tmpPath string // in-progress run file, promoted to newPath by finish
	newPath string
	newID   int

	done bool
}

func newSpillPlan(p *partition, order binary.ByteOrder) (*spillPlan, error) {
	if !p.sorted {
		return nil, fmt.Errorf("%w: partition %d spilled before sorting", primitives.ErrInvariantViolation, p.index)
	}
	sp := &spillPlan{p: p}
	if p.runPath != "" {
		src, err := openRunSource(p.runPath, order)
		if err != nil {
			return nil, fmt.Errorf("sorted: opening prior run for partition %d: %w", p.index, err)
		}
		sp.prior = src
		sp.priorT, sp.priorOK = src.peek()
	}

	// The new run is written under a temporary name and only renamed
	// into place by finish, so a run file at its canonical path is always
	// complete.
	newID := p.runID
	path := runPath(p.spillDir, p.index, newID)
	w, err := createRunWriter(path+".tmp", order)
	if err != nil {
		if sp.prior != nil {
			sp.prior.close()
		}
		return nil, err
	}
	sp.w = w
	sp.tmpPath = path + ".tmp"
	sp.newPath = path
	sp.newID = newID
	return sp, nil
}

// step merges up to chunkSize records from the in-memory sorted slice and
// the prior on-disk run (if any) into the new run file, combining
// same-key duplicates across the two sources only when accum is
// associative: a non-associative accumulator must not combine at spill
// time, since this merge may not see every occurrence of a key (more
// could still arrive before the final pass).
func (sp *spillPlan) step(chunkSize int, cmp primitives.Comparator, accum primitives.Accumulator) error {
	written := 0
	for written < chunkSize {
		memOK := sp.memPos < len(sp.p.sortedOrder)
		if !memOK && !sp.priorOK {
			sp.done = true
			return nil
		}

		var memT primitives.Tuple
		if memOK {
			memT = sp.p.tupleAt(sp.p.sortedOrder[sp.memPos])
		}

		switch {
		case memOK && sp.priorOK:
			c := cmp.Compare(memT.Key, sp.priorT.Key)
			switch {
			case c < 0:
				if err := sp.w.write(memT); err != nil {
					return err
				}
				sp.memPos++
			case c > 0:
				if err := sp.w.write(sp.priorT); err != nil {
					return err
				}
				if err := sp.advancePrior(); err != nil {
					return err
				}
			default:
				if accum != nil && accum.Associative() {
					combined := primitives.Tuple{Key: memT.Key, Value: accum.Combine(sp.priorT.Value, memT.Value)}
					if err := sp.w.write(combined); err != nil {
						return err
					}
					sp.memPos++
					if err := sp.advancePrior(); err != nil {
						return err
					}
				} else {
					// Both records are preserved for the final cursor
					// pass: emit the older on-disk record now and leave
					// the in-memory one for a later iteration, so each
					// iteration still writes exactly one record and the
					// call never exceeds its chunk budget.
					if err := sp.w.write(sp.priorT); err != nil {
						return err
					}
					if err := sp.advancePrior(); err != nil {
						return err
					}
				}
			}
		case memOK:
			if err := sp.w.write(memT); err != nil {
				return err
			}
			sp.memPos++
		default:
			if err := sp.w.write(sp.priorT); err != nil {
				return err
			}
			if err := sp.advancePrior(); err != nil {
				return err
			}
		}
		written++
	}
	return nil
}

func (sp *spillPlan) advancePrior() error {
	if err := sp.prior.advance(); err != nil {
		return err
	}
	sp.priorT, sp.priorOK = sp.prior.peek()
	return nil
}

// abort closes this plan's open file handles without promoting the new
// (partial) run file into place, for use when the aggregator is disposed
// mid-spill. The partial file itself is removed along with the rest of
// the spill directory by Aggregator.Dispose.
func (sp *spillPlan) abort() {
	if sp.done {
		return
	}
	if sp.w != nil {
		sp.w.close()
	}
	if sp.prior != nil {
		sp.prior.close()
	}
}

// finish closes the new run file, renames it atomically to its canonical
// run path, closes the prior source (if any), removes the superseded
// prior run from disk, and leaves the partition pointing at the new run
// with its in-memory state cleared.
func (sp *spillPlan) finish(pool *primitives.Pool) error {
	if err := sp.w.close(); err != nil {
		return err
	}
	if err := os.Rename(sp.tmpPath, sp.newPath); err != nil {
		return fmt.Errorf("sorted: promoting run %s: %w", sp.newPath, err)
	}
	oldPath := ""
	if sp.prior != nil {
		oldPath = sp.prior.r.path
		if err := sp.prior.close(); err != nil {
			return err
		}
	}

	sp.p.releaseBlocks(pool)
	sp.p.runPath = sp.newPath
	sp.p.runID = sp.newID + 1

	if oldPath != "" {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("sorted: removing superseded run %s: %w", oldPath, err)
		}
	}
	return nil
}
