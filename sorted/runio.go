package sorted

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wbrown/dataflow-core/primitives"
)

// runPath builds the canonical run file path,
// "<spillDir>/partition-<i>/run-<monotonic-id>".
func runPath(spillDir string, partitionIdx, runID int) string {
	return filepath.Join(spillDir, fmt.Sprintf("partition-%d", partitionIdx), fmt.Sprintf("run-%d", runID))
}

// runWriter appends encoded tuple records to a spill file: a flat
// sequence of "u32 keyLen, keyLen bytes, u32 valueLen, valueLen bytes"
// records, no header, no checksum. Runs are transient and consumed only
// by the process that wrote them.
type runWriter struct {
	f     *os.File
	w     *bufio.Writer
	order binary.ByteOrder
	path  string
}

func createRunWriter(path string, order binary.ByteOrder) (*runWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sorted: creating spill directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sorted: creating run file %s: %w", path, err)
	}
	return &runWriter{f: f, w: bufio.NewWriter(f), order: order, path: path}, nil
}

func (w *runWriter) write(t primitives.Tuple) error {
	buf := make([]byte, primitives.EncodedSize(t))
	primitives.Encode(w.order, buf, t)
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("sorted: writing run file %s: %w", w.path, err)
	}
	return nil
}

func (w *runWriter) close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("sorted: flushing run file %s: %w", w.path, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("sorted: closing run file %s: %w", w.path, err)
	}
	return nil
}

// runReader sequentially decodes records from a spill file, used both by
// the spill merge step (reading a prior pass's run) and by the cursor.
type runReader struct {
	f     *os.File
	r     *bufio.Reader
	order binary.ByteOrder
	path  string
}

func openRunReader(path string, order binary.ByteOrder) (*runReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sorted: opening run file %s: %w", path, err)
	}
	return &runReader{f: f, r: bufio.NewReader(f), order: order, path: path}, nil
}

// next reads the next record, returning ok=false at a clean EOF.
func (r *runReader) next() (primitives.Tuple, bool, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return primitives.Tuple{}, false, nil
		}
		return primitives.Tuple{}, false, fmt.Errorf("sorted: reading run file %s: %w", r.path, err)
	}
	klen := r.order.Uint32(lenBuf[:])
	key := make([]byte, klen)
	if _, err := io.ReadFull(r.r, key); err != nil {
		return primitives.Tuple{}, false, fmt.Errorf("sorted: reading run file %s: %w", r.path, err)
	}

	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		return primitives.Tuple{}, false, fmt.Errorf("sorted: reading run file %s: %w", r.path, err)
	}
	vlen := r.order.Uint32(lenBuf[:])
	val := make([]byte, vlen)
	if _, err := io.ReadFull(r.r, val); err != nil {
		return primitives.Tuple{}, false, fmt.Errorf("sorted: reading run file %s: %w", r.path, err)
	}

	return primitives.Tuple{Key: key, Value: val}, true, nil
}

func (r *runReader) close() error {
	return r.f.Close()
}

// removeSpillDir best-effort removes an aggregator's entire spill
// directory tree on disposal.
func removeSpillDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("sorted: removing spill directory %s: %w", dir, err)
	}
	return nil
}
