// Package csvlog provides the CSV file implementation of store.Log.
//
// The file starts with a header row written once on creation; every Append
// adds exactly one comma-separated row with a single write call.
package csvlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Zerofisher/icmpwatch/pkg/model"
	"github.com/Zerofisher/icmpwatch/pkg/store"
)

// tailBlock is the initial read size when scanning backwards for rows.
const tailBlock = 8 << 10

// Log is an append-only CSV metric log.
type Log struct {
	path string

	mu   sync.Mutex
	file *os.File
}

var _ store.Log = (*Log)(nil)

// New returns a log backed by the file at path. The file is not touched
// until the first Append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one record. The header is prepended when the file is empty.
func (l *Log) Append(ctx context.Context, rec model.FeatureRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if l.file == nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		l.file = f
	}

	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}
	if info.Size() == 0 {
		if err := w.Write(model.Columns); err != nil {
			return err
		}
	}
	if err := w.Write(rec.Fields()); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if _, err := l.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// Tail returns up to n most recent rows, oldest first.
// A row still being written (no trailing newline yet) is not returned.
func (l *Log) Tail(ctx context.Context, n int) ([]model.FeatureRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrNoLog
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}

	data, fromStart, err := readTail(f, info.Size(), n)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return parseRows(data, fromStart, n)
}

// Close closes the append handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// readTail reads enough bytes from the end of the file to hold n complete
// lines. fromStart reports whether the returned bytes begin at offset 0.
func readTail(r io.ReaderAt, size int64, n int) ([]byte, bool, error) {
	block := int64(tailBlock)
	for {
		off := int64(0)
		if n > 0 && size > block {
			off = size - block
		}

		buf := make([]byte, size-off)
		if _, err := r.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
			return nil, false, fmt.Errorf("read log: %w", err)
		}

		if off == 0 {
			return buf, true, nil
		}
		// One extra line may be cut at the front, one may be in flight at the end.
		if bytes.Count(buf, []byte{'\n'}) > n+1 {
			// Drop the partial first line.
			if i := bytes.IndexByte(buf, '\n'); i >= 0 {
				buf = buf[i+1:]
			}
			return buf, false, nil
		}
		block *= 2
	}
}

func parseRows(data []byte, fromStart bool, n int) ([]model.FeatureRecord, error) {
	// Exclude an in-flight row.
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i+1]
	} else {
		data = nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse log: %w", err)
	}

	if fromStart && len(rows) > 0 && slices.Equal(rows[0], model.Columns) {
		rows = rows[1:]
	}
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}

	records := make([]model.FeatureRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := model.ParseFields(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
