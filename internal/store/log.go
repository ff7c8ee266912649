package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// LogStore is a JSON-lines memory log. Every append is fsynced before it
// returns. A torn trailing line left by a crash is cut off on open.
//
// Appends are written at end, the offset just past the last acknowledged
// record, so bytes left behind by a failed write are overwritten or cut off
// rather than glued onto the next record.
type LogStore struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	end     int64
	failed  error
	writeAt func(b []byte, off int64) (int, error)
}

func NewLogStore(path string) (*LogStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open memory log: %w", err)
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read memory log: %w", err)
	}
	_, end, err := parseLog(data)
	if err != nil {
		f.Close()
		return nil, err
	}
	if end < len(data) {
		if err := f.Truncate(int64(end)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to truncate torn record: %w", err)
		}
	}

	return &LogStore{path: path, f: f, end: int64(end), writeAt: f.WriteAt}, nil
}

func (l *LogStore) AppendMemory(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode memory: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failed != nil {
		return fmt.Errorf("memory log unusable: %w", l.failed)
	}

	next := l.end + int64(len(line))
	if err := l.commit(line, next); err != nil {
		l.rollback()
		return err
	}
	l.end = next
	return nil
}

func (l *LogStore) commit(line []byte, next int64) error {
	n, err := l.writeAt(line, l.end)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("failed to append memory: %w", err)
	}
	if err := l.f.Truncate(next); err != nil {
		return fmt.Errorf("failed to trim memory log: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync memory log: %w", err)
	}
	return nil
}

// rollback cuts the file back to the last acknowledged record. If that
// fails too the log refuses further appends.
func (l *LogStore) rollback() {
	if err := l.f.Truncate(l.end); err != nil {
		l.failed = err
		return
	}
	if err := l.f.Sync(); err != nil {
		l.failed = err
	}
}

func (l *LogStore) LoadMemories(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory log: %w", err)
	}
	records, _, err := parseLog(data)
	return records, err
}

func (l *LogStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// parseLog decodes complete lines and returns the offset just past the last
// good one. Only the final line may be damaged; anything earlier is an error.
func parseLog(data []byte) ([]Record, int, error) {
	var records []Record
	end := 0
	line := 1
	for end < len(data) {
		nl := bytes.IndexByte(data[end:], '\n')
		if nl < 0 {
			// no terminator: torn write
			break
		}
		raw := bytes.TrimSpace(data[end : end+nl])
		if len(raw) > 0 {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				if len(bytes.TrimSpace(data[end+nl+1:])) == 0 {
					break
				}
				return nil, 0, fmt.Errorf("corrupt memory log at line %d: %w", line, err)
			}
			records = append(records, rec)
		}
		end += nl + 1
		line++
	}
	return records, end, nil
}
