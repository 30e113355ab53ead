package store

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"docsis-exporter/internal/events"
)

// JSONLines appends one JSON object per line. When backed by a file every
// append is synced before it returns.
type JSONLines struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
}

// OpenJSONLines opens path for appending, "-" writes to stdout.
func OpenJSONLines(path string) (*JSONLines, error) {
	if path == "-" {
		return NewJSONLines(os.Stdout), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLines{w: f, file: f}, nil
}

// NewJSONLines writes to w without syncing.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

func (j *JSONLines) Append(_ context.Context, entry events.Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	// a single write so a line is never interleaved with another writer
	if _, err := j.w.Write(line); err != nil {
		return err
	}
	if j.file != nil {
		return j.file.Sync()
	}
	return nil
}

func (j *JSONLines) Close() error {
	if j.file == nil {
		return nil
	}
	return j.file.Close()
}
