// Package trace appends diagnostic reply records to a JSON-lines file.
package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lifestory-agent/internal/domain"
)

// Log appends one JSON object per line to a file. It is safe for concurrent use.
type Log struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

type record struct {
	Time string `json:"time"`
	domain.TraceEntry
}

// New returns a Log writing to path. The file and its directory are created
// on first Append.
func New(path string) (*Log, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("trace: path must not be empty")
	}
	return &Log{path: path, now: time.Now}, nil
}

func (l *Log) Path() string { return l.path }

// Append writes the entry as a single line.
func (l *Log) Append(ctx context.Context, entry domain.TraceEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(record{Time: l.now().UTC().Format(time.RFC3339Nano), TraceEntry: entry})
	if err != nil {
		return fmt.Errorf("trace: marshal: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("trace: create dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("trace: open: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("trace: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("trace: close: %w", err)
	}
	return nil
}
