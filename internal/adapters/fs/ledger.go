package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/hiresflow/upshift/internal/domain"
)

// JSONLLedger is an append-only ledger of delivered files, one JSON entry per
// line. Entries are never rewritten in place. Appends are serialized with a
// mutex inside the process and an advisory file lock across processes, so two
// instances sharing a ledger (restart during processing) cannot interleave
// lines.
type JSONLLedger struct {
	path   string
	lock   *flock.Flock
	logger zerolog.Logger

	mu        sync.Mutex
	file      *os.File
	processed map[string]map[string]struct{} // source path -> fingerprints
}

// NewJSONLLedger opens (or creates) the ledger at path.
func NewJSONLLedger(path string, logger zerolog.Logger) (*JSONLLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &JSONLLedger{
		path:      path,
		lock:      flock.New(path + ".lock"),
		logger:    logger,
		file:      file,
		processed: make(map[string]map[string]struct{}),
	}, nil
}

// Load reads every entry and rebuilds the in-memory processed set.
// A truncated final line, the footprint of a crash mid-append, is skipped
// with a warning; everything before it still counts.
func (l *JSONLLedger) Load(ctx context.Context) ([]domain.Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer f.Close()

	var entries []domain.Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry domain.Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			l.logger.Warn().Int("line", line).Err(err).Msg("skipping unreadable ledger line")
			continue
		}
		entries = append(entries, entry)
		l.remember(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return entries, nil
}

// Append durably records one delivery: the line is written and flushed under
// the cross-process lock before Append returns.
func (l *JSONLLedger) Append(ctx context.Context, entry domain.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	defer l.lock.Unlock()

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.remember(entry)
	return nil
}

// Processed reports whether the exact source path and fingerprint pair has
// been delivered.
func (l *JSONLLedger) Processed(sourcePath, fingerprint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	fps, ok := l.processed[sourcePath]
	if !ok {
		return false
	}
	_, ok = fps[fingerprint]
	return ok
}

// KnownPath reports whether any delivery has been recorded for the path.
func (l *JSONLLedger) KnownPath(sourcePath string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[sourcePath]
	return ok
}

// Count returns the number of distinct delivered source paths.
func (l *JSONLLedger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.processed)
}

// Path returns the ledger file location.
func (l *JSONLLedger) Path() string {
	return l.path
}

// Close releases the ledger file handle.
func (l *JSONLLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// remember updates the in-memory set. Callers hold l.mu (or are still
// single-goroutine during Load).
func (l *JSONLLedger) remember(entry domain.Entry) {
	fps, ok := l.processed[entry.SourcePath]
	if !ok {
		fps = make(map[string]struct{})
		l.processed[entry.SourcePath] = fps
	}
	fps[entry.Fingerprint] = struct{}{}
}
