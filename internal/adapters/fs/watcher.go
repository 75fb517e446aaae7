package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/hiresflow/upshift/internal/app"
	"github.com/hiresflow/upshift/internal/domain"
)

// WatcherConfig configures directory observation.
type WatcherConfig struct {
	// SourceDir is the watched directory. It may not exist yet; the
	// watcher retries on ScanInterval until it appears.
	SourceDir string

	// Extensions is the accepted set of file extensions (lowercase, with
	// leading dot). Empty accepts every file.
	Extensions []string

	// ScanInterval is the periodic rescan cadence. Change notifications
	// are unreliable on network filesystems, so the rescan is the source
	// of truth and fsnotify only shortens the latency.
	ScanInterval time.Duration

	// Once scans the directory a single time and returns instead of
	// watching.
	Once bool
}

// DirWatcher observes the source directory and feeds candidate jobs into the
// work queue. It never drops an arrival: when the queue is full, enqueueing
// blocks until a worker frees capacity.
type DirWatcher struct {
	config WatcherConfig
	queue  *app.Queue
	known  func(path string) bool
	logger zerolog.Logger
	exts   map[string]struct{}

	// seen dedups rescan emissions for paths already handed to the queue
	// this run, including paths that later failed.
	seen map[string]struct{}
}

// NewDirWatcher creates a watcher. known filters out paths the ledger has
// already completed.
func NewDirWatcher(config WatcherConfig, queue *app.Queue, known func(string) bool, logger zerolog.Logger) *DirWatcher {
	exts := make(map[string]struct{}, len(config.Extensions))
	for _, e := range config.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &DirWatcher{
		config: config,
		queue:  queue,
		known:  known,
		logger: logger,
		exts:   exts,
		seen:   make(map[string]struct{}),
	}
}

// Run blocks until ctx is canceled, or after one scan in once mode.
func (w *DirWatcher) Run(ctx context.Context) error {
	if err := w.waitForDir(ctx); err != nil {
		return err
	}

	// Existing files are candidates too: a restart resumes whatever the
	// ledger has not recorded.
	if err := w.scan(ctx); err != nil {
		return err
	}
	if w.config.Once {
		return nil
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn().Err(err).Msg("fsnotify unavailable, falling back to polling only")
		return w.pollLoop(ctx, nil)
	}
	defer notifier.Close()

	if err := notifier.Add(w.config.SourceDir); err != nil {
		w.logger.Warn().Err(err).Str("dir", w.config.SourceDir).Msg("cannot watch directory, falling back to polling only")
		return w.pollLoop(ctx, nil)
	}

	return w.pollLoop(ctx, notifier)
}

// pollLoop combines the periodic rescan with fsnotify events when available.
func (w *DirWatcher) pollLoop(ctx context.Context, notifier *fsnotify.Watcher) error {
	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if notifier != nil {
		events = notifier.Events
		errs = notifier.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := w.scan(ctx); err != nil {
				return err
			}

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if err := w.consider(ctx, event.Name); err != nil {
				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// waitForDir retries until the source directory exists and is listable.
func (w *DirWatcher) waitForDir(ctx context.Context) error {
	for {
		info, err := os.Stat(w.config.SourceDir)
		if err == nil && info.IsDir() {
			return nil
		}
		if err != nil && !os.IsNotExist(err) {
			w.logger.Warn().Err(err).Str("dir", w.config.SourceDir).Msg("source directory inaccessible, retrying")
		} else {
			w.logger.Warn().Str("dir", w.config.SourceDir).Msg("source directory missing, retrying")
		}

		timer := time.NewTimer(w.config.ScanInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// scan lists the directory and considers every regular file.
// Transient listing errors (permissions flapping on a network share) are
// logged and retried on the next tick.
func (w *DirWatcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.config.SourceDir)
	if err != nil {
		w.logger.Warn().Err(err).Str("dir", w.config.SourceDir).Msg("scan failed, will retry")
		return nil
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := w.consider(ctx, filepath.Join(w.config.SourceDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// consider emits a job for the path unless it is filtered, already seen this
// run, or already completed per the ledger.
func (w *DirWatcher) consider(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return nil
	}
	if !w.accepts(name) {
		return nil
	}
	if _, ok := w.seen[path]; ok {
		return nil
	}
	if w.known != nil && w.known(path) {
		w.seen[path] = struct{}{}
		return nil
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}

	job := domain.NewJob(path, info.Size(), time.Now())
	accepted, err := w.queue.EnqueueIfAbsent(ctx, job)
	if err != nil {
		if err == app.ErrQueueClosed {
			return nil
		}
		return err
	}
	w.seen[path] = struct{}{}
	if accepted {
		w.logger.Info().
			Str("source", path).
			Int64("size", info.Size()).
			Msg("file discovered")
	}
	return nil
}

// accepts applies the extension filter.
func (w *DirWatcher) accepts(name string) bool {
	if len(w.exts) == 0 {
		return true
	}
	_, ok := w.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}
