package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	sweepCheckInterval = time.Hour
	sweepMinAge        = 6 * time.Hour
	sweepTickerNow     = true // run once immediately; used for tests
)

// Sweeper removes orphaned delivery temp files from the destination
// directory. A crash between temp-file creation and rename leaves a
// ".<name>.<id>.part" file behind; live deliveries finish in seconds, so
// anything older than the age threshold belongs to a dead process.
type Sweeper struct {
	destDir string
	minAge  time.Duration
	logger  zerolog.Logger
}

// NewSweeper creates a sweeper for destDir.
func NewSweeper(destDir string, logger zerolog.Logger) *Sweeper {
	return &Sweeper{destDir: destDir, minAge: sweepMinAge, logger: logger}
}

// Run sweeps periodically until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	if sweepTickerNow {
		s.SweepOnce()
	}

	t := time.NewTicker(sweepCheckInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce removes stale temp files and returns the bytes freed.
func (s *Sweeper) SweepOnce() int64 {
	ents, err := os.ReadDir(s.destDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Msg("temp sweep: list failed")
		}
		return 0
	}

	cutoff := time.Now().Add(-s.minAge)
	var freed int64
	removed := 0
	for _, e := range ents {
		if e.IsDir() || !isTempName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			// Possibly a live delivery in progress.
			continue
		}
		path := filepath.Join(s.destDir, e.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("temp sweep: remove failed")
			continue
		}
		freed += info.Size()
		removed++
	}

	if removed > 0 {
		s.logger.Info().
			Int("removed", removed).
			Int64("bytes_freed", freed).
			Msg("temp sweep completed")
	}
	return freed
}

// isTempName matches the delivery temp naming scheme: ".<name>.<id>.part".
func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".part")
}
