package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hiresflow/upshift/internal/domain"
)

// AtomicDelivery writes transform output into the destination directory via
// a temporary file and a single rename, so no observer ever sees a partial
// file at the final path. Temp files live inside the destination directory to
// guarantee the rename stays on one filesystem.
type AtomicDelivery struct {
	destDir   string
	overwrite bool
	logger    zerolog.Logger
}

// NewAtomicDelivery creates a delivery adapter for destDir. When overwrite is
// false, an occupied destination path yields domain.ErrDestinationExists
// instead of silently replacing the file.
func NewAtomicDelivery(destDir string, overwrite bool, logger zerolog.Logger) *AtomicDelivery {
	return &AtomicDelivery{destDir: destDir, overwrite: overwrite, logger: logger}
}

// Deliver writes data under name and returns the final destination path.
func (d *AtomicDelivery) Deliver(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	destPath := filepath.Join(d.destDir, name)
	if !d.overwrite {
		if _, err := os.Lstat(destPath); err == nil {
			return destPath, domain.ErrDestinationExists
		}
	}

	if err := os.MkdirAll(d.destDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: destination dir: %v", domain.ErrDelivery, err)
	}

	// Unique temp names keep concurrent workers (and a restarted sibling
	// process) off each other's in-progress writes.
	tmp := filepath.Join(d.destDir, fmt.Sprintf(".%s.%s.part", name, uuid.NewString()[:8]))

	// The write-then-rename below is deliberately not interruptible by
	// ctx: once started, the step completes or fails as a unit.
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create temp: %v", domain.ErrDelivery, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("%w: write temp: %v", domain.ErrDelivery, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("%w: sync temp: %v", domain.ErrDelivery, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: close temp: %v", domain.ErrDelivery, err)
	}

	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: rename: %v", domain.ErrDelivery, err)
	}

	d.logger.Debug().Str("destination", destPath).Int("bytes", len(data)).Msg("delivered")
	return destPath, nil
}
