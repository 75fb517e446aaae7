package ports

import (
	"context"

	"github.com/hiresflow/upshift/internal/domain"
)

// Ledger persists the record of delivered files.
// Implementations append entries durably (flush before returning) and are
// safe for concurrent appends from multiple workers. Entries are never
// rewritten in place.
type Ledger interface {
	// Load reads every entry, rebuilding the already-processed set.
	// Returns an empty slice and nil error if no ledger exists yet.
	Load(ctx context.Context) ([]domain.Entry, error)

	// Append durably records one delivered job. A failed append breaks
	// the at-most-once guarantee, so callers treat it as fatal.
	Append(ctx context.Context, entry domain.Entry) error

	// Processed reports whether the given source path and content
	// fingerprint match a loaded or appended entry.
	Processed(sourcePath, fingerprint string) bool

	// KnownPath reports whether any entry exists for the source path,
	// regardless of fingerprint. The watcher uses it to avoid re-emitting
	// paths that already completed; the fingerprint-level check still
	// runs before any transform.
	KnownPath(sourcePath string) bool

	// Close releases the ledger file and any cross-process lock.
	Close() error
}

// Delivery places transform output into the destination namespace such that
// no observer ever sees a partial file at the final path.
type Delivery interface {
	// Deliver writes data for the given source file name and returns the
	// final destination path. Returns domain.ErrDestinationExists when the
	// destination is occupied and overwriting is disabled, and errors
	// wrapping domain.ErrDelivery for write or rename failures.
	Deliver(ctx context.Context, name string, data []byte) (string, error)
}
