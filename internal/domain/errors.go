package domain

import "errors"

// Domain errors represent error conditions in the upshift domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("upshift: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("upshift: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("upshift: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("upshift: invalid configuration")
)

// Per-job failure categories. Transformers wrap their errors with
// ErrInvalidInput or ErrTransient so the orchestrator can pick a retry policy.
var (
	// ErrInvalidInput marks a malformed or corrupt source file.
	// Permanent: the job fails without retries.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient marks a recoverable condition (file locked, resource
	// exhaustion, dependency unavailable). Retried with backoff up to the
	// configured attempt limit.
	ErrTransient = errors.New("transient failure")

	// ErrStabilityTimeout is returned when a file never stops changing
	// within the stability window. Permanent for that job.
	ErrStabilityTimeout = errors.New("stability timeout")

	// ErrDestinationExists is returned by delivery when the destination
	// path is already occupied and overwriting is disabled. The job is
	// treated as a delivered duplicate, not a failure.
	ErrDestinationExists = errors.New("destination exists")

	// ErrDelivery marks a write or rename failure at the destination.
	// Permanent: retrying a failed atomic rename rarely self-resolves.
	ErrDelivery = errors.New("delivery failure")

	// ErrLedgerWrite marks a failed ledger append. Fatal to the process:
	// once the durability guarantee is broken the orchestrator halts
	// rather than risk silent duplicate delivery.
	ErrLedgerWrite = errors.New("ledger write failure")
)

// Retryable reports whether err is a transient failure eligible for retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
