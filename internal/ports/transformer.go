package ports

import "context"

// Transformer is the boundary around the resolution-upgrade logic.
// The pipeline only ever invokes it on files that have been confirmed stable.
//
// Implementations must be deterministic for identical input bytes, must not
// mutate the input file, and must classify failures by wrapping
// domain.ErrInvalidInput (malformed source, never retried) or
// domain.ErrTransient (resource exhaustion or locked input, retried with
// backoff). Unwrapped errors are treated as permanent.
type Transformer interface {
	// Transform reads the stable file at inputPath and returns the
	// upgraded output bytes.
	Transform(ctx context.Context, inputPath string) ([]byte, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(ctx context.Context, inputPath string) ([]byte, error)

// Transform calls f.
func (f TransformerFunc) Transform(ctx context.Context, inputPath string) ([]byte, error) {
	return f(ctx, inputPath)
}
