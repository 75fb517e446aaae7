// Package transform provides built-in implementations of the resolution
// upgrade boundary. The real upgrade engine is an external collaborator;
// callers embed it via the Transformer port.
package transform

import (
	"context"
	"fmt"
	"os"

	"github.com/hiresflow/upshift/internal/domain"
	"github.com/hiresflow/upshift/internal/ports"
)

// Passthrough returns the source bytes unchanged. It is the default
// transformer: the first phase of the tier promotion is a verified copy from
// low-tier storage into high-tier storage, with the pixel transform applied
// by a downstream system.
type Passthrough struct{}

var _ ports.Transformer = Passthrough{}

// Transform reads the stable input file and returns its contents.
// Missing or unreadable-by-content files are invalid input; files still held
// by a writer (permission or sharing violations on network mounts) are
// transient and worth retrying.
func (Passthrough) Transform(ctx context.Context, inputPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, inputPath, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrTransient, inputPath, err)
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrTransient, inputPath, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, inputPath)
	}
	return data, nil
}
