package upshift

import (
	"github.com/rs/zerolog"

	"github.com/hiresflow/upshift/internal/adapters/transform"
	"github.com/hiresflow/upshift/internal/app"
	"github.com/hiresflow/upshift/internal/domain"
	"github.com/hiresflow/upshift/internal/ports"
)

// EventHandler receives pipeline and job state changes.
// Calls are synchronous from pipeline goroutines; handlers must be fast.
type EventHandler interface {
	// OnPipelineStateChange fires on lifecycle transitions
	// (Stopped, Starting, Running, Stopping, Crashed).
	OnPipelineStateChange(previous, current, reason string)

	// OnJobStateChange fires on per-file transitions
	// (Discovered, Stabilizing, Queued, Processing, Delivered, Failed).
	OnJobStateChange(sourcePath, previous, current, reason string)
}

// Option configures optional behavior of Upshift.
type Option func(*options)

// options holds the optional configuration for an Upshift instance.
type options struct {
	logger       zerolog.Logger
	transformer  ports.Transformer
	eventHandler EventHandler
}

// defaultOptions returns options with sensible defaults: no logging and the
// built-in pass-through transformer.
func defaultOptions() options {
	return options{
		logger:      zerolog.Nop(),
		transformer: transform.Passthrough{},
	}
}

// WithLogger sets the logger for structured logging.
// If not provided, logging is disabled.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransformer sets the resolution-upgrade implementation.
// If not provided, the built-in pass-through transformer is used, which
// copies source bytes unchanged. Implementations must classify failures with
// ErrInvalidInput or ErrTransient; see the Transformer docs.
func WithTransformer(t Transformer) Option {
	return func(o *options) {
		o.transformer = t
	}
}

// WithEventHandler sets a handler for pipeline and job events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// Error categories a Transformer implementation wraps its failures with, and
// sentinels callers can test against with errors.Is.
var (
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrTransient         = domain.ErrTransient
	ErrAlreadyRunning    = domain.ErrAlreadyRunning
	ErrNotRunning        = domain.ErrNotRunning
	ErrShutdownTimeout   = domain.ErrShutdownTimeout
	ErrDestinationExists = domain.ErrDestinationExists
	ErrInvalidConfig     = domain.ErrInvalidConfig
)

// eventEmitterWrapper adapts the public EventHandler to the internal emitter
// interfaces. A nil handler drops every event.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (w *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if w.handler == nil {
		return
	}
	w.handler.OnPipelineStateChange(previous.String(), current.String(), reason)
}

func (w *eventEmitterWrapper) OnJobStateChange(sourcePath string, previous, current domain.JobState, reason string) {
	if w.handler == nil {
		return
	}
	w.handler.OnJobStateChange(sourcePath, previous.String(), current.String(), reason)
}
