// Package upshift provides a watch-folder pipeline that promotes source
// files from low-tier to high-tier resolution storage.
//
// Example usage:
//
//	cfg := upshift.DefaultConfig()
//	cfg.SourceDir = "/mnt/tier12/incoming"
//	cfg.DestDir = "/mnt/tier70/masters"
//
//	u, err := upshift.New(cfg, upshift.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := u.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer u.Stop()
//	<-u.Done()
package upshift

import (
	"context"
	"fmt"
	"sync"

	"github.com/hiresflow/upshift/internal/adapters/fs"
	"github.com/hiresflow/upshift/internal/app"
	"github.com/hiresflow/upshift/internal/cliconfig"
	"github.com/hiresflow/upshift/internal/domain"
	"github.com/hiresflow/upshift/internal/ports"
)

// Config holds the configuration for the pipeline.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Entry is one ledger record of a successful delivery.
type Entry = domain.Entry

// Transformer is the boundary around the resolution-upgrade logic.
// See WithTransformer.
type Transformer = ports.Transformer

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc = ports.TransformerFunc

// DefaultConfig returns a Config with sensible default values.
// At minimum, SourceDir and DestDir must be set before New.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Upshift is the watch-folder pipeline. Use New() to create an instance,
// then Start() to begin processing.
type Upshift struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	queue     *app.Queue
	ledger    *fs.JSONLLedger
	orch      *app.Orchestrator
	sweeper   *fs.Sweeper

	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
	runErr error
}

// New creates a pipeline instance in the stopped state.
// Returns an error if configuration is invalid or the ledger cannot be opened.
func New(cfg Config, opts ...Option) (*Upshift, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	ledger, err := fs.NewJSONLLedger(cfg.LedgerPath, logger)
	if err != nil {
		return nil, err
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	lifecycle := app.NewLifecycle(logger, emitter)

	queue := app.NewQueue(cfg.QueueCapacity)
	detector := app.NewStabilityDetector(
		cfg.StabilityPollInterval,
		cfg.StabilityRequiredSamples,
		cfg.StabilityTimeout,
	)
	delivery := fs.NewAtomicDelivery(cfg.DestDir, cfg.OverwriteExisting, logger)
	watcher := fs.NewDirWatcher(fs.WatcherConfig{
		SourceDir:    cfg.SourceDir,
		Extensions:   cfg.Extensions,
		ScanInterval: cfg.ScanInterval,
		Once:         cfg.Once,
	}, queue, ledger.KnownPath, logger)

	orch := app.NewOrchestrator(
		app.OrchestratorConfig{
			Workers:        cfg.Workers,
			MaxRetries:     cfg.MaxRetries,
			RetryBaseDelay: cfg.RetryBaseDelay,
			Once:           cfg.Once,
		},
		queue,
		watcher,
		detector,
		o.transformer,
		delivery,
		ledger,
		logger,
		emitter,
	)

	return &Upshift{
		config:    cfg,
		opts:      o,
		lifecycle: lifecycle,
		queue:     queue,
		ledger:    ledger,
		orch:      orch,
		sweeper:   fs.NewSweeper(cfg.DestDir, logger),
	}, nil
}

// Start loads the ledger and begins processing in the background.
// Returns immediately after starting the pipeline goroutine.
// Returns an error if already running or if the ledger cannot be read.
func (u *Upshift) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := u.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	entries, err := u.ledger.Load(ctx)
	if err != nil {
		_ = u.lifecycle.TransitionTo(app.StateCrashed, "ledger load failed")
		return err
	}
	logger := u.opts.logger
	logEvent := logger.Info().
		Str("ledger", u.ledger.Path()).
		Int("entries", len(entries))
	if len(entries) > 0 {
		logEvent = logEvent.Time("last_completed", entries[len(entries)-1].CompletedAt)
	}
	logEvent.Msg("ledger loaded")

	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.lifecycle.SetCancel(cancel)
	u.done = make(chan struct{})

	// Reclaim temp files a crashed predecessor left in the destination.
	if u.config.Once {
		u.sweeper.SweepOnce()
	} else {
		u.lifecycle.AddWorker()
		go func() {
			defer u.lifecycle.WorkerDone()
			u.sweeper.Run(runCtx)
		}()
	}

	u.lifecycle.AddWorker()
	go func() {
		defer u.lifecycle.WorkerDone()
		defer close(u.done)

		if err := u.lifecycle.TransitionTo(app.StateRunning, "pipeline starting"); err != nil {
			// Stop() moved the lifecycle to Stopping before the
			// pipeline came up; there is nothing to run.
			logger.Debug().Err(err).Msg("startup aborted")
			return
		}

		err := u.orch.Run(runCtx)

		u.mu.Lock()
		u.runErr = err
		u.mu.Unlock()

		if err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("pipeline error")
			_ = u.lifecycle.TransitionTo(app.StateCrashed, err.Error())
			return
		}
		// Once mode drains and finishes on its own.
		if u.lifecycle.State() == app.StateRunning {
			_ = u.lifecycle.TransitionTo(app.StateStopping, "pipeline drained")
			_ = u.lifecycle.TransitionTo(app.StateStopped, "pipeline drained")
		}
	}()

	return nil
}

// Stop gracefully shuts down the pipeline. In-flight jobs finish or abandon
// at the next safe checkpoint; the delivery temp-then-rename step is never
// interrupted. Waits up to app.ShutdownTimeout before forcing exit.
func (u *Upshift) Stop() error {
	u.mu.Lock()
	if !u.lifecycle.CanStop() {
		u.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := u.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		u.mu.Unlock()
		return err
	}
	if u.cancel != nil {
		u.cancel()
	}
	u.mu.Unlock()

	err := u.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	if cerr := u.ledger.Close(); cerr != nil && err == nil {
		err = cerr
	}

	_ = u.lifecycle.TransitionTo(app.StateStopped, "shutdown complete")
	return err
}

// Done returns a channel closed when the pipeline goroutine exits,
// either after Stop(), a fatal error, or once-mode completion.
func (u *Upshift) Done() <-chan struct{} {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.done
}

// Err returns the terminal pipeline error, if any. Valid after Done() closes.
func (u *Upshift) Err() error {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.runErr == context.Canceled {
		return nil
	}
	return u.runErr
}

// State returns the current lifecycle state as a string.
func (u *Upshift) State() string {
	return u.lifecycle.State().String()
}

// Run is a convenience wrapper: it creates a pipeline, starts it, and blocks
// until ctx is canceled or the pipeline finishes, then shuts down cleanly.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	u, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := u.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if err := u.Stop(); err != nil && err != domain.ErrNotRunning {
			return err
		}
		return u.Err()
	case <-u.Done():
		if err := u.Stop(); err != nil && err != domain.ErrNotRunning {
			if u.Err() != nil {
				return u.Err()
			}
			return err
		}
		return u.Err()
	}
}
