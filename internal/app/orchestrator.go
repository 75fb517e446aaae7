package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiresflow/upshift/internal/domain"
	"github.com/hiresflow/upshift/internal/ports"
)

// Watcher feeds candidate jobs into the work queue. Run blocks until the
// context ends, or until the initial scan completes in once mode. A non-nil
// error means the source directory is permanently unusable.
type Watcher interface {
	Run(ctx context.Context) error
}

// JobEventEmitter is called on every job state transition.
// Calls are synchronous from worker goroutines; handlers must be fast.
type JobEventEmitter interface {
	OnJobStateChange(sourcePath string, previous, current domain.JobState, reason string)
}

// OrchestratorConfig contains tuning for the worker pool and retry policy.
type OrchestratorConfig struct {
	Workers        int
	MaxRetries     int
	RetryBaseDelay time.Duration
	Once           bool
}

// Orchestrator drives each job from Discovered through Delivered or Failed.
// It runs one watcher goroutine plus a bounded worker pool; each worker runs
// one job's pipeline sequentially and independently of the others.
type Orchestrator struct {
	config      OrchestratorConfig
	queue       *Queue
	watcher     Watcher
	detector    *StabilityDetector
	transformer ports.Transformer
	delivery    ports.Delivery
	ledger      ports.Ledger
	logger      zerolog.Logger
	emitter     JobEventEmitter
}

// NewOrchestrator creates an orchestrator with the given collaborators.
func NewOrchestrator(
	config OrchestratorConfig,
	queue *Queue,
	watcher Watcher,
	detector *StabilityDetector,
	transformer ports.Transformer,
	delivery ports.Delivery,
	ledger ports.Ledger,
	logger zerolog.Logger,
	emitter JobEventEmitter,
) *Orchestrator {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	return &Orchestrator{
		config:      config,
		queue:       queue,
		watcher:     watcher,
		detector:    detector,
		transformer: transformer,
		delivery:    delivery,
		ledger:      ledger,
		logger:      logger,
		emitter:     emitter,
	}
}

// Run executes the pipeline until the context is canceled, the watcher fails
// permanently, or (in once mode) the queue drains. A failed ledger append
// aborts the whole run: the durability guarantee is broken at that point.
func (o *Orchestrator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, o.config.Workers+1)

	var watcherWG sync.WaitGroup
	watcherWG.Add(1)
	go func() {
		defer watcherWG.Done()
		err := o.watcher.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errc <- fmt.Errorf("watcher: %w", err)
			cancel()
			return
		}
		if o.config.Once {
			// Initial scan finished: let the workers drain what is
			// queued, then exit.
			o.queue.Close()
		}
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < o.config.Workers; i++ {
		workerWG.Add(1)
		go func(id int) {
			defer workerWG.Done()
			if err := o.workerLoop(runCtx, id); err != nil {
				errc <- err
				cancel()
			}
		}(i)
	}

	workerWG.Wait()
	cancel()
	watcherWG.Wait()

	select {
	case err := <-errc:
		return err
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// workerLoop pulls jobs until the queue is closed and drained or the context
// ends. Only ledger failures propagate; per-job errors are recovered locally.
func (o *Orchestrator) workerLoop(ctx context.Context, worker int) error {
	logger := o.logger.With().Int("worker", worker).Logger()
	for {
		job, ok, err := o.queue.Dequeue(ctx)
		if err != nil {
			return nil
		}
		if !ok {
			return nil
		}
		if err := o.process(ctx, logger, job); err != nil {
			return err
		}
	}
}

// process advances a single job to a terminal state. The returned error is
// non-nil only for fatal conditions (ledger write failure); everything else
// is logged and absorbed.
func (o *Orchestrator) process(ctx context.Context, logger zerolog.Logger, job *domain.Job) error {
	defer o.queue.Release(job.SourcePath)

	o.transition(job, domain.StateStabilizing, "dequeued")

	size, err := o.detector.Wait(ctx, job.SourcePath)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown while sampling; the job is abandoned at a safe
			// checkpoint and rediscovered on the next run.
			return nil
		}
		o.fail(logger, job, err)
		return nil
	}
	job.SizeSnapshot = size
	o.transition(job, domain.StateQueued, "stability confirmed")

	fingerprint, err := fingerprintFile(job.SourcePath)
	if err != nil {
		o.fail(logger, job, err)
		return nil
	}

	if o.ledger.Processed(job.SourcePath, fingerprint) {
		logger.Info().
			Str("source", job.SourcePath).
			Msg("already delivered per ledger, skipping")
		o.transition(job, domain.StateDelivered, "ledger match")
		return nil
	}

	o.transition(job, domain.StateProcessing, "worker picked up job")
	return o.attempt(ctx, logger, job, fingerprint)
}

// attempt runs the transform-and-deliver cycle with bounded retries for
// transient failures.
func (o *Orchestrator) attempt(ctx context.Context, logger zerolog.Logger, job *domain.Job, fingerprint string) error {
	back := newBackoff(o.config.RetryBaseDelay, DefaultBackoffMax)

	for {
		job.AttemptCount++

		output, err := o.transformer.Transform(ctx, job.SourcePath)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if domain.Retryable(err) && job.AttemptCount < o.config.MaxRetries {
				logger.Warn().
					Str("source", job.SourcePath).
					Int("attempt", job.AttemptCount).
					Int("max_retries", o.config.MaxRetries).
					Dur("next_delay", back.Current()).
					Err(err).
					Msg("transform failed, retrying")
				if werr := back.Wait(ctx); werr != nil {
					return nil
				}
				o.transition(job, domain.StateProcessing, "retrying after transient failure")
				continue
			}
			o.fail(logger, job, err)
			return nil
		}

		destPath, err := o.delivery.Deliver(ctx, filepath.Base(job.SourcePath), output)
		if err != nil {
			if errors.Is(err, domain.ErrDestinationExists) {
				// Crash-replay guard: the previous run delivered this
				// file but died before the ledger append. Converge by
				// recording the entry now.
				logger.Info().
					Str("source", job.SourcePath).
					Str("destination", destPath).
					Msg("destination already present, recording duplicate")
				return o.complete(logger, job, fingerprint, destPath)
			}
			o.fail(logger, job, err)
			return nil
		}

		return o.complete(logger, job, fingerprint, destPath)
	}
}

// complete appends the ledger entry and marks the job delivered. The entry is
// appended before the job leaves the in-flight set so a crash in between
// reprocesses rather than double-delivers.
func (o *Orchestrator) complete(logger zerolog.Logger, job *domain.Job, fingerprint, destPath string) error {
	entry := domain.Entry{
		SourcePath:      job.SourcePath,
		Fingerprint:     fingerprint,
		DestinationPath: destPath,
		CompletedAt:     time.Now().UTC(),
	}
	if err := o.ledger.Append(context.Background(), entry); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)
	}

	o.transition(job, domain.StateDelivered, "delivered and ledger appended")
	logger.Info().
		Str("source", job.SourcePath).
		Str("destination", destPath).
		Int64("size", job.SizeSnapshot).
		Int("attempts", job.AttemptCount).
		Msg("job delivered")
	return nil
}

// fail moves the job to Failed. Per-job failures never affect other jobs.
func (o *Orchestrator) fail(logger zerolog.Logger, job *domain.Job, err error) {
	job.FailureReason = err.Error()
	o.transition(job, domain.StateFailed, err.Error())
	logger.Error().
		Str("source", job.SourcePath).
		Int("attempts", job.AttemptCount).
		Err(err).
		Msg("job failed")
}

func (o *Orchestrator) transition(job *domain.Job, state domain.JobState, reason string) {
	previous := job.State
	job.State = state
	if o.emitter != nil {
		o.emitter.OnJobStateChange(job.SourcePath, previous, state, reason)
	}
	o.logger.Debug().
		Str("source", job.SourcePath).
		Str("from", previous.String()).
		Str("to", state.String()).
		Str("reason", reason).
		Msg("job transition")
}
