package app

import (
	"context"
	"errors"
	"sync"

	"github.com/hiresflow/upshift/internal/domain"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("work queue closed")

// Queue is a bounded FIFO of pending jobs with per-path deduplication.
//
// A source path stays in the in-flight set from enqueue until the owning
// worker calls Release after the job reaches a terminal state, so re-emitting
// the same path while it is queued or processing is a no-op. Enqueue blocks
// when the queue is at capacity, giving the watcher backpressure instead of
// dropped events.
type Queue struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	jobs     chan *domain.Job
	quit     chan struct{}
	closed   bool
}

// NewQueue creates a queue holding at most capacity pending jobs.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		inflight: make(map[string]struct{}),
		jobs:     make(chan *domain.Job, capacity),
		quit:     make(chan struct{}),
	}
}

// EnqueueIfAbsent adds the job unless one for the same source path is already
// in flight. Returns true if the job was accepted, false if it was a
// duplicate. Blocks while the queue is full until space frees up or ctx ends.
func (q *Queue) EnqueueIfAbsent(ctx context.Context, job *domain.Job) (bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrQueueClosed
	}
	if _, ok := q.inflight[job.SourcePath]; ok {
		q.mu.Unlock()
		return false, nil
	}
	q.inflight[job.SourcePath] = struct{}{}
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		return true, nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.inflight, job.SourcePath)
		q.mu.Unlock()
		return false, ctx.Err()
	case <-q.quit:
		// Close raced with a producer blocked on a full queue.
		q.mu.Lock()
		delete(q.inflight, job.SourcePath)
		q.mu.Unlock()
		return false, ErrQueueClosed
	}
}

// Dequeue returns the next job in arrival order. It blocks until a job is
// available, the queue is closed and drained (ok=false), or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Job, bool, error) {
	select {
	case job := <-q.jobs:
		return job, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-q.quit:
		// Closed: hand out whatever is still buffered, then signal
		// drained. The jobs channel itself is never closed, so a
		// producer caught mid-send cannot panic.
		select {
		case job := <-q.jobs:
			return job, true, nil
		default:
			return nil, false, nil
		}
	}
}

// Release removes the path from the in-flight set. Called by the owning
// worker once the job has reached a terminal state (and, on success, after
// the ledger entry has been appended).
func (q *Queue) Release(sourcePath string) {
	q.mu.Lock()
	delete(q.inflight, sourcePath)
	q.mu.Unlock()
}

// InFlight reports whether a job for the path is queued or processing.
func (q *Queue) InFlight(sourcePath string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inflight[sourcePath]
	return ok
}

// Len returns the number of jobs waiting to be dequeued.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close stops accepting new jobs: blocked and future Enqueues fail with
// ErrQueueClosed, and workers drain the remaining jobs before seeing
// ok=false from Dequeue. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.quit)
}
