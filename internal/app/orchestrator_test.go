package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiresflow/upshift/internal/domain"
)

// fakeWatcher enqueues a fixed set of jobs and returns, which in once mode
// lets the queue drain and the run finish.
type fakeWatcher struct {
	queue *Queue
	paths []string
}

func (w *fakeWatcher) Run(ctx context.Context) error {
	for _, p := range w.paths {
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if _, err := w.queue.EnqueueIfAbsent(ctx, domain.NewJob(p, info.Size(), time.Now())); err != nil {
			return err
		}
	}
	return nil
}

type fakeTransformer struct {
	mu    sync.Mutex
	calls int
	// errs[i] is returned on call i; calls past the script succeed and
	// return the file contents.
	errs []error
}

func (f *fakeTransformer) Transform(ctx context.Context, inputPath string) ([]byte, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return os.ReadFile(inputPath)
}

func (f *fakeTransformer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDelivery struct {
	mu        sync.Mutex
	delivered map[string][]byte
	err       error
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{delivered: make(map[string][]byte)}
}

func (f *fakeDelivery) Deliver(ctx context.Context, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dest := "/out/" + name
	if f.err != nil {
		return dest, f.err
	}
	f.delivered[name] = data
	return dest, nil
}

func (f *fakeDelivery) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

type fakeLedger struct {
	mu        sync.Mutex
	entries   []domain.Entry
	appendErr error
}

func (f *fakeLedger) Load(ctx context.Context) ([]domain.Entry, error) { return nil, nil }

func (f *fakeLedger) Append(ctx context.Context, entry domain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLedger) Processed(sourcePath, fingerprint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Matches(sourcePath, fingerprint) {
			return true
		}
	}
	return false
}

func (f *fakeLedger) KnownPath(sourcePath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.SourcePath == sourcePath {
			return true
		}
	}
	return false
}

func (f *fakeLedger) Close() error { return nil }

func (f *fakeLedger) Entries() []domain.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

type jobEvent struct {
	sourcePath string
	previous   domain.JobState
	current    domain.JobState
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []jobEvent
}

func (r *recordingEmitter) OnJobStateChange(sourcePath string, previous, current domain.JobState, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, jobEvent{sourcePath, previous, current})
}

func (r *recordingEmitter) States(sourcePath string) []domain.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []domain.JobState
	for _, ev := range r.events {
		if ev.sourcePath == sourcePath {
			states = append(states, ev.current)
		}
	}
	return states
}

type orchFixture struct {
	orch        *Orchestrator
	queue       *Queue
	transformer *fakeTransformer
	delivery    *fakeDelivery
	ledger      *fakeLedger
	emitter     *recordingEmitter
}

func newOrchFixture(t *testing.T, paths []string, config OrchestratorConfig, transformer *fakeTransformer, delivery *fakeDelivery, ledger *fakeLedger) *orchFixture {
	t.Helper()
	queue := NewQueue(16)
	detector := NewStabilityDetector(time.Millisecond, 2, time.Second)
	emitter := &recordingEmitter{}
	config.Once = true
	orch := NewOrchestrator(
		config,
		queue,
		&fakeWatcher{queue: queue, paths: paths},
		detector,
		transformer,
		delivery,
		ledger,
		zerolog.Nop(),
		emitter,
	)
	return &orchFixture{orch, queue, transformer, delivery, ledger, emitter}
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOrchestrator_DeliversAndRecords(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "clip.mov", "frame data")

	fx := newOrchFixture(t, []string{src},
		OrchestratorConfig{Workers: 2, MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		&fakeTransformer{}, newFakeDelivery(), &fakeLedger{})

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := fx.delivery.Count(); got != 1 {
		t.Fatalf("delivered count = %d, want 1", got)
	}
	entries := fx.ledger.Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	if entries[0].SourcePath != src {
		t.Errorf("ledger source = %s, want %s", entries[0].SourcePath, src)
	}
	if entries[0].Fingerprint == "" {
		t.Error("ledger entry missing fingerprint")
	}

	states := fx.emitter.States(src)
	want := []domain.JobState{
		domain.StateStabilizing,
		domain.StateQueued,
		domain.StateProcessing,
		domain.StateDelivered,
	}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestOrchestrator_RetriesTransientThenDelivers(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "clip.mov", "frame data")

	transformer := &fakeTransformer{errs: []error{
		fmt.Errorf("%w: disk hiccup", domain.ErrTransient),
		fmt.Errorf("%w: disk hiccup", domain.ErrTransient),
	}}
	fx := newOrchFixture(t, []string{src},
		OrchestratorConfig{Workers: 1, MaxRetries: 5, RetryBaseDelay: time.Millisecond},
		transformer, newFakeDelivery(), &fakeLedger{})

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := transformer.Calls(); got != 3 {
		t.Errorf("transform calls = %d, want 3", got)
	}
	if fx.delivery.Count() != 1 {
		t.Errorf("delivered count = %d, want 1", fx.delivery.Count())
	}
}

func TestOrchestrator_TransientExhaustsAtMaxRetries(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "clip.mov", "frame data")

	transient := fmt.Errorf("%w: always failing", domain.ErrTransient)
	transformer := &fakeTransformer{errs: []error{
		transient, transient, transient, transient, transient, transient, transient,
	}}
	fx := newOrchFixture(t, []string{src},
		OrchestratorConfig{Workers: 1, MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		transformer, newFakeDelivery(), &fakeLedger{})

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Total attempts is exactly MaxRetries, not MaxRetries+1.
	if got := transformer.Calls(); got != 3 {
		t.Errorf("transform calls = %d, want 3", got)
	}
	if fx.delivery.Count() != 0 {
		t.Errorf("delivered count = %d, want 0", fx.delivery.Count())
	}
	states := fx.emitter.States(src)
	if len(states) == 0 || states[len(states)-1] != domain.StateFailed {
		t.Errorf("final state = %v, want Failed", states)
	}
	if len(fx.ledger.Entries()) != 0 {
		t.Error("failed job must not produce a ledger entry")
	}
}

func TestOrchestrator_InvalidInputNoRetry(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "clip.mov", "frame data")

	transformer := &fakeTransformer{errs: []error{
		fmt.Errorf("%w: unreadable container", domain.ErrInvalidInput),
	}}
	fx := newOrchFixture(t, []string{src},
		OrchestratorConfig{Workers: 1, MaxRetries: 5, RetryBaseDelay: time.Millisecond},
		transformer, newFakeDelivery(), &fakeLedger{})

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := transformer.Calls(); got != 1 {
		t.Errorf("transform calls = %d, want 1 (no retry on invalid input)", got)
	}
	states := fx.emitter.States(src)
	if states[len(states)-1] != domain.StateFailed {
		t.Errorf("final state = %v, want Failed", states[len(states)-1])
	}
}

func TestOrchestrator_SkipsLedgerMatch(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "clip.mov", "frame data")

	fingerprint, err := fingerprintFile(src)
	if err != nil {
		t.Fatal(err)
	}
	ledger := &fakeLedger{entries: []domain.Entry{{
		SourcePath:      src,
		Fingerprint:     fingerprint,
		DestinationPath: "/out/clip.mov",
		CompletedAt:     time.Now().UTC(),
	}}}

	transformer := &fakeTransformer{}
	fx := newOrchFixture(t, []string{src},
		OrchestratorConfig{Workers: 1, MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		transformer, newFakeDelivery(), ledger)

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := transformer.Calls(); got != 0 {
		t.Errorf("transform calls = %d, want 0 for ledger match", got)
	}
	if fx.delivery.Count() != 0 {
		t.Errorf("delivered count = %d, want 0", fx.delivery.Count())
	}
	states := fx.emitter.States(src)
	if states[len(states)-1] != domain.StateDelivered {
		t.Errorf("final state = %v, want Delivered", states[len(states)-1])
	}
	if len(ledger.Entries()) != 1 {
		t.Error("ledger match must not append a second entry")
	}
}

func TestOrchestrator_DuplicateDestinationConverges(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "clip.mov", "frame data")

	delivery := newFakeDelivery()
	delivery.err = fmt.Errorf("%w: /out/clip.mov", domain.ErrDestinationExists)
	ledger := &fakeLedger{}
	fx := newOrchFixture(t, []string{src},
		OrchestratorConfig{Workers: 1, MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		&fakeTransformer{}, delivery, ledger)

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// The entry is recorded even though nothing was written, so the next
	// run skips the file via the ledger instead of re-hitting the
	// destination check.
	entries := ledger.Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	states := fx.emitter.States(src)
	if states[len(states)-1] != domain.StateDelivered {
		t.Errorf("final state = %v, want Delivered", states[len(states)-1])
	}
}

func TestOrchestrator_LedgerWriteFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "clip.mov", "frame data")

	ledger := &fakeLedger{appendErr: errors.New("disk full")}
	fx := newOrchFixture(t, []string{src},
		OrchestratorConfig{Workers: 1, MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		&fakeTransformer{}, newFakeDelivery(), ledger)

	err := fx.orch.Run(context.Background())
	if !errors.Is(err, domain.ErrLedgerWrite) {
		t.Fatalf("Run err = %v, want ErrLedgerWrite", err)
	}
}

func TestOrchestrator_IndependentJobFailures(t *testing.T) {
	dir := t.TempDir()
	bad := writeSource(t, dir, "bad.mov", "corrupt")
	good := writeSource(t, dir, "good.mov", "frame data")

	// The transformer rejects bad.mov permanently but handles good.mov.
	transformer := &pathAwareTransformer{badPath: bad}
	fx := newOrchFixture(t, []string{bad, good},
		OrchestratorConfig{Workers: 1, MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		&fakeTransformer{}, newFakeDelivery(), &fakeLedger{})
	fx.orch.transformer = transformer

	if err := fx.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if fx.delivery.Count() != 1 {
		t.Errorf("delivered count = %d, want 1", fx.delivery.Count())
	}
	badStates := fx.emitter.States(bad)
	if badStates[len(badStates)-1] != domain.StateFailed {
		t.Errorf("bad.mov final state = %v, want Failed", badStates[len(badStates)-1])
	}
	goodStates := fx.emitter.States(good)
	if goodStates[len(goodStates)-1] != domain.StateDelivered {
		t.Errorf("good.mov final state = %v, want Delivered", goodStates[len(goodStates)-1])
	}
}

type pathAwareTransformer struct {
	badPath string
}

func (p *pathAwareTransformer) Transform(ctx context.Context, inputPath string) ([]byte, error) {
	if inputPath == p.badPath {
		return nil, fmt.Errorf("%w: unreadable container", domain.ErrInvalidInput)
	}
	return os.ReadFile(inputPath)
}
