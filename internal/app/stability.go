package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hiresflow/upshift/internal/domain"
)

// Sample is one observation of a file's size and modification time.
type Sample struct {
	Size    int64
	ModTime time.Time
}

// settled reports whether the most recent required samples agree on size and
// modification time. Pure so the stability rule is testable without a
// filesystem.
func settled(samples []Sample, required int) bool {
	if required < 2 {
		required = 2
	}
	if len(samples) < required {
		return false
	}
	last := samples[len(samples)-1]
	for _, s := range samples[len(samples)-required : len(samples)-1] {
		if s.Size != last.Size || !s.ModTime.Equal(last.ModTime) {
			return false
		}
	}
	return true
}

// StabilityDetector decides when a newly seen file has finished being
// written. It samples (size, mtime) on a fixed interval and declares the file
// stable once the required number of consecutive samples agree and the file
// can be opened for reading. A file that never settles within Timeout fails
// with domain.ErrStabilityTimeout.
type StabilityDetector struct {
	Interval time.Duration
	Required int
	Timeout  time.Duration

	// Stat and Probe are injectable for tests. Defaults are os.Stat and
	// an open-for-read check.
	Stat  func(path string) (os.FileInfo, error)
	Probe func(path string) error
}

// NewStabilityDetector creates a detector with filesystem-backed sampling.
func NewStabilityDetector(interval time.Duration, required int, timeout time.Duration) *StabilityDetector {
	return &StabilityDetector{
		Interval: interval,
		Required: required,
		Timeout:  timeout,
		Stat:     os.Stat,
		Probe:    openProbe,
	}
}

// openProbe verifies the file can be opened for reading. A writer still
// holding the file exclusively (common over SMB) makes this fail, which keeps
// the file in the sampling window.
func openProbe(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// Wait blocks until the file at path is stable, returning its settled size.
// Returns domain.ErrStabilityTimeout if the file keeps changing past the
// timeout, an error wrapping domain.ErrInvalidInput if the file disappears,
// or ctx.Err() on cancellation.
func (d *StabilityDetector) Wait(ctx context.Context, path string) (int64, error) {
	required := d.Required
	if required < 2 {
		required = 2
	}

	deadline := time.Now().Add(d.Timeout)
	samples := make([]Sample, 0, required)

	for {
		info, err := d.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return 0, fmt.Errorf("%w: source removed before stabilizing: %s", domain.ErrInvalidInput, path)
			}
			// Transient stat error (permissions flapping on network
			// shares); keep sampling until the timeout.
			samples = samples[:0]
		} else {
			samples = append(samples, Sample{Size: info.Size(), ModTime: info.ModTime()})
			if len(samples) > required {
				samples = samples[1:]
			}
			if settled(samples, required) && d.Probe(path) == nil {
				return info.Size(), nil
			}
		}

		if time.Now().After(deadline) {
			return 0, fmt.Errorf("%w after %s: %s", domain.ErrStabilityTimeout, d.Timeout, path)
		}

		timer := time.NewTimer(d.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
}
