package app

import (
	"context"
	"math/rand"
	"time"
)

// DefaultBackoffMax caps the retry delay regardless of attempt count.
const DefaultBackoffMax = 30 * time.Second

// backoff implements exponential backoff with jitter.
// Wait blocks on a timer rather than time.Sleep so a shutdown can interrupt
// a pending retry promptly instead of waiting out the full delay.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// newBackoff creates a new backoff with the given initial and max durations.
func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Wait blocks for the current backoff duration and increases it.
// Returns ctx.Err() if the context is canceled before the delay elapses.
func (b *backoff) Wait(ctx context.Context) error {
	// jitter: ±20%
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	delay := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration.
func (b *backoff) Current() time.Duration {
	return b.current
}
