package domain

import "time"

// JobState tracks where a job is in the pipeline.
type JobState int

const (
	StateDiscovered JobState = iota
	StateStabilizing
	StateQueued
	StateProcessing
	StateDelivered
	StateFailed
)

// String returns a human-readable representation of the state.
func (s JobState) String() string {
	switch s {
	case StateDiscovered:
		return "Discovered"
	case StateStabilizing:
		return "Stabilizing"
	case StateQueued:
		return "Queued"
	case StateProcessing:
		return "Processing"
	case StateDelivered:
		return "Delivered"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state ends the job's lifecycle.
func (s JobState) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}

// Job is one source file moving through the pipeline.
// A job is created when the watcher first observes a candidate path and is
// removed from the queue's in-flight set on terminal success or failure.
type Job struct {
	// SourcePath is the absolute path of the observed source file.
	SourcePath string

	// DiscoveredAt is when the watcher first saw the path.
	DiscoveredAt time.Time

	// SizeSnapshot is the file size at discovery time. The stability
	// detector refreshes it once the file settles.
	SizeSnapshot int64

	// AttemptCount counts transform attempts, including the first.
	AttemptCount int

	// State is the current pipeline state. Transitions are strictly
	// sequential within one job.
	State JobState

	// FailureReason is set when State is StateFailed.
	FailureReason string
}

// NewJob creates a job in StateDiscovered for the given path.
func NewJob(sourcePath string, size int64, now time.Time) *Job {
	return &Job{
		SourcePath:   sourcePath,
		DiscoveredAt: now,
		SizeSnapshot: size,
		State:        StateDiscovered,
	}
}
