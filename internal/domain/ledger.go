package domain

import "time"

// Entry is one successfully delivered job, persisted append-only.
// An entry is written after delivery completes; a source file whose path and
// fingerprint match an existing entry is never reprocessed.
type Entry struct {
	SourcePath      string    `json:"source_path"`
	Fingerprint     string    `json:"fingerprint"`
	DestinationPath string    `json:"destination_path"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Matches reports whether the entry records a prior delivery of the same
// source content.
func (e Entry) Matches(sourcePath, fingerprint string) bool {
	return e.SourcePath == sourcePath && e.Fingerprint == fingerprint
}
