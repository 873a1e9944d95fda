package models

import "time"

// TranscriptStatus is the lifecycle status of a track's transcript.
type TranscriptStatus string

const (
	TranscriptPending    TranscriptStatus = "pending"
	TranscriptProcessing TranscriptStatus = "processing"
	TranscriptComplete   TranscriptStatus = "complete"
	TranscriptFailed     TranscriptStatus = "failed"
)

// Transcript is the persisted, time-aligned transcript of one track.
// At most one Transcript exists per track; it is created when a job first
// starts and updated in place on every status change.
type Transcript struct {
	ID           string
	TrackID      string
	Language     string
	FullText     string
	Status       TranscriptStatus
	RemoteJobID  string // empty until the remote job is created
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Segment is a merged, time-bounded span of tokens presented as one
// transcript unit. Segments for one transcript are contiguous,
// non-overlapping in time and sorted by OrderIndex.
type Segment struct {
	ID           string
	TranscriptID string
	Text         string
	StartMs      int64
	EndMs        int64
	Speaker      string
	Language     string
	Confidence   *float64 // mean of contributing tokens' confidences, nil if none had one
	OrderIndex   int
}

// DurationMs returns the segment's duration in milliseconds.
func (s Segment) DurationMs() int64 {
	return s.EndMs - s.StartMs
}
