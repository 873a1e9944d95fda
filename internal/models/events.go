package models

// Event type discriminators carried in the eventType field.
const (
	EventTypeJobStatus           = "job.status"
	EventTypeTranscriptCompleted = "transcript.completed"
)

// JobStatusEvent is published on every job state or progress change.
type JobStatusEvent struct {
	EventType    string  `json:"eventType"`
	TrackID      string  `json:"trackId"`
	JobID        string  `json:"jobId"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	RetryCount   int     `json:"retryCount"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	Timestamp    int64   `json:"timestamp"`
}

// TranscriptCompletedEvent is published once when a transcript is persisted.
type TranscriptCompletedEvent struct {
	EventType    string `json:"eventType"`
	TrackID      string `json:"trackId"`
	TranscriptID string `json:"transcriptId"`
	JobID        string `json:"jobId"`
	Language     string `json:"language,omitempty"`
	SegmentCount int    `json:"segmentCount"`
	DurationMs   int64  `json:"durationMs"`
	Timestamp    int64  `json:"timestamp"`
}
