package models

import "time"

// JobStatus is the lifecycle state of a transcription job record.
type JobStatus string

const (
	// JobQueued - Record created, pipeline not yet started.
	JobQueued JobStatus = "queued"
	// JobUploading - Local file acquisition plus remote upload.
	JobUploading JobStatus = "uploading"
	// JobTranscribing - Remote job creation and polling.
	JobTranscribing JobStatus = "transcribing"
	// JobProcessing - Segmentation and local persistence.
	JobProcessing JobStatus = "processing"
	// JobCompleted - Transcript persisted. Terminal.
	JobCompleted JobStatus = "completed"
	// JobFailed - Job gave up, error message retained. Terminal.
	JobFailed JobStatus = "failed"
)

// IsTerminal returns true if the status is terminal (completed or failed).
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// jobTransitions holds the legal next states for each status.
//
//	queued → uploading → transcribing → processing → completed
//	  │          │            │             │
//	  └──────────┴────────────┴─────────────┴──→ failed
//
// Any in-flight stage may also return to uploading: that is the sanctioned
// retry re-entry, which resets progress. failed → uploading is the manual
// retry path. Terminal completed has no successors.
var jobTransitions = map[JobStatus][]JobStatus{
	JobQueued:       {JobUploading, JobFailed},
	JobUploading:    {JobTranscribing, JobUploading, JobFailed},
	JobTranscribing: {JobProcessing, JobUploading, JobFailed},
	JobProcessing:   {JobCompleted, JobUploading, JobFailed},
	JobCompleted:    {},
	JobFailed:       {JobUploading},
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// JobRecord is the durable record of one transcription job. It is the
// single source of truth for crash recovery: every lifecycle transition
// is written to it before the next stage begins.
type JobRecord struct {
	ID            string
	TrackID       string
	RemoteFileID  string // empty until the audio has been uploaded
	RemoteJobID   string // empty until the remote job is created
	Status        JobStatus
	Progress      float64 // in [0,1], monotonic except the sanctioned retry reset
	RetryCount    int
	LastAttemptAt time.Time
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
