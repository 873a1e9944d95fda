package pipeline

import (
	"audiobook-transcription-service/internal/models"
)

// Handle is the caller's view of a transcription job. Duplicate requests
// for one track share a handle to the same underlying job.
type Handle struct {
	j *job
}

// JobID returns the job record id.
func (h *Handle) JobID() string {
	return h.j.id
}

// TrackID returns the track this job transcribes.
func (h *Handle) TrackID() string {
	return h.j.trackID
}

// Done is closed when the job reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.j.done
}

// Snapshot returns the job record as of the latest persisted transition.
func (h *Handle) Snapshot() models.JobRecord {
	return h.j.snapshot()
}

// Err returns the job's terminal error, or nil while running or after
// success. Only meaningful once Done is closed.
func (h *Handle) Err() error {
	return h.j.terminalErr()
}

// Transcript returns the persisted transcript after successful completion,
// nil otherwise.
func (h *Handle) Transcript() *models.Transcript {
	return h.j.finishedTranscript()
}

// Updates returns a channel receiving job record snapshots on every
// published transition. The channel is buffered; slow consumers miss
// intermediate updates but always observe the terminal state.
func (h *Handle) Updates() <-chan models.JobRecord {
	return h.j.subscribe()
}

// Cancel stops the job. The polling loop observes cancellation within one
// poll interval and the record transitions to failed with a canceled error.
func (h *Handle) Cancel() {
	h.j.cancelJob()
}
