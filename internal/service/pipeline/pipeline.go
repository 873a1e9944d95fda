// Package pipeline drives transcription jobs through their lifecycle:
// queued → uploading → transcribing → processing → completed, or failed
// from any non-terminal state. The orchestrator owns one runner goroutine
// per active job, serializes duplicate requests per track, and persists
// every transition to the job record store before proceeding, so a crash
// at any point can be resumed.
package pipeline

import (
	"context"
	"time"

	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/service/segment"
)

// Store is the durable record contract the orchestrator depends on.
// Implemented by the relational store; tests substitute an in-memory fake.
type Store interface {
	CreateJobRecord(ctx context.Context, rec *models.JobRecord) error
	JobRecord(ctx context.Context, id string) (*models.JobRecord, error)
	ActiveJobForTrack(ctx context.Context, trackID string) (*models.JobRecord, error)
	LatestJobRecordForTrack(ctx context.Context, trackID string) (*models.JobRecord, error)
	LoadActiveJobRecords(ctx context.Context) ([]models.JobRecord, error)
	UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, progress float64, errMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress float64) error
	RecordAttempt(ctx context.Context, id string, retryCount int) error
	SetRemoteRefs(ctx context.Context, id, remoteFileID, remoteJobID string) error
	ReactivateJob(ctx context.Context, id string) error

	EnsureTranscript(ctx context.Context, trackID string) (*models.Transcript, error)
	UpdateTranscriptStatus(ctx context.Context, trackID string, status models.TranscriptStatus, remoteJobID, errMsg string) error
	SaveTranscript(ctx context.Context, tr *models.Transcript, segments []models.Segment) error
	LoadTranscript(ctx context.Context, trackID string) (*models.Transcript, error)
	LoadSegments(ctx context.Context, transcriptID string) ([]models.Segment, error)
	ResetTranscript(ctx context.Context, trackID string) error
}

// AudioSource resolves a track to a local, fully-downloaded audio file.
type AudioSource interface {
	LocalPath(ctx context.Context, trackID string) (string, error)
}

// Publisher emits job lifecycle events for out-of-process observers.
type Publisher interface {
	PublishJobStatus(ctx context.Context, key string, event any) error
	PublishTranscriptCompleted(ctx context.Context, key string, event any) error
}

// Config tunes the pipeline.
type Config struct {
	// MaxAttempts bounds automatic retries: a job fails permanently after
	// this many failed attempts.
	MaxAttempts int

	// PollInterval is the fixed remote status polling cadence.
	PollInterval time.Duration

	// PollCeiling bounds the total time spent polling one remote job,
	// independent of per-request timeouts. Exceeding it is terminal.
	PollCeiling time.Duration

	// PollFailureLimit is how many consecutive poll request failures fail
	// the transcribing stage.
	PollFailureLimit int

	// StaleAfter marks a resumed record with no progress for this long as
	// interrupted instead of re-attaching it.
	StaleAfter time.Duration

	// ProgressMinInterval throttles progress publishing. Stage transitions
	// and terminal states always publish.
	ProgressMinInterval time.Duration

	// RetryInitialDelay and RetryMaxDelay parameterize the backoff
	// schedule. Tests shrink these; production keeps the defaults.
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	// Remote job parameters.
	LanguageHints          []string
	SpeakerDiarization     bool
	LanguageIdentification bool
	DefaultContext         string

	// Segmentation options applied to the returned token stream.
	Segmentation segment.Options
}

// DefaultConfig returns the reference pipeline configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:            3,
		PollInterval:           2 * time.Second,
		PollCeiling:            time.Hour,
		PollFailureLimit:       5,
		StaleAfter:             30 * time.Minute,
		ProgressMinInterval:    200 * time.Millisecond,
		RetryInitialDelay:      5 * time.Second,
		RetryMaxDelay:          300 * time.Second,
		LanguageHints:          nil,
		SpeakerDiarization:     true,
		LanguageIdentification: true,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollCeiling <= 0 {
		c.PollCeiling = time.Hour
	}
	if c.PollFailureLimit <= 0 {
		c.PollFailureLimit = 5
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Minute
	}
	if c.ProgressMinInterval <= 0 {
		c.ProgressMinInterval = 200 * time.Millisecond
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = 5 * time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 300 * time.Second
	}
	return c
}
