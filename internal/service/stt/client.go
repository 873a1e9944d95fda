// Package stt defines the interface for asynchronous speech-to-text providers.
package stt

import (
	"context"

	"audiobook-transcription-service/internal/models"
)

// RemoteStatus is the state of a remote transcription job as reported by
// the provider, normalized across providers.
type RemoteStatus string

const (
	StatusQueued     RemoteStatus = "queued"
	StatusProcessing RemoteStatus = "processing"
	StatusCompleted  RemoteStatus = "completed"
	StatusFailed     RemoteStatus = "failed"
)

// StatusInfo is one poll result for a remote job.
type StatusInfo struct {
	Status       RemoteStatus
	ProgressHint *float64 // in [0,1] when the provider reports one, nil otherwise
	ErrorMessage string   // populated when Status is StatusFailed
}

// JobRequest carries the parameters for creating a remote transcription job.
type JobRequest struct {
	FileID                 string
	LanguageHints          []string
	SpeakerDiarization     bool
	LanguageIdentification bool
	Context                string // domain glossary/context hint forwarded to the model
}

// Client defines the interface for async STT providers. The orchestrator
// owns the polling cadence; the client only translates single intents into
// remote calls.
type Client interface {
	// Upload sends a local audio file to the provider and returns the
	// remote file id.
	Upload(ctx context.Context, localPath string) (string, error)

	// CreateJob starts a remote transcription job over a previously
	// uploaded file and returns the remote job id.
	CreateJob(ctx context.Context, req JobRequest) (string, error)

	// PollStatus reports the remote job's current state.
	PollStatus(ctx context.Context, jobID string) (StatusInfo, error)

	// FetchTokens retrieves the finished token stream. Only valid once
	// PollStatus has reported StatusCompleted.
	FetchTokens(ctx context.Context, jobID string) ([]models.Token, error)

	// Cleanup deletes remote artifacts best-effort. Failures are logged by
	// the implementation, never surfaced to the pipeline.
	Cleanup(ctx context.Context, jobID, fileID string)
}
