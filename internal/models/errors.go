package models

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a pipeline failure class. The kind decides whether
// the retry scheduler may re-attempt the job and what the user sees.
type ErrorKind string

const (
	ErrKindInvalidAudioFile   ErrorKind = "invalid_audio_file"
	ErrKindUploadFailed       ErrorKind = "upload_failed"
	ErrKindJobCreationFailed  ErrorKind = "remote_job_creation_failed"
	ErrKindPollingTimedOut    ErrorKind = "polling_timed_out"
	ErrKindRemoteJobFailed    ErrorKind = "remote_job_failed"
	ErrKindMalformedResponse  ErrorKind = "malformed_response"
	ErrKindPersistenceFailed  ErrorKind = "persistence_failed"
	ErrKindCanceled           ErrorKind = "canceled"
	ErrKindInterrupted        ErrorKind = "interrupted"
)

// JobError is a classified pipeline failure recorded on the job record.
type JobError struct {
	Kind      ErrorKind
	Message   string
	Err       error // underlying cause, may be nil
	Retryable bool  // true only for transient failures (network, 5xx, rate limits)
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *JobError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may be retried automatically.
func (e *JobError) Transient() bool {
	return e.Retryable
}

// NewTerminalError builds a JobError that must never be retried.
func NewTerminalError(kind ErrorKind, message string, cause error) *JobError {
	return &JobError{Kind: kind, Message: message, Err: cause}
}

// NewTransientError builds a JobError eligible for automatic retry.
func NewTransientError(kind ErrorKind, message string, cause error) *JobError {
	return &JobError{Kind: kind, Message: message, Err: cause, Retryable: true}
}

// KindOf extracts the error kind from err, or ErrKindRemoteJobFailed
// when err carries no classification.
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return ErrKindRemoteJobFailed
}

// IsTransient reports whether err is classified as retryable.
// Unclassified errors are treated as terminal: silence > bad retries.
func IsTransient(err error) bool {
	var je *JobError
	if errors.As(err, &je) {
		return je.Retryable
	}
	return false
}

// ErrorMessageOf returns the human-readable message recorded for err.
func ErrorMessageOf(err error) string {
	var je *JobError
	if errors.As(err, &je) {
		if je.Err != nil {
			return fmt.Sprintf("%s: %v", je.Message, je.Err)
		}
		return je.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
