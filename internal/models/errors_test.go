package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestJobError_TransientClassification(t *testing.T) {
	transient := NewTransientError(ErrKindUploadFailed, "upload failed", errors.New("connection reset"))
	if !transient.Transient() {
		t.Error("expected transient error to report Transient() = true")
	}
	terminal := NewTerminalError(ErrKindInvalidAudioFile, "no local audio", nil)
	if terminal.Transient() {
		t.Error("expected terminal error to report Transient() = false")
	}
}

func TestIsTransient_Wrapped(t *testing.T) {
	base := NewTransientError(ErrKindJobCreationFailed, "create job", errors.New("503"))
	wrapped := fmt.Errorf("attempt 2: %w", base)

	if !IsTransient(wrapped) {
		t.Error("expected wrapped transient error to remain transient")
	}
	if IsTransient(errors.New("plain error")) {
		t.Error("unclassified errors must not be retried")
	}
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewTerminalError(ErrKindPollingTimedOut, "ceiling reached", nil))
	if kind := KindOf(err); kind != ErrKindPollingTimedOut {
		t.Errorf("expected kind polling_timed_out, got %s", kind)
	}
	if kind := KindOf(errors.New("plain")); kind != ErrKindRemoteJobFailed {
		t.Errorf("expected fallback kind remote_job_failed, got %s", kind)
	}
}

func TestJobError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewTerminalError(ErrKindPersistenceFailed, "save transcript", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the underlying cause")
	}
}

func TestErrorMessageOf(t *testing.T) {
	withCause := NewTerminalError(ErrKindRemoteJobFailed, "remote job failed", errors.New("bad audio codec"))
	if msg := ErrorMessageOf(withCause); msg != "remote job failed: bad audio codec" {
		t.Errorf("unexpected message: %q", msg)
	}
	bare := NewTerminalError(ErrKindCanceled, "canceled by user", nil)
	if msg := ErrorMessageOf(bare); msg != "canceled by user" {
		t.Errorf("unexpected message: %q", msg)
	}
	if msg := ErrorMessageOf(nil); msg != "" {
		t.Errorf("expected empty message for nil error, got %q", msg)
	}
}
