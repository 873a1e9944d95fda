package models

import "testing"

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobQueued, false},
		{JobUploading, false},
		{JobTranscribing, false},
		{JobProcessing, false},
		{JobCompleted, true},
		{JobFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestJobStatus_CanTransition_ForwardSequence(t *testing.T) {
	sequence := []JobStatus{JobQueued, JobUploading, JobTranscribing, JobProcessing, JobCompleted}
	for i := 0; i < len(sequence)-1; i++ {
		if !sequence[i].CanTransition(sequence[i+1]) {
			t.Errorf("expected %s -> %s to be legal", sequence[i], sequence[i+1])
		}
	}
}

func TestJobStatus_CanTransition_FailFromNonTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobQueued, JobUploading, JobTranscribing, JobProcessing} {
		if !s.CanTransition(JobFailed) {
			t.Errorf("expected %s -> failed to be legal", s)
		}
	}
}

func TestJobStatus_CanTransition_IllegalJumps(t *testing.T) {
	tests := []struct {
		from, to JobStatus
	}{
		{JobQueued, JobTranscribing},
		{JobQueued, JobCompleted},
		{JobUploading, JobProcessing},
		{JobUploading, JobCompleted},
		{JobTranscribing, JobCompleted},
		{JobCompleted, JobUploading},
		{JobCompleted, JobFailed},
		{JobFailed, JobCompleted},
		{JobFailed, JobFailed},
	}

	for _, tt := range tests {
		if tt.from.CanTransition(tt.to) {
			t.Errorf("expected %s -> %s to be illegal", tt.from, tt.to)
		}
	}
}

func TestJobStatus_CanTransition_RetryReentry(t *testing.T) {
	// Automatic retry re-enters at uploading from any in-flight stage,
	// manual retry re-enters from failed.
	for _, s := range []JobStatus{JobUploading, JobTranscribing, JobProcessing, JobFailed} {
		if !s.CanTransition(JobUploading) {
			t.Errorf("expected %s -> uploading (retry) to be legal", s)
		}
	}
	if JobCompleted.CanTransition(JobUploading) {
		t.Error("completed must not re-enter the pipeline via status transition")
	}
}
