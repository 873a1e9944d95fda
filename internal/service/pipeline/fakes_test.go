package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"audiobook-transcription-service/internal/models"
)

// fakeStore is an in-memory Store that enforces the same transition
// legality as the relational store.
type fakeStore struct {
	mu          sync.Mutex
	jobs        map[string]*models.JobRecord
	transitions map[string][]models.JobStatus
	transcripts map[string]*models.Transcript // by track id
	segments    map[string][]models.Segment   // by transcript id
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:        make(map[string]*models.JobRecord),
		transitions: make(map[string][]models.JobStatus),
		transcripts: make(map[string]*models.Transcript),
		segments:    make(map[string][]models.Segment),
	}
}

func (f *fakeStore) CreateJobRecord(ctx context.Context, rec *models.JobRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.LastAttemptAt = now
	cp := *rec
	f.jobs[rec.ID] = &cp
	f.transitions[rec.ID] = []models.JobStatus{rec.Status}
	return nil
}

func (f *fakeStore) JobRecord(ctx context.Context, id string) (*models.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) ActiveJobForTrack(ctx context.Context, trackID string) (*models.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.jobs {
		if rec.TrackID == trackID && !rec.Status.IsTerminal() {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) LatestJobRecordForTrack(ctx context.Context, trackID string) (*models.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.JobRecord
	for _, rec := range f.jobs {
		if rec.TrackID != trackID {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) LoadActiveJobRecords(ctx context.Context) ([]models.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.JobRecord
	for _, rec := range f.jobs {
		if !rec.Status.IsTerminal() {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, progress float64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if rec.Status != status && !rec.Status.CanTransition(status) {
		return fmt.Errorf("illegal transition %s -> %s", rec.Status, status)
	}
	rec.Status = status
	rec.Progress = progress
	rec.ErrorMessage = errMsg
	rec.UpdatedAt = time.Now()
	f.transitions[id] = append(f.transitions[id], status)
	return nil
}

func (f *fakeStore) UpdateJobProgress(ctx context.Context, id string, progress float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.jobs[id]; ok {
		rec.Progress = progress
	}
	return nil
}

func (f *fakeStore) RecordAttempt(ctx context.Context, id string, retryCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.jobs[id]; ok {
		rec.RetryCount = retryCount
		rec.LastAttemptAt = time.Now()
	}
	return nil
}

func (f *fakeStore) SetRemoteRefs(ctx context.Context, id, remoteFileID, remoteJobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.jobs[id]; ok {
		rec.RemoteFileID = remoteFileID
		rec.RemoteJobID = remoteJobID
		rec.LastAttemptAt = time.Now()
	}
	return nil
}

func (f *fakeStore) ReactivateJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if rec.Status != models.JobFailed {
		return fmt.Errorf("job %s is %s, not failed", id, rec.Status)
	}
	rec.Status = models.JobUploading
	rec.Progress = 0
	rec.RetryCount = 0
	rec.ErrorMessage = ""
	rec.RemoteFileID = ""
	rec.RemoteJobID = ""
	f.transitions[id] = append(f.transitions[id], models.JobUploading)
	return nil
}

func (f *fakeStore) EnsureTranscript(ctx context.Context, trackID string) (*models.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tr, ok := f.transcripts[trackID]; ok {
		cp := *tr
		return &cp, nil
	}
	tr := &models.Transcript{
		ID:      uuid.NewString(),
		TrackID: trackID,
		Status:  models.TranscriptPending,
	}
	f.transcripts[trackID] = tr
	cp := *tr
	return &cp, nil
}

func (f *fakeStore) UpdateTranscriptStatus(ctx context.Context, trackID string, status models.TranscriptStatus, remoteJobID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.transcripts[trackID]
	if !ok {
		return nil
	}
	tr.Status = status
	tr.ErrorMessage = errMsg
	if remoteJobID != "" {
		tr.RemoteJobID = remoteJobID
	}
	return nil
}

func (f *fakeStore) SaveTranscript(ctx context.Context, tr *models.Transcript, segments []models.Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *tr
	f.transcripts[tr.TrackID] = &cp
	segs := make([]models.Segment, len(segments))
	copy(segs, segments)
	f.segments[tr.ID] = segs
	return nil
}

func (f *fakeStore) LoadTranscript(ctx context.Context, trackID string) (*models.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.transcripts[trackID]
	if !ok {
		return nil, nil
	}
	cp := *tr
	return &cp, nil
}

func (f *fakeStore) LoadSegments(ctx context.Context, transcriptID string) ([]models.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	segs := f.segments[transcriptID]
	out := make([]models.Segment, len(segs))
	copy(out, segs)
	return out, nil
}

func (f *fakeStore) ResetTranscript(ctx context.Context, trackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.transcripts[trackID]
	if !ok {
		return nil
	}
	delete(f.segments, tr.ID)
	tr.Status = models.TranscriptPending
	tr.FullText = ""
	tr.ErrorMessage = ""
	tr.RemoteJobID = ""
	return nil
}

func (f *fakeStore) jobTransitions(id string) []models.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.JobStatus, len(f.transitions[id]))
	copy(out, f.transitions[id])
	return out
}

// fakeAudio resolves every track to the same path, or fails.
type fakeAudio struct {
	path string
	err  error
}

func (f *fakeAudio) LocalPath(ctx context.Context, trackID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu        sync.Mutex
	statuses  []any
	completed []any
}

func (f *fakePublisher) PublishJobStatus(ctx context.Context, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, event)
	return nil
}

func (f *fakePublisher) PublishTranscriptCompleted(ctx context.Context, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, event)
	return nil
}

func (f *fakePublisher) completedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}
