package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/observability/logging"
	"audiobook-transcription-service/internal/observability/metrics"
	"audiobook-transcription-service/internal/service/stt"
)

// Request asks for a track to be transcribed.
type Request struct {
	TrackID string

	// LanguageHints overrides the configured hints for this job.
	LanguageHints []string

	// ContextHint is appended to the configured default context and
	// forwarded to the remote model.
	ContextHint string

	// Regenerate forces a new transcription even when a completed
	// transcript exists; prior segments are cleared first.
	Regenerate bool
}

// Orchestrator owns per-track job lifecycles. All duplicate-request
// checks and job spawns happen under one mutex, which is what makes the
// single-flight guarantee hold under concurrent callers.
type Orchestrator struct {
	store     Store
	client    stt.Client
	audio     AudioSource
	publisher Publisher
	retry     *Scheduler
	metrics   *metrics.Metrics
	cfg       Config
	log       zerolog.Logger

	mu     sync.Mutex
	active map[string]*job // by trackID
	closed bool

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
}

// New creates an orchestrator. It does not resume interrupted jobs; call
// Resume once after construction.
func New(store Store, client stt.Client, audio AudioSource, publisher Publisher, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	baseCtx, cancelAll := context.WithCancel(context.Background())
	return &Orchestrator{
		store:     store,
		client:    client,
		audio:     audio,
		publisher: publisher,
		retry:     NewScheduler(cfg.RetryInitialDelay, cfg.RetryMaxDelay),
		metrics:   metrics.DefaultMetrics,
		cfg:       cfg,
		log:       logging.WithComponent("orchestrator"),
		active:    make(map[string]*job),
		baseCtx:   baseCtx,
		cancelAll: cancelAll,
	}
}

// RequestTranscription starts a transcription job for the track, or
// returns a handle to the job already in flight. A track with a completed
// transcript returns an already-done handle without any remote work,
// unless the request asks for regeneration.
func (o *Orchestrator) RequestTranscription(ctx context.Context, req Request) (*Handle, error) {
	if req.TrackID == "" {
		return nil, fmt.Errorf("track id is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, fmt.Errorf("orchestrator is shut down")
	}

	// Single-flight: an in-memory runner wins first.
	if j, ok := o.active[req.TrackID]; ok {
		return &Handle{j: j}, nil
	}

	// A non-terminal record without a runner (pre-Resume leftovers) is
	// adopted rather than duplicated.
	if rec, err := o.store.ActiveJobForTrack(ctx, req.TrackID); err != nil {
		return nil, err
	} else if rec != nil {
		return &Handle{j: o.spawnLocked(*rec, true)}, nil
	}

	if !req.Regenerate {
		tr, err := o.store.LoadTranscript(ctx, req.TrackID)
		if err != nil {
			return nil, err
		}
		if tr != nil && tr.Status == models.TranscriptComplete {
			last, err := o.store.LatestJobRecordForTrack(ctx, req.TrackID)
			if err != nil {
				return nil, err
			}
			return &Handle{j: o.finishedJob(req.TrackID, last, tr)}, nil
		}
	} else {
		if err := o.store.ResetTranscript(ctx, req.TrackID); err != nil {
			return nil, err
		}
	}

	rec := models.JobRecord{
		TrackID: req.TrackID,
		Status:  models.JobQueued,
	}
	if err := o.store.CreateJobRecord(ctx, &rec); err != nil {
		return nil, err
	}
	if _, err := o.store.EnsureTranscript(ctx, req.TrackID); err != nil {
		return nil, err
	}

	j := o.spawnRequestLocked(rec, false, req.LanguageHints, req.ContextHint)
	return &Handle{j: j}, nil
}

// spawnLocked registers and starts a runner for rec. Caller holds o.mu.
func (o *Orchestrator) spawnLocked(rec models.JobRecord, resume bool) *job {
	return o.spawnRequestLocked(rec, resume, nil, "")
}

func (o *Orchestrator) spawnRequestLocked(rec models.JobRecord, resume bool, languageHints []string, contextHint string) *job {
	ctx, cancel := context.WithCancel(o.baseCtx)
	j := &job{
		id:            rec.ID,
		trackID:       rec.TrackID,
		o:             o,
		rec:           rec,
		done:          make(chan struct{}),
		cancel:        cancel,
		progress:      newProgressTracker(o.cfg.ProgressMinInterval),
		log:           logging.WithJob(rec.TrackID, rec.ID),
		languageHints: languageHints,
		contextHint:   contextHint,
	}
	j.progress.Update(rec.Progress, true)

	o.active[rec.TrackID] = j
	o.metrics.RecordJobStart()
	if resume {
		o.metrics.RecordJobResumed()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		j.run(ctx, resume)
	}()
	return j
}

// finishedJob builds an already-done job view over a completed transcript.
// last, when present, supplies the record of the job that produced the
// transcript so the handle reports its id; with no record the id is empty.
func (o *Orchestrator) finishedJob(trackID string, last *models.JobRecord, tr *models.Transcript) *job {
	rec := models.JobRecord{TrackID: trackID, Status: models.JobCompleted, Progress: 1.0}
	if last != nil {
		rec = *last
		rec.Status = models.JobCompleted
		rec.Progress = 1.0
	}
	done := make(chan struct{})
	close(done)
	return &job{
		id:         rec.ID,
		trackID:    trackID,
		o:          o,
		done:       done,
		cancel:     func() {},
		progress:   newProgressTracker(o.cfg.ProgressMinInterval),
		log:        logging.WithTrack(trackID),
		rec:        rec,
		transcript: tr,
	}
}

// Resume re-attaches runners to every non-terminal job record. Records
// with no progress for longer than the staleness window are marked failed
// as interrupted instead of hanging forever. Returns how many jobs were
// re-attached.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	recs, err := o.store.LoadActiveJobRecords(ctx)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	resumed := 0
	for _, rec := range recs {
		if _, ok := o.active[rec.TrackID]; ok {
			continue
		}
		if time.Since(rec.LastAttemptAt) > o.cfg.StaleAfter {
			msg := "interrupted: no progress since " + rec.LastAttemptAt.UTC().Format(time.RFC3339)
			if err := o.store.UpdateJobStatus(ctx, rec.ID, models.JobFailed, rec.Progress, msg); err != nil {
				o.log.Error().Err(err).Str("jobId", rec.ID).Msg("Failed to mark stale job")
				continue
			}
			_ = o.store.UpdateTranscriptStatus(ctx, rec.TrackID, models.TranscriptFailed, "", msg)
			o.publishRecordEvent(ctx, rec, models.JobFailed, rec.Progress, msg)
			o.log.Warn().
				Str("jobId", rec.ID).
				Str("trackId", rec.TrackID).
				Time("lastAttemptAt", rec.LastAttemptAt).
				Msg("Stale job marked interrupted")
			continue
		}
		o.spawnLocked(rec, true)
		resumed++
	}

	if resumed > 0 {
		o.log.Info().Int("resumed", resumed).Msg("Interrupted jobs re-attached")
	}
	return resumed, nil
}

// CancelJob cancels the track's active job. Returns false when nothing is
// in flight for the track.
func (o *Orchestrator) CancelJob(trackID string) bool {
	o.mu.Lock()
	j, ok := o.active[trackID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	j.cancelJob()
	return true
}

// RetryJob manually re-enters a failed job at uploading with a cleared
// retry counter.
func (o *Orchestrator) RetryJob(ctx context.Context, jobID string) (*Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, fmt.Errorf("orchestrator is shut down")
	}

	rec, err := o.store.JobRecord(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j, ok := o.active[rec.TrackID]; ok {
		return &Handle{j: j}, nil
	}
	if err := o.store.ReactivateJob(ctx, jobID); err != nil {
		return nil, err
	}

	rec.Status = models.JobUploading
	rec.Progress = 0
	rec.RetryCount = 0
	rec.ErrorMessage = ""
	rec.RemoteFileID = ""
	rec.RemoteJobID = ""
	_ = o.store.SetRemoteRefs(ctx, rec.ID, "", "")
	_ = o.store.UpdateTranscriptStatus(ctx, rec.TrackID, models.TranscriptPending, "", "")

	return &Handle{j: o.spawnLocked(*rec, false)}, nil
}

// ActiveJobs returns a snapshot of every job currently in flight.
func (o *Orchestrator) ActiveJobs() []models.JobRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.JobRecord, 0, len(o.active))
	for _, j := range o.active {
		out = append(out, j.snapshot())
	}
	return out
}

// Shutdown cancels every running job and waits for the runners to drain.
// In-flight records stay non-terminal in the store and are picked up by
// Resume on the next start.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.cancelAll()

	drained := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish removes a terminal job from the active map.
func (o *Orchestrator) finish(j *job) {
	o.mu.Lock()
	if o.active[j.trackID] == j {
		delete(o.active, j.trackID)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) publishRecordEvent(ctx context.Context, rec models.JobRecord, status models.JobStatus, progress float64, errMsg string) {
	event := models.JobStatusEvent{
		EventType:    models.EventTypeJobStatus,
		TrackID:      rec.TrackID,
		JobID:        rec.ID,
		Status:       string(status),
		Progress:     progress,
		RetryCount:   rec.RetryCount,
		ErrorMessage: errMsg,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := o.publisher.PublishJobStatus(ctx, rec.TrackID, event); err != nil {
		o.log.Warn().Err(err).Str("jobId", rec.ID).Msg("Job status publish failed")
	}
}
