package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/service/segment"
	"audiobook-transcription-service/internal/service/stt"
)

// job is one track's transcription in flight. The runner goroutine is the
// only writer of rec between transitions; readers take snapshots under mu.
type job struct {
	id      string
	trackID string
	o       *Orchestrator
	cancel  context.CancelFunc
	done    chan struct{}

	progress *progressTracker
	log      zerolog.Logger

	// per-request remote parameters, empty on resume
	languageHints []string
	contextHint   string

	mu         sync.Mutex
	rec        models.JobRecord
	transcript *models.Transcript
	err        error
	canceled   bool
	watchers   []chan models.JobRecord
}

func (j *job) snapshot() models.JobRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rec
}

func (j *job) terminalErr() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *job) finishedTranscript() *models.Transcript {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transcript
}

func (j *job) subscribe() <-chan models.JobRecord {
	ch := make(chan models.JobRecord, 16)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.rec.Status.IsTerminal() {
		ch <- j.rec
		close(ch)
		return ch
	}
	j.watchers = append(j.watchers, ch)
	return ch
}

func (j *job) cancelJob() {
	j.mu.Lock()
	j.canceled = true
	j.mu.Unlock()
	j.cancel()
}

func (j *job) wasCanceled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.canceled
}

// notifyLocked fans the current record out to watchers. Caller holds j.mu.
// A slow watcher misses intermediate updates, but a terminal record always
// displaces a buffered one so the end state is never lost.
func (j *job) notifyLocked() {
	terminal := j.rec.Status.IsTerminal()
	for _, ch := range j.watchers {
		select {
		case ch <- j.rec:
		default:
			if terminal {
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- j.rec:
				default:
				}
			}
		}
	}
	if terminal {
		for _, ch := range j.watchers {
			close(ch)
		}
		j.watchers = nil
	}
}

// setStatus persists a state transition, then mirrors it into the local
// snapshot and publishes it. Errors here are the store refusing the write,
// which is always terminal for the job.
func (j *job) setStatus(ctx context.Context, status models.JobStatus, progress float64, errMsg string) error {
	if err := j.o.store.UpdateJobStatus(ctx, j.id, status, progress, errMsg); err != nil {
		return models.NewTerminalError(models.ErrKindPersistenceFailed, "persisting job status "+string(status), err)
	}
	j.mu.Lock()
	j.rec.Status = status
	j.rec.Progress = progress
	j.rec.ErrorMessage = errMsg
	j.rec.UpdatedAt = time.Now()
	j.notifyLocked()
	rec := j.rec
	j.mu.Unlock()

	j.o.publishRecordEvent(ctx, rec, status, progress, errMsg)
	return nil
}

// updateProgress advances progress within the current stage. Persists and
// publishes only when the throttle allows (or force is set).
func (j *job) updateProgress(ctx context.Context, v float64, force bool) {
	clamped, emit := j.progress.Update(v, force)
	if !emit {
		return
	}
	if err := j.o.store.UpdateJobProgress(ctx, j.id, clamped); err != nil {
		j.log.Warn().Err(err).Msg("Progress persist failed")
	}
	j.mu.Lock()
	j.rec.Progress = clamped
	j.notifyLocked()
	rec := j.rec
	j.mu.Unlock()
	j.o.publishRecordEvent(ctx, rec, rec.Status, clamped, "")
}

func (j *job) run(ctx context.Context, resume bool) {
	cfg := j.o.cfg
	attemptResume := resume

	for {
		tr, err := j.attempt(ctx, attemptResume)
		if err == nil {
			j.succeed(tr)
			return
		}
		attemptResume = false

		if ctx.Err() != nil {
			if j.wasCanceled() {
				j.fail(models.NewTerminalError(models.ErrKindCanceled, "job canceled", ctx.Err()))
			} else {
				// Shutdown: leave the record non-terminal so the next
				// start resumes it.
				j.detach()
			}
			return
		}

		j.mu.Lock()
		failed := j.rec.RetryCount + 1
		j.mu.Unlock()

		if !j.o.retry.ShouldRetry(err, failed, cfg.MaxAttempts) {
			if models.IsTransient(err) {
				// Exhausted: record the last failed attempt before the
				// terminal write so the count covers every try.
				j.mu.Lock()
				j.rec.RetryCount = failed
				j.mu.Unlock()
				if perr := j.o.store.RecordAttempt(context.Background(), j.id, failed); perr != nil {
					j.log.Error().Err(perr).Msg("Failed to persist retry count")
				}
			}
			j.fail(err)
			return
		}

		j.mu.Lock()
		j.rec.RetryCount = failed
		j.mu.Unlock()
		if perr := j.o.store.RecordAttempt(context.Background(), j.id, failed); perr != nil {
			j.log.Error().Err(perr).Msg("Failed to persist retry count")
		}
		j.o.metrics.RecordRetry()

		delay := j.o.retry.Delay(failed - 1)
		j.log.Warn().
			Err(err).
			Int("failedAttempts", failed).
			Dur("retryIn", delay).
			Msg("Transient failure, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			if j.wasCanceled() {
				j.fail(models.NewTerminalError(models.ErrKindCanceled, "job canceled", ctx.Err()))
			} else {
				j.detach()
			}
			return
		}

		// Retry re-enters at uploading from scratch: stale remote ids are
		// dropped and progress restarts. The store permits this transition
		// from every non-terminal state.
		j.progress.Reset()
		if perr := j.o.store.SetRemoteRefs(context.Background(), j.id, "", ""); perr != nil {
			j.log.Error().Err(perr).Msg("Failed to clear remote refs")
		}
		j.mu.Lock()
		j.rec.RemoteFileID = ""
		j.rec.RemoteJobID = ""
		j.mu.Unlock()
	}
}

// attempt runs one pass of the upload → transcribe → process sequence.
// On resume it re-enters at the stage the persisted remote ids allow.
func (j *job) attempt(ctx context.Context, resume bool) (*models.Transcript, error) {
	j.mu.Lock()
	fileID := j.rec.RemoteFileID
	remoteJobID := j.rec.RemoteJobID
	status := j.rec.Status
	j.mu.Unlock()
	if !resume {
		fileID, remoteJobID = "", ""
	}

	// A record that reached processing has already had its remote job and
	// file deleted, so the stored ids point at nothing. Resume such a
	// record from upload.
	if resume && status == models.JobProcessing {
		fileID, remoteJobID = "", ""
		j.progress.Reset()
		if perr := j.o.store.SetRemoteRefs(ctx, j.id, "", ""); perr != nil {
			j.log.Warn().Err(perr).Msg("Remote ref clear failed")
		}
		j.mu.Lock()
		j.rec.RemoteFileID = ""
		j.rec.RemoteJobID = ""
		j.mu.Unlock()
	}

	if remoteJobID == "" {
		if err := j.setStatus(ctx, models.JobUploading, j.progress.Value(), ""); err != nil {
			return nil, err
		}

		if fileID == "" {
			uploadStart := time.Now()
			localPath, err := j.o.audio.LocalPath(ctx, j.trackID)
			if err != nil {
				return nil, err
			}
			fileID, err = j.o.client.Upload(ctx, localPath)
			if err != nil {
				return nil, err
			}
			j.o.metrics.RecordStageDuration("upload", time.Since(uploadStart).Seconds())
			if perr := j.o.store.SetRemoteRefs(ctx, j.id, fileID, ""); perr != nil {
				j.log.Warn().Err(perr).Msg("Remote file id persist failed")
			}
			j.mu.Lock()
			j.rec.RemoteFileID = fileID
			j.mu.Unlock()
		}
		j.updateProgress(ctx, progressUploadDone, true)

		req := stt.JobRequest{
			FileID:                 fileID,
			LanguageHints:          j.o.cfg.LanguageHints,
			SpeakerDiarization:     j.o.cfg.SpeakerDiarization,
			LanguageIdentification: j.o.cfg.LanguageIdentification,
			Context:                j.o.cfg.DefaultContext,
		}
		if len(j.languageHints) > 0 {
			req.LanguageHints = j.languageHints
		}
		if j.contextHint != "" {
			if req.Context != "" {
				req.Context += "\n"
			}
			req.Context += j.contextHint
		}
		var err error
		remoteJobID, err = j.o.client.CreateJob(ctx, req)
		if err != nil {
			return nil, err
		}
		if perr := j.o.store.SetRemoteRefs(ctx, j.id, fileID, remoteJobID); perr != nil {
			j.log.Warn().Err(perr).Msg("Remote job id persist failed")
		}
		j.mu.Lock()
		j.rec.RemoteJobID = remoteJobID
		j.mu.Unlock()
		if perr := j.o.store.UpdateTranscriptStatus(ctx, j.trackID, models.TranscriptProcessing, remoteJobID, ""); perr != nil {
			j.log.Warn().Err(perr).Msg("Transcript status persist failed")
		}
	}

	if err := j.setStatus(ctx, models.JobTranscribing, j.progress.Value(), ""); err != nil {
		return nil, err
	}

	transcribeStart := time.Now()
	if err := j.pollUntilComplete(ctx, remoteJobID); err != nil {
		return nil, err
	}
	j.o.metrics.RecordStageDuration("transcribe", time.Since(transcribeStart).Seconds())

	tokens, err := j.o.client.FetchTokens(ctx, remoteJobID)
	if err != nil {
		return nil, err
	}
	j.o.client.Cleanup(ctx, remoteJobID, fileID)

	if err := j.setStatus(ctx, models.JobProcessing, progressTranscribeDone, ""); err != nil {
		return nil, err
	}
	j.progress.Update(progressTranscribeDone, true)

	processStart := time.Now()
	tr, err := j.process(ctx, tokens)
	if err != nil {
		return nil, err
	}
	j.o.metrics.RecordStageDuration("process", time.Since(processStart).Seconds())
	return tr, nil
}

// pollUntilComplete polls the remote job at a fixed cadence until it
// completes, fails, or the polling ceiling elapses. Transport errors are
// tolerated up to a consecutive-failure limit so a momentary blip does not
// restart the whole job.
func (j *job) pollUntilComplete(ctx context.Context, remoteJobID string) error {
	cfg := j.o.cfg
	deadline := time.Now().Add(cfg.PollCeiling)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		info, err := j.o.client.PollStatus(ctx, remoteJobID)
		j.o.metrics.RecordPoll(err)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			consecutiveFailures++
			if consecutiveFailures >= cfg.PollFailureLimit {
				return models.NewTransientError(models.ErrKindRemoteJobFailed,
					"remote status unreachable", err)
			}
			j.log.Warn().Err(err).Int("consecutiveFailures", consecutiveFailures).Msg("Status poll failed")
		} else {
			consecutiveFailures = 0
			switch info.Status {
			case stt.StatusCompleted:
				return nil
			case stt.StatusFailed:
				j.o.client.Cleanup(ctx, remoteJobID, j.snapshot().RemoteFileID)
				return models.NewTerminalError(models.ErrKindRemoteJobFailed,
					"remote transcription failed: "+info.ErrorMessage, nil)
			default:
				j.updateProgress(ctx, transcribeProgress(info.ProgressHint, j.progress.Value()), false)
			}
		}

		if time.Now().After(deadline) {
			return models.NewTerminalError(models.ErrKindPollingTimedOut,
				"remote job did not finish within "+cfg.PollCeiling.String(), nil)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// process segments the token stream and persists transcript plus segments
// in one transaction.
func (j *job) process(ctx context.Context, tokens []models.Token) (*models.Transcript, error) {
	tr, err := j.o.store.LoadTranscript(ctx, j.trackID)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		tr, err = j.o.store.EnsureTranscript(ctx, j.trackID)
		if err != nil {
			return nil, err
		}
	}

	segs := segment.Split(tokens, j.o.cfg.Segmentation)
	segments := make([]models.Segment, len(segs))
	for i, s := range segs {
		s.TranscriptID = tr.ID
		s.OrderIndex = i
		segments[i] = s
	}

	tr.FullText = segment.JoinSegmentText(segments)
	tr.Status = models.TranscriptComplete
	tr.ErrorMessage = ""
	tr.RemoteJobID = j.snapshot().RemoteJobID
	if tr.Language == "" {
		for _, s := range segments {
			if s.Language != "" {
				tr.Language = s.Language
				break
			}
		}
	}

	if err := j.o.store.SaveTranscript(ctx, tr, segments); err != nil {
		return nil, err
	}
	j.o.metrics.RecordTranscript(len(segments), len(tokens))
	return tr, nil
}

func (j *job) succeed(tr *models.Transcript) {
	// Terminal writes use a fresh context so cancellation racing the
	// finish line cannot strand a finished job in a non-terminal state.
	ctx := context.Background()
	if err := j.setStatus(ctx, models.JobCompleted, progressProcessingDone, ""); err != nil {
		j.log.Error().Err(err).Msg("Failed to persist completion")
	}

	var durationMs int64
	segs, err := j.o.store.LoadSegments(ctx, tr.ID)
	if err == nil && len(segs) > 0 {
		durationMs = segs[len(segs)-1].EndMs
	}
	event := models.TranscriptCompletedEvent{
		EventType:    models.EventTypeTranscriptCompleted,
		TrackID:      j.trackID,
		TranscriptID: tr.ID,
		JobID:        j.id,
		Language:     tr.Language,
		SegmentCount: len(segs),
		DurationMs:   durationMs,
		Timestamp:    time.Now().UnixMilli(),
	}
	if perr := j.o.publisher.PublishTranscriptCompleted(ctx, j.trackID, event); perr != nil {
		j.log.Warn().Err(perr).Msg("Transcript completed publish failed")
	}

	j.mu.Lock()
	j.transcript = tr
	j.mu.Unlock()

	j.o.metrics.RecordJobEnd("")
	j.log.Info().Int("segments", len(segs)).Msg("Transcription completed")
	j.finish()
}

func (j *job) fail(err error) {
	ctx := context.Background()
	kind := models.KindOf(err)
	msg := models.ErrorMessageOf(err)

	if perr := j.setStatus(ctx, models.JobFailed, j.progress.Value(), msg); perr != nil {
		j.log.Error().Err(perr).Msg("Failed to persist failure")
	}
	if perr := j.o.store.UpdateTranscriptStatus(ctx, j.trackID, models.TranscriptFailed, "", msg); perr != nil {
		j.log.Warn().Err(perr).Msg("Transcript status persist failed")
	}

	j.mu.Lock()
	j.err = err
	j.mu.Unlock()

	j.o.metrics.RecordJobEnd(string(kind))
	j.log.Error().Err(err).Str("kind", string(kind)).Msg("Transcription failed")
	j.finish()
}

// detach ends the runner without touching the persisted record; used on
// shutdown so the job resumes on the next start.
func (j *job) detach() {
	j.mu.Lock()
	j.err = models.NewTransientError(models.ErrKindInterrupted, "shutdown while in flight", nil)
	j.notifyLocked()
	for _, ch := range j.watchers {
		close(ch)
	}
	j.watchers = nil
	j.mu.Unlock()

	j.o.metrics.JobsActive.Dec()
	j.log.Info().Msg("Runner detached, job will resume on next start")
	j.finish()
}

func (j *job) finish() {
	j.o.finish(j)
	close(j.done)
}
