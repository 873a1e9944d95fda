// Package store persists job records, transcripts and segments. It is the
// pipeline's single source of truth: every lifecycle transition is written
// here before the next stage begins, which is what makes crash-resume
// correct. All multi-row writes happen inside one transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/observability/logging"
)

// Errors returned by the store.
var (
	// ErrIllegalTransition - Requested status change violates the job
	// lifecycle ordering. Out-of-order writes can never be observed.
	ErrIllegalTransition = errors.New("illegal job status transition")
	// ErrNotFound - No row matches the given identifier.
	ErrNotFound = errors.New("record not found")
)

type jobRecordRow struct {
	ID            string `gorm:"primaryKey;size:36"`
	TrackID       string `gorm:"index;size:64"`
	RemoteFileID  string
	RemoteJobID   string
	Status        string `gorm:"index"`
	Progress      float64
	RetryCount    int
	LastAttemptAt time.Time
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (jobRecordRow) TableName() string { return "job_records" }

type transcriptRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	TrackID      string `gorm:"uniqueIndex;size:64"`
	Language     string
	FullText     string
	Status       string
	RemoteJobID  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (transcriptRow) TableName() string { return "transcripts" }

type segmentRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	TranscriptID string `gorm:"index;size:36"`
	Text         string
	StartMs      int64
	EndMs        int64
	Speaker      string
	Language     string
	Confidence   *float64
	OrderIndex   int
}

func (segmentRow) TableName() string { return "segments" }

// Store wraps the relational database.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open opens (and migrates) the SQLite database at path. Use ":memory:"
// for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&jobRecordRow{}, &transcriptRow{}, &segmentRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{
		db:  db,
		log: logging.WithComponent("store"),
	}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateJobRecord inserts a new job record. Fills in ID and timestamps when
// absent.
func (s *Store) CreateJobRecord(ctx context.Context, rec *models.JobRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = models.JobQueued
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.LastAttemptAt.IsZero() {
		rec.LastAttemptAt = now
	}

	row := toJobRow(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create job record: %w", err)
	}
	return nil
}

// JobRecord loads one job record by id.
func (s *Store) JobRecord(ctx context.Context, id string) (*models.JobRecord, error) {
	var row jobRecordRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job record: %w", err)
	}
	rec := fromJobRow(row)
	return &rec, nil
}

// ActiveJobForTrack returns the track's non-terminal job record, or nil
// when the track has no job in flight.
func (s *Store) ActiveJobForTrack(ctx context.Context, trackID string) (*models.JobRecord, error) {
	var row jobRecordRow
	err := s.db.WithContext(ctx).
		Where("track_id = ? AND status NOT IN ?", trackID,
			[]string{string(models.JobCompleted), string(models.JobFailed)}).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active job: %w", err)
	}
	rec := fromJobRow(row)
	return &rec, nil
}

// LatestJobRecordForTrack returns the track's most recent job record of
// any status, or nil when the track has never had one.
func (s *Store) LatestJobRecordForTrack(ctx context.Context, trackID string) (*models.JobRecord, error) {
	var row jobRecordRow
	err := s.db.WithContext(ctx).
		Where("track_id = ?", trackID).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest job: %w", err)
	}
	rec := fromJobRow(row)
	return &rec, nil
}

// LoadActiveJobRecords returns every non-terminal job record, oldest first.
// Used at startup to resume interrupted jobs.
func (s *Store) LoadActiveJobRecords(ctx context.Context) ([]models.JobRecord, error) {
	var rows []jobRecordRow
	err := s.db.WithContext(ctx).
		Where("status NOT IN ?",
			[]string{string(models.JobCompleted), string(models.JobFailed)}).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load active jobs: %w", err)
	}
	recs := make([]models.JobRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, fromJobRow(row))
	}
	return recs, nil
}

// ListJobRecords returns the most recent job records, newest first.
func (s *Store) ListJobRecords(ctx context.Context, limit int) ([]models.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []jobRecordRow
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	recs := make([]models.JobRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, fromJobRow(row))
	}
	return recs, nil
}

// UpdateJobStatus transitions a job to the given status, persisting the new
// progress and error message in the same write. Illegal jumps are rejected
// with ErrIllegalTransition inside the transaction, so a racing writer can
// never push a job backwards.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, progress float64, errMsg string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row jobRecordRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		current := models.JobStatus(row.Status)
		if current != status && !current.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, status)
		}
		updates := map[string]any{
			"status":          string(status),
			"progress":        progress,
			"error_message":   errMsg,
			"last_attempt_at": time.Now().UTC(),
			"updated_at":      time.Now().UTC(),
		}
		return tx.Model(&jobRecordRow{}).Where("id = ?", id).Updates(updates).Error
	})
}

// UpdateJobProgress persists a progress value without a status change.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, progress float64) error {
	res := s.db.WithContext(ctx).Model(&jobRecordRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"progress":        progress,
			"last_attempt_at": time.Now().UTC(),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAttempt persists the retry counter after a failed attempt.
func (s *Store) RecordAttempt(ctx context.Context, id string, retryCount int) error {
	res := s.db.WithContext(ctx).Model(&jobRecordRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count":     retryCount,
			"last_attempt_at": time.Now().UTC(),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("record attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRemoteRefs persists the remote file and job identifiers. These must be
// durable before polling starts, or a restart would create a duplicate
// remote job.
func (s *Store) SetRemoteRefs(ctx context.Context, id, remoteFileID, remoteJobID string) error {
	res := s.db.WithContext(ctx).Model(&jobRecordRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"remote_file_id": remoteFileID,
			"remote_job_id":  remoteJobID,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("set remote refs: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReactivateJob re-enters a failed job at uploading with a cleared retry
// counter and progress. This is the manual retry path.
func (s *Store) ReactivateJob(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row jobRecordRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		current := models.JobStatus(row.Status)
		if !current.CanTransition(models.JobUploading) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, models.JobUploading)
		}
		return tx.Model(&jobRecordRow{}).Where("id = ?", id).Updates(map[string]any{
			"status":          string(models.JobUploading),
			"progress":        0.0,
			"retry_count":     0,
			"error_message":   "",
			"last_attempt_at": time.Now().UTC(),
			"updated_at":      time.Now().UTC(),
		}).Error
	})
}

// EnsureTranscript returns the track's transcript, creating a pending row
// when none exists yet.
func (s *Store) EnsureTranscript(ctx context.Context, trackID string) (*models.Transcript, error) {
	var tr models.Transcript
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row transcriptRow
		err := tx.First(&row, "track_id = ?", trackID).Error
		if err == nil {
			tr = fromTranscriptRow(row)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		now := time.Now().UTC()
		row = transcriptRow{
			ID:        uuid.NewString(),
			TrackID:   trackID,
			Status:    string(models.TranscriptPending),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		tr = fromTranscriptRow(row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure transcript: %w", err)
	}
	return &tr, nil
}

// UpdateTranscriptStatus updates the transcript row in place on a job
// status change.
func (s *Store) UpdateTranscriptStatus(ctx context.Context, trackID string, status models.TranscriptStatus, remoteJobID, errMsg string) error {
	updates := map[string]any{
		"status":        string(status),
		"error_message": errMsg,
		"updated_at":    time.Now().UTC(),
	}
	if remoteJobID != "" {
		updates["remote_job_id"] = remoteJobID
	}
	res := s.db.WithContext(ctx).Model(&transcriptRow{}).
		Where("track_id = ?", trackID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update transcript status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveTranscript persists the finished transcript and its segments in a
// single transaction: prior segments are replaced, full text and status are
// written together. A crash can never leave a half-saved transcript.
func (s *Store) SaveTranscript(ctx context.Context, tr *models.Transcript, segments []models.Segment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		tr.UpdatedAt = now
		if tr.ID == "" {
			tr.ID = uuid.NewString()
			tr.CreatedAt = now
		}

		row := toTranscriptRow(tr)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("transcript_id = ?", tr.ID).Delete(&segmentRow{}).Error; err != nil {
			return err
		}
		for i := range segments {
			segments[i].TranscriptID = tr.ID
			if segments[i].ID == "" {
				segments[i].ID = uuid.NewString()
			}
			segRow := toSegmentRow(segments[i])
			if err := tx.Create(&segRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.NewTerminalError(models.ErrKindPersistenceFailed, "save transcript", err)
	}
	s.log.Debug().
		Str("trackId", tr.TrackID).
		Int("segments", len(segments)).
		Msg("Transcript persisted")
	return nil
}

// LoadTranscript returns the track's transcript, or nil when none exists.
func (s *Store) LoadTranscript(ctx context.Context, trackID string) (*models.Transcript, error) {
	var row transcriptRow
	err := s.db.WithContext(ctx).First(&row, "track_id = ?", trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	tr := fromTranscriptRow(row)
	return &tr, nil
}

// LoadSegments returns a transcript's segments ordered by OrderIndex.
func (s *Store) LoadSegments(ctx context.Context, transcriptID string) ([]models.Segment, error) {
	var rows []segmentRow
	err := s.db.WithContext(ctx).
		Where("transcript_id = ?", transcriptID).
		Order("order_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	segs := make([]models.Segment, 0, len(rows))
	for _, row := range rows {
		segs = append(segs, fromSegmentRow(row))
	}
	return segs, nil
}

// ResetTranscript clears a transcript for regeneration: prior segments are
// deleted and the row returns to pending inside one transaction.
func (s *Store) ResetTranscript(ctx context.Context, trackID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row transcriptRow
		err := tx.First(&row, "track_id = ?", trackID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("transcript_id = ?", row.ID).Delete(&segmentRow{}).Error; err != nil {
			return err
		}
		return tx.Model(&transcriptRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"status":        string(models.TranscriptPending),
			"full_text":     "",
			"language":      "",
			"remote_job_id": "",
			"error_message": "",
			"updated_at":    time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("reset transcript: %w", err)
	}
	return nil
}

func toJobRow(rec *models.JobRecord) jobRecordRow {
	return jobRecordRow{
		ID:            rec.ID,
		TrackID:       rec.TrackID,
		RemoteFileID:  rec.RemoteFileID,
		RemoteJobID:   rec.RemoteJobID,
		Status:        string(rec.Status),
		Progress:      rec.Progress,
		RetryCount:    rec.RetryCount,
		LastAttemptAt: rec.LastAttemptAt,
		ErrorMessage:  rec.ErrorMessage,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func fromJobRow(row jobRecordRow) models.JobRecord {
	return models.JobRecord{
		ID:            row.ID,
		TrackID:       row.TrackID,
		RemoteFileID:  row.RemoteFileID,
		RemoteJobID:   row.RemoteJobID,
		Status:        models.JobStatus(row.Status),
		Progress:      row.Progress,
		RetryCount:    row.RetryCount,
		LastAttemptAt: row.LastAttemptAt,
		ErrorMessage:  row.ErrorMessage,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func toTranscriptRow(tr *models.Transcript) transcriptRow {
	return transcriptRow{
		ID:           tr.ID,
		TrackID:      tr.TrackID,
		Language:     tr.Language,
		FullText:     tr.FullText,
		Status:       string(tr.Status),
		RemoteJobID:  tr.RemoteJobID,
		ErrorMessage: tr.ErrorMessage,
		CreatedAt:    tr.CreatedAt,
		UpdatedAt:    tr.UpdatedAt,
	}
}

func fromTranscriptRow(row transcriptRow) models.Transcript {
	return models.Transcript{
		ID:           row.ID,
		TrackID:      row.TrackID,
		Language:     row.Language,
		FullText:     row.FullText,
		Status:       models.TranscriptStatus(row.Status),
		RemoteJobID:  row.RemoteJobID,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toSegmentRow(seg models.Segment) segmentRow {
	return segmentRow(seg)
}

func fromSegmentRow(row segmentRow) models.Segment {
	return models.Segment(row)
}
