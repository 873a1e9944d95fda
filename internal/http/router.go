// Package http exposes the service's REST API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"audiobook-transcription-service/internal/export"
	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/service/pipeline"
	"audiobook-transcription-service/internal/store"
)

// JobService is the slice of the orchestrator the API needs. It deals in
// record snapshots; long-lived handles stay inside the service.
type JobService interface {
	RequestTranscription(ctx context.Context, req pipeline.Request) (models.JobRecord, error)
	CancelJob(trackID string) bool
	RetryJob(ctx context.Context, jobID string) (models.JobRecord, error)
	ActiveJobs() []models.JobRecord
}

// OrchestratorService adapts the pipeline orchestrator to JobService.
type OrchestratorService struct {
	Orchestrator *pipeline.Orchestrator
}

func (s OrchestratorService) RequestTranscription(ctx context.Context, req pipeline.Request) (models.JobRecord, error) {
	h, err := s.Orchestrator.RequestTranscription(ctx, req)
	if err != nil {
		return models.JobRecord{}, err
	}
	return h.Snapshot(), nil
}

func (s OrchestratorService) CancelJob(trackID string) bool {
	return s.Orchestrator.CancelJob(trackID)
}

func (s OrchestratorService) RetryJob(ctx context.Context, jobID string) (models.JobRecord, error) {
	h, err := s.Orchestrator.RetryJob(ctx, jobID)
	if err != nil {
		return models.JobRecord{}, err
	}
	return h.Snapshot(), nil
}

func (s OrchestratorService) ActiveJobs() []models.JobRecord {
	return s.Orchestrator.ActiveJobs()
}

// TranscriptReader is the read-only slice of the store the API needs.
type TranscriptReader interface {
	JobRecord(ctx context.Context, id string) (*models.JobRecord, error)
	ListJobRecords(ctx context.Context, limit int) ([]models.JobRecord, error)
	LoadTranscript(ctx context.Context, trackID string) (*models.Transcript, error)
	LoadSegments(ctx context.Context, transcriptID string) ([]models.Segment, error)
}

type createJobRequest struct {
	TrackID       string   `json:"trackId"`
	LanguageHints []string `json:"languageHints,omitempty"`
	ContextHint   string   `json:"contextHint,omitempty"`
	Regenerate    bool     `json:"regenerate,omitempty"`
}

type jobResponse struct {
	JobID        string  `json:"jobId"`
	TrackID      string  `json:"trackId"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	RetryCount   int     `json:"retryCount"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

type segmentResponse struct {
	Text       string   `json:"text"`
	StartMs    int64    `json:"startMs"`
	EndMs      int64    `json:"endMs"`
	Speaker    string   `json:"speaker,omitempty"`
	Language   string   `json:"language,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type transcriptResponse struct {
	TranscriptID string            `json:"transcriptId"`
	TrackID      string            `json:"trackId"`
	Status       string            `json:"status"`
	Language     string            `json:"language,omitempty"`
	FullText     string            `json:"fullText,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Segments     []segmentResponse `json:"segments"`
}

func jobToResponse(rec models.JobRecord) jobResponse {
	return jobResponse{
		JobID:        rec.ID,
		TrackID:      rec.TrackID,
		Status:       string(rec.Status),
		Progress:     rec.Progress,
		RetryCount:   rec.RetryCount,
		ErrorMessage: rec.ErrorMessage,
	}
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(jobs JobService, reader TranscriptReader) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{jobs: jobs, reader: reader}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", h.createJob)
		r.Get("/jobs", h.listJobs)
		r.Get("/jobs/{jobID}", h.getJob)
		r.Post("/jobs/{jobID}/retry", h.retryJob)
		r.Post("/tracks/{trackID}/cancel", h.cancelTrack)
		r.Get("/transcripts/{trackID}", h.getTranscript)
		r.Get("/transcripts/{trackID}/export.srt", h.exportSRT)
		r.Get("/transcripts/{trackID}/export.txt", h.exportText)
	})

	return r
}

type handlers struct {
	jobs   JobService
	reader TranscriptReader
}

func (h *handlers) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	rec, err := h.jobs.RequestTranscription(r.Context(), pipeline.Request{
		TrackID:       req.TrackID,
		LanguageHints: req.LanguageHints,
		ContextHint:   req.ContextHint,
		Regenerate:    req.Regenerate,
	})
	if err != nil {
		log.Error().Err(err).Str("trackId", req.TrackID).Msg("Job request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, jobToResponse(rec))
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	if r.URL.Query().Get("active") == "true" {
		recs := h.jobs.ActiveJobs()
		out := make([]jobResponse, 0, len(recs))
		for _, rec := range recs {
			out = append(out, jobToResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	recs, err := h.reader.ListJobRecords(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]jobResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, jobToResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reader.JobRecord(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobToResponse(*rec))
}

func (h *handlers) retryJob(w http.ResponseWriter, r *http.Request) {
	rec, err := h.jobs.RetryJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, jobToResponse(rec))
}

func (h *handlers) cancelTrack(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	if !h.jobs.CancelJob(trackID) {
		writeError(w, http.StatusNotFound, "no active job for track")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"trackId": trackID, "status": "canceling"})
}

func (h *handlers) getTranscript(w http.ResponseWriter, r *http.Request) {
	tr, segs, ok := h.loadTranscript(w, r)
	if !ok {
		return
	}

	resp := transcriptResponse{
		TranscriptID: tr.ID,
		TrackID:      tr.TrackID,
		Status:       string(tr.Status),
		Language:     tr.Language,
		FullText:     tr.FullText,
		ErrorMessage: tr.ErrorMessage,
		Segments:     make([]segmentResponse, 0, len(segs)),
	}
	for _, s := range segs {
		resp.Segments = append(resp.Segments, segmentResponse{
			Text:       s.Text,
			StartMs:    s.StartMs,
			EndMs:      s.EndMs,
			Speaker:    s.Speaker,
			Language:   s.Language,
			Confidence: s.Confidence,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) exportSRT(w http.ResponseWriter, r *http.Request) {
	_, segs, ok := h.loadTranscript(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.SRT(segs)))
}

func (h *handlers) exportText(w http.ResponseWriter, r *http.Request) {
	_, segs, ok := h.loadTranscript(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.TimestampedText(segs)))
}

func (h *handlers) loadTranscript(w http.ResponseWriter, r *http.Request) (*models.Transcript, []models.Segment, bool) {
	trackID := chi.URLParam(r, "trackID")
	tr, err := h.reader.LoadTranscript(r.Context(), trackID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}
	if tr == nil {
		writeError(w, http.StatusNotFound, "no transcript for track")
		return nil, nil, false
	}
	segs, err := h.reader.LoadSegments(r.Context(), tr.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}
	return tr, segs, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
