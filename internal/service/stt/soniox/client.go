// Package soniox provides an stt.Client for the Soniox async speech-to-text API.
package soniox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/observability/logging"
	"audiobook-transcription-service/internal/observability/metrics"
	"audiobook-transcription-service/internal/schema"
	"audiobook-transcription-service/internal/service/stt"
)

const (
	// DefaultBaseURL is the Soniox API endpoint.
	DefaultBaseURL = "https://api.soniox.com"
	// DefaultModel is the async transcription model.
	DefaultModel = "stt-async-preview"
)

// Config holds Soniox client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// Client implements stt.Client against the Soniox async API.
type Client struct {
	cfg       Config
	http      *http.Client
	validator *schema.Validator
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New creates a Soniox client. Zero-value config fields fall back to the
// package defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.RequestTimeout},
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("soniox"),
	}
}

type fileResponse struct {
	ID string `json:"id"`
}

type transcriptionResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// rawToken mirrors one token object in the Soniox transcript payload.
// end_ms and duration_ms are both optional; time bounds resolve as
// end_ms, else start_ms+duration_ms, else start_ms (zero-length).
type rawToken struct {
	Text       string   `json:"text"`
	StartMs    int64    `json:"start_ms"`
	EndMs      *int64   `json:"end_ms"`
	DurationMs *int64   `json:"duration_ms"`
	Speaker    string   `json:"speaker"`
	Language   string   `json:"language"`
	Confidence *float64 `json:"confidence"`
}

type transcriptResponse struct {
	Tokens []rawToken `json:"tokens"`
}

// Upload sends the local audio file as multipart/form-data to /v1/files.
func (c *Client) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", models.NewTerminalError(models.ErrKindInvalidAudioFile,
			fmt.Sprintf("cannot open audio file %s", localPath), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", models.NewTerminalError(models.ErrKindInvalidAudioFile,
			fmt.Sprintf("cannot stat audio file %s", localPath), err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(localPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/files", pr)
	if err != nil {
		return "", models.NewTerminalError(models.ErrKindUploadFailed, "build upload request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.RecordSTTRequest("upload", err, time.Since(start).Seconds())
	if err != nil {
		return "", models.NewTransientError(models.ErrKindUploadFailed, "upload audio", err)
	}
	defer resp.Body.Close()

	// 200 and 201 are both legitimate success responses here.
	if resp.StatusCode/100 != 2 {
		return "", c.httpError(models.ErrKindUploadFailed, "upload audio", resp)
	}

	var out fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", models.NewTerminalError(models.ErrKindMalformedResponse, "decode upload response", err)
	}
	if out.ID == "" {
		return "", models.NewTerminalError(models.ErrKindMalformedResponse, "upload response missing file id", nil)
	}

	c.log.Debug().
		Str("fileId", out.ID).
		Int64("bytes", info.Size()).
		Msg("Audio file uploaded")
	c.metrics.RecordUploadBytes(info.Size())
	return out.ID, nil
}

// CreateJob starts a remote transcription via /v1/transcriptions.
func (c *Client) CreateJob(ctx context.Context, jobReq stt.JobRequest) (string, error) {
	body := map[string]any{
		"file_id":                        jobReq.FileID,
		"model":                          c.cfg.Model,
		"language_hints":                 jobReq.LanguageHints,
		"enable_speaker_diarization":     jobReq.SpeakerDiarization,
		"enable_language_identification": jobReq.LanguageIdentification,
	}
	if jobReq.Context != "" {
		body["context"] = jobReq.Context
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", models.NewTerminalError(models.ErrKindJobCreationFailed, "encode job request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/transcriptions", bytes.NewReader(payload))
	if err != nil {
		return "", models.NewTerminalError(models.ErrKindJobCreationFailed, "build job request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.RecordSTTRequest("create_job", err, time.Since(start).Seconds())
	if err != nil {
		return "", models.NewTransientError(models.ErrKindJobCreationFailed, "create remote job", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", c.httpError(models.ErrKindJobCreationFailed, "create remote job", resp)
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", models.NewTerminalError(models.ErrKindMalformedResponse, "decode job response", err)
	}
	if out.ID == "" {
		return "", models.NewTerminalError(models.ErrKindMalformedResponse, "job response missing id", nil)
	}

	c.log.Debug().Str("jobId", out.ID).Str("fileId", jobReq.FileID).Msg("Remote transcription created")
	return out.ID, nil
}

// PollStatus fetches the remote job state from /v1/transcriptions/{id}.
func (c *Client) PollStatus(ctx context.Context, jobID string) (stt.StatusInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/v1/transcriptions/"+jobID, nil)
	if err != nil {
		return stt.StatusInfo{}, models.NewTerminalError(models.ErrKindRemoteJobFailed, "build poll request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.RecordSTTRequest("poll", err, time.Since(start).Seconds())
	if err != nil {
		return stt.StatusInfo{}, models.NewTransientError(models.ErrKindRemoteJobFailed, "poll remote job", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return stt.StatusInfo{}, c.httpError(models.ErrKindRemoteJobFailed, "poll remote job", resp)
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return stt.StatusInfo{}, models.NewTerminalError(models.ErrKindMalformedResponse, "decode poll response", err)
	}

	info := stt.StatusInfo{ErrorMessage: out.ErrorMessage}
	switch out.Status {
	case "queued":
		info.Status = stt.StatusQueued
	case "processing":
		info.Status = stt.StatusProcessing
	case "completed":
		info.Status = stt.StatusCompleted
	case "error":
		// Soniox reports terminal failure as the literal status "error".
		info.Status = stt.StatusFailed
	default:
		return stt.StatusInfo{}, models.NewTerminalError(models.ErrKindMalformedResponse,
			fmt.Sprintf("unknown remote status %q", out.Status), nil)
	}
	return info, nil
}

// FetchTokens retrieves and converts the finished token stream.
func (c *Client) FetchTokens(ctx context.Context, jobID string) ([]models.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/v1/transcriptions/"+jobID+"/transcript", nil)
	if err != nil {
		return nil, models.NewTerminalError(models.ErrKindRemoteJobFailed, "build transcript request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.RecordSTTRequest("fetch_tokens", err, time.Since(start).Seconds())
	if err != nil {
		return nil, models.NewTransientError(models.ErrKindRemoteJobFailed, "fetch transcript", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, c.httpError(models.ErrKindRemoteJobFailed, "fetch transcript", resp)
	}

	var out transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, models.NewTerminalError(models.ErrKindMalformedResponse, "decode transcript response", err)
	}

	tokens := make([]models.Token, 0, len(out.Tokens))
	for _, rt := range out.Tokens {
		tokens = append(tokens, rt.toToken())
	}
	if err := c.validator.ValidateTokens(tokens); err != nil {
		return nil, err
	}

	c.log.Debug().Str("jobId", jobID).Int("tokens", len(tokens)).Msg("Transcript tokens fetched")
	return tokens, nil
}

// Cleanup deletes the remote transcription and file. Best-effort only.
func (c *Client) Cleanup(ctx context.Context, jobID, fileID string) {
	if jobID != "" {
		c.delete(ctx, "/v1/transcriptions/"+jobID)
	}
	if fileID != "" {
		c.delete(ctx, "/v1/files/"+fileID)
	}
}

func (c *Client) delete(ctx context.Context, path string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.BaseURL+path, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("Cleanup request build failed")
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("Cleanup request failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("Cleanup rejected by remote")
	}
}

// httpError turns a non-2xx response into a classified JobError.
// 5xx, 408 and 429 are transient; other client errors are terminal.
func (c *Client) httpError(kind models.ErrorKind, op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("%s: remote returned %d", op, resp.StatusCode)
	cause := fmt.Errorf("%s", bytes.TrimSpace(snippet))
	if len(snippet) == 0 {
		cause = nil
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests {
		return models.NewTransientError(kind, msg, cause)
	}
	return models.NewTerminalError(kind, msg, cause)
}

func (rt rawToken) toToken() models.Token {
	end := rt.StartMs
	if rt.EndMs != nil {
		end = *rt.EndMs
	} else if rt.DurationMs != nil {
		end = rt.StartMs + *rt.DurationMs
	}
	return models.Token{
		Text:        rt.Text,
		StartMs:     rt.StartMs,
		EndMs:       end,
		Speaker:     rt.Speaker,
		Language:    rt.Language,
		Confidence:  rt.Confidence,
		Punctuation: models.ClassifyPunctuation(rt.Text),
	}
}
