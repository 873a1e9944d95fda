// Package mock provides a scripted in-memory STT client for tests and demos.
// It reproduces the async provider's observable behavior without network
// access: uploads hand out file ids, jobs walk a scripted status sequence,
// and the transcript is whatever token stream the script carries. Failure
// injection covers every pipeline stage.
package mock

import (
	"context"
	"fmt"
	"sync"

	"audiobook-transcription-service/internal/models"
	"audiobook-transcription-service/internal/service/stt"
)

func conf(v float64) *float64 { return &v }

// DefaultTokens is the token stream handed out when a script carries none.
var DefaultTokens = []models.Token{
	{Text: "Hello", StartMs: 0, EndMs: 420, Speaker: "1", Confidence: conf(1.0)},
	{Text: "world", StartMs: 470, EndMs: 900, Speaker: "1", Confidence: conf(1.0)},
	{Text: ".", StartMs: 900, EndMs: 900, Confidence: conf(1.0), Punctuation: models.PunctuationSentence},
}

// Script describes how a mock client behaves. Error slices are consumed one
// entry per call; a nil entry means that call succeeds. Once a slice is
// exhausted, further calls succeed.
type Script struct {
	UploadErrs []error
	CreateErrs []error

	// Statuses is consumed one entry per poll; the last entry repeats.
	// Empty means the job completes on the first poll.
	Statuses []stt.StatusInfo

	Tokens   []models.Token
	FetchErr error
}

// Client implements stt.Client with scripted responses. Safe for concurrent
// use; call counters are exposed for assertions.
type Client struct {
	mu     sync.Mutex
	script Script

	uploadCalls  int
	createCalls  int
	pollCalls    int
	fetchCalls   int
	cleanupCalls int
}

// New creates a mock client driven by the given script.
func New(script Script) *Client {
	return &Client{script: script}
}

// Upload hands out a synthetic file id, or the next scripted upload error.
func (c *Client) Upload(ctx context.Context, localPath string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := c.uploadCalls
	c.uploadCalls++
	if call < len(c.script.UploadErrs) && c.script.UploadErrs[call] != nil {
		return "", c.script.UploadErrs[call]
	}
	return fmt.Sprintf("mock-file-%d", call+1), nil
}

// CreateJob hands out a synthetic job id, or the next scripted create error.
func (c *Client) CreateJob(ctx context.Context, req stt.JobRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := c.createCalls
	c.createCalls++
	if call < len(c.script.CreateErrs) && c.script.CreateErrs[call] != nil {
		return "", c.script.CreateErrs[call]
	}
	return fmt.Sprintf("mock-job-%d", call+1), nil
}

// PollStatus walks the scripted status sequence; the last entry repeats.
func (c *Client) PollStatus(ctx context.Context, jobID string) (stt.StatusInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := c.pollCalls
	c.pollCalls++
	if len(c.script.Statuses) == 0 {
		return stt.StatusInfo{Status: stt.StatusCompleted}, nil
	}
	if call >= len(c.script.Statuses) {
		call = len(c.script.Statuses) - 1
	}
	return c.script.Statuses[call], nil
}

// FetchTokens returns the scripted token stream.
func (c *Client) FetchTokens(ctx context.Context, jobID string) ([]models.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetchCalls++
	if c.script.FetchErr != nil {
		return nil, c.script.FetchErr
	}
	if c.script.Tokens != nil {
		return c.script.Tokens, nil
	}
	return DefaultTokens, nil
}

// Cleanup records the call and does nothing.
func (c *Client) Cleanup(ctx context.Context, jobID, fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupCalls++
}

// UploadCalls returns how many uploads were attempted.
func (c *Client) UploadCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploadCalls
}

// CreateCalls returns how many remote jobs were created.
func (c *Client) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls
}

// PollCalls returns how many status polls were made.
func (c *Client) PollCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollCalls
}

// FetchCalls returns how many transcript fetches were made.
func (c *Client) FetchCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchCalls
}

// CleanupCalls returns how many cleanup calls were made.
func (c *Client) CleanupCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupCalls
}
