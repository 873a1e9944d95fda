package pipeline

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"audiobook-transcription-service/internal/models"
)

// retryMultiplier grows the delay 5s → 15s → 45s → ... up to the cap.
const retryMultiplier = 3.0

// retryJitter perturbs each delay by ±10% so simultaneous failures do not
// retry in lockstep.
const retryJitter = 0.1

// Scheduler computes backoff delays and decides whether a failed attempt
// may be re-dispatched.
type Scheduler struct {
	initial time.Duration
	max     time.Duration
}

// NewScheduler creates a retry scheduler. Non-positive arguments fall back
// to the 5s initial / 300s cap reference schedule.
func NewScheduler(initial, max time.Duration) *Scheduler {
	if initial <= 0 {
		initial = 5 * time.Second
	}
	if max <= 0 {
		max = 300 * time.Second
	}
	return &Scheduler{initial: initial, max: max}
}

// Delay returns the jittered backoff delay after the given number of prior
// failures (0 = first failure).
func (s *Scheduler) Delay(priorFailures int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	b.Multiplier = retryMultiplier
	b.RandomizationFactor = retryJitter
	b.MaxInterval = s.max
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 0; i < priorFailures; i++ {
		d = b.NextBackOff()
	}
	return d
}

// ShouldRetry reports whether err is eligible for another attempt given
// how many attempts already failed. Only transient failures are retried;
// validation and remote-rejection errors are terminal on first occurrence.
func (s *Scheduler) ShouldRetry(err error, failedAttempts, maxAttempts int) bool {
	if !models.IsTransient(err) {
		return false
	}
	return failedAttempts < maxAttempts
}
