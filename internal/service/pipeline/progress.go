package pipeline

import (
	"sync"
	"time"
)

// Stage weight bands: upload fills [0, 0.30), remote transcription
// [0.30, 0.90), local processing [0.90, 1.0].
const (
	progressUploadDone     = 0.30
	progressTranscribeDone = 0.90
	progressProcessingDone = 1.0

	// pollCreep advances the transcribing band per poll when the remote
	// reports no progress hint, bounded so it never claims the stage is
	// nearly done.
	pollCreep    = 0.005
	pollCreepCap = 0.88
)

// progressTracker keeps a job's progress monotonically non-decreasing and
// throttles how often updates are published. The one sanctioned decrease
// is an explicit Reset on retry.
type progressTracker struct {
	mu          sync.Mutex
	value       float64
	lastEmit    time.Time
	minInterval time.Duration
}

func newProgressTracker(minInterval time.Duration) *progressTracker {
	return &progressTracker{minInterval: minInterval}
}

// Update proposes a new progress value. The returned value is clamped to
// be monotonic; emit reports whether the update should be published now.
// force bypasses the throttle (stage transitions, terminal states).
func (p *progressTracker) Update(v float64, force bool) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v > 1.0 {
		v = 1.0
	}
	if v > p.value {
		p.value = v
	}

	now := time.Now()
	if force || p.lastEmit.IsZero() || now.Sub(p.lastEmit) >= p.minInterval {
		p.lastEmit = now
		return p.value, true
	}
	return p.value, false
}

// Value returns the current progress.
func (p *progressTracker) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Reset returns progress to zero for a retry re-entry.
func (p *progressTracker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = 0
	p.lastEmit = time.Time{}
}

// transcribeProgress maps a remote progress hint (in [0,1]) into the
// transcribing band, or creeps forward from prev when the remote reports
// nothing.
func transcribeProgress(hint *float64, prev float64) float64 {
	if hint != nil {
		h := *hint
		if h < 0 {
			h = 0
		}
		if h > 1 {
			h = 1
		}
		return progressUploadDone + h*(progressTranscribeDone-progressUploadDone)
	}
	next := prev + pollCreep
	if next > pollCreepCap {
		next = pollCreepCap
	}
	return next
}
