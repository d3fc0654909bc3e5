// Package inference - Smoothed latency and frame rate tracking.
package inference

import (
	"sync"
	"time"

	"github.com/nvr-ai/go-predict/models/postprocess"
)

const (
	// emaAlpha is the weight of the newest sample in both moving averages.
	emaAlpha = 0.05
	// maxLatencySample is the raw latency at or above which a sample is treated as
	// a stall and left out of the latency average.
	maxLatencySample = 10 * time.Second
)

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Tracker keeps exponential moving averages of inference latency and of the time
// between consecutive results.
type Tracker struct {
	now           Clock
	latencyEMA    float64
	intervalEMA   float64
	lastWallClock time.Time
	mu            sync.Mutex
}

// NewTracker creates a tracker whose first interval is measured from now.
//
// Arguments:
//   - now: The clock to read wall-clock time from; time.Now when nil.
//
// Returns:
//   - *Tracker: The tracker.
func NewTracker(now Clock) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:           now,
		lastWallClock: now(),
	}
}

// Record folds one inference into the averages.
//
// Arguments:
//   - raw: The time the engine took for this inference.
func (t *Tracker) Record(raw time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if raw < maxLatencySample {
		t.latencyEMA = emaAlpha*raw.Seconds() + (1-emaAlpha)*t.latencyEMA
	}

	now := t.now()
	dt := now.Sub(t.lastWallClock).Seconds()
	t.intervalEMA = emaAlpha*dt + (1-emaAlpha)*t.intervalEMA
	t.lastWallClock = now
}

// Snapshot returns the current averages.
//
// Returns:
//   - postprocess.PerformanceSnapshot: Latency in milliseconds and frames per second.
//     FPS stays 0 until the interval average is positive.
func (t *Tracker) Snapshot() postprocess.PerformanceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := postprocess.PerformanceSnapshot{LatencyMillis: t.latencyEMA * 1000}
	if t.intervalEMA > 0 {
		snap.FPS = 1 / t.intervalEMA
	}
	return snap
}
