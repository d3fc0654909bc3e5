// Package inference - Predictor, engine boundary and per-predictor runtime state.
package inference

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// FeatureConfidenceThreshold is the feature map key the engine reads its
	// confidence cut-off from.
	FeatureConfidenceThreshold = "confidenceThreshold"
	// FeatureIoUThreshold is the feature map key the engine reads its NMS overlap
	// cut-off from.
	FeatureIoUThreshold = "iouThreshold"

	// DefaultConfidenceThreshold is the confidence cut-off of a new Thresholds.
	DefaultConfidenceThreshold float32 = 0.25
	// DefaultIoUThreshold is the IoU cut-off of a new Thresholds.
	DefaultIoUThreshold float32 = 0.45
)

// ErrThresholdOutOfRange is returned when a threshold is set outside [0,1].
var ErrThresholdOutOfRange = errors.New("threshold out of range")

// FeatureMap is the set of named scalar inputs handed to the engine on every call.
type FeatureMap map[string]float32

// Confidence returns the confidence threshold carried by the map.
func (f FeatureMap) Confidence() float32 {
	return f[FeatureConfidenceThreshold]
}

// IoU returns the IoU threshold carried by the map.
func (f FeatureMap) IoU() float32 {
	return f[FeatureIoUThreshold]
}

// Thresholds holds the confidence and IoU cut-offs of one predictor.
//
// Every accepted change rebuilds the feature map and hands it to each registered
// listener before the setter returns. Reads and writes are safe from any goroutine.
type Thresholds struct {
	confidence float32
	iou        float32
	features   FeatureMap
	listeners  []func(FeatureMap)
	mu         sync.RWMutex
	// publishMu orders publications so listeners see changes in the order they were applied.
	publishMu sync.Mutex
}

// NewThresholds creates thresholds at the default values.
//
// Returns:
//   - *Thresholds: Thresholds at 0.25 confidence and 0.45 IoU.
func NewThresholds() *Thresholds {
	t := &Thresholds{
		confidence: DefaultConfidenceThreshold,
		iou:        DefaultIoUThreshold,
	}
	t.features = t.buildFeatures()
	return t
}

// SetConfidence sets the confidence threshold.
//
// Arguments:
//   - v: The new threshold, in [0,1].
//
// Returns:
//   - error: ErrThresholdOutOfRange if v is outside [0,1]; the old value is kept.
func (t *Thresholds) SetConfidence(v float32) error {
	return t.set(FeatureConfidenceThreshold, v, func() { t.confidence = v })
}

// SetIoU sets the IoU threshold.
//
// Arguments:
//   - v: The new threshold, in [0,1].
//
// Returns:
//   - error: ErrThresholdOutOfRange if v is outside [0,1]; the old value is kept.
func (t *Thresholds) SetIoU(v float32) error {
	return t.set(FeatureIoUThreshold, v, func() { t.iou = v })
}

func (t *Thresholds) set(name string, v float32, apply func()) error {
	if math32.IsNaN(v) || v < 0 || v > 1 {
		log.Warn().Str("threshold", name).Float32("value", v).Msg("rejected threshold outside [0,1]")
		return errors.Wrapf(ErrThresholdOutOfRange, "%s = %v", name, v)
	}

	t.publishMu.Lock()
	defer t.publishMu.Unlock()

	t.mu.Lock()
	apply()
	t.features = t.buildFeatures()
	features := t.features.clone()
	listeners := append([]func(FeatureMap){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(features.clone())
	}
	return nil
}

// Confidence returns the current confidence threshold.
func (t *Thresholds) Confidence() float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.confidence
}

// IoU returns the current IoU threshold.
func (t *Thresholds) IoU() float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.iou
}

// Features returns a copy of the current feature map.
func (t *Thresholds) Features() FeatureMap {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.features.clone()
}

// OnPublish registers fn to receive the feature map after every accepted change.
//
// Arguments:
//   - fn: The listener. It runs on the setter's goroutine and receives its own copy.
//     Listeners may read the thresholds but must not set them.
func (t *Thresholds) OnPublish(fn func(FeatureMap)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Thresholds) buildFeatures() FeatureMap {
	return FeatureMap{
		FeatureConfidenceThreshold: t.confidence,
		FeatureIoUThreshold:        t.iou,
	}
}

func (f FeatureMap) clone() FeatureMap {
	out := make(FeatureMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
