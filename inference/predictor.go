// Package inference - Task-bound predictor and its builder.
package inference

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/go-predict/images"
	"github.com/nvr-ai/go-predict/models"
	"github.com/nvr-ai/go-predict/models/postprocess"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxItems is the number of boxes a new predictor keeps per image.
	DefaultMaxItems = 30
	// MaxItemsLimit is the largest accepted item cap.
	MaxItemsLimit = 100
)

var (
	// ErrNoEngine is returned by Build when no engine was configured.
	ErrNoEngine = errors.New("engine not configured")
	// ErrNoTask is returned by Build when no task was configured.
	ErrNoTask = errors.New("task not configured")
	// ErrNilImage is returned by Predict when called without an image.
	ErrNilImage = errors.New("nil image")
)

// PredictorBuilder assembles a Predictor with a fluent API. The first failing
// step sticks and is reported by Build.
type PredictorBuilder struct {
	task       models.Task
	labels     models.Labels
	engine     Engine
	thresholds *Thresholds
	maxItems   int
	clock      Clock
	err        error
}

// NewPredictorBuilder creates a builder with default thresholds and item cap.
//
// Returns:
//   - *PredictorBuilder: The predictor builder.
//
// Example:
//
//	p, err := inference.NewPredictorBuilder().
//		WithTask(models.TaskDetect).
//		WithLabelSet(models.LabelSetCOCO).
//		WithEngine(engine).
//		Build()
func NewPredictorBuilder() *PredictorBuilder {
	return &PredictorBuilder{
		thresholds: NewThresholds(),
		maxItems:   DefaultMaxItems,
	}
}

// WithTask binds the predictor to a task.
//
// Arguments:
//   - task: One of models.Tasks.
//
// Returns:
//   - *PredictorBuilder: The predictor builder.
func (b *PredictorBuilder) WithTask(task models.Task) *PredictorBuilder {
	if b.HasError() {
		return b
	}
	parsed, err := models.ParseTask(string(task))
	if err != nil {
		b.err = err
		return b
	}
	b.task = parsed
	return b
}

// WithLabels sets the index-to-name mapping. The builder keeps its own copy.
//
// Arguments:
//   - labels: The model's labels.
//
// Returns:
//   - *PredictorBuilder: The predictor builder.
func (b *PredictorBuilder) WithLabels(labels models.Labels) *PredictorBuilder {
	if b.HasError() {
		return b
	}
	b.labels = labels.Clone()
	return b
}

// WithLabelSet uses one of the built-in label sets.
//
// Arguments:
//   - set: The label set name.
//
// Returns:
//   - *PredictorBuilder: The predictor builder.
func (b *PredictorBuilder) WithLabelSet(set models.LabelSet) *PredictorBuilder {
	if b.HasError() {
		return b
	}
	labels, err := models.LookupLabels(set)
	if err != nil {
		b.err = err
		return b
	}
	b.labels = labels
	return b
}

// WithEngine sets the engine that produces raw outputs.
//
// Arguments:
//   - engine: The engine. The predictor takes ownership and closes it.
//
// Returns:
//   - *PredictorBuilder: The predictor builder.
func (b *PredictorBuilder) WithEngine(engine Engine) *PredictorBuilder {
	if b.HasError() {
		return b
	}
	if engine == nil {
		b.err = ErrNoEngine
		return b
	}
	b.engine = engine
	return b
}

// WithThresholds sets the initial confidence and IoU thresholds.
//
// Arguments:
//   - confidence: The confidence threshold, in [0,1].
//   - iou: The IoU threshold, in [0,1].
//
// Returns:
//   - *PredictorBuilder: The predictor builder.
func (b *PredictorBuilder) WithThresholds(confidence, iou float32) *PredictorBuilder {
	if b.HasError() {
		return b
	}
	if err := b.thresholds.SetConfidence(confidence); err != nil {
		b.err = err
		return b
	}
	if err := b.thresholds.SetIoU(iou); err != nil {
		b.err = err
	}
	return b
}

// WithMaxItems sets the item cap, clamped to [1, MaxItemsLimit].
func (b *PredictorBuilder) WithMaxItems(n int) *PredictorBuilder {
	if b.HasError() {
		return b
	}
	b.maxItems = clampMaxItems(n)
	return b
}

// WithClock replaces the wall clock used for latency and frame rate.
func (b *PredictorBuilder) WithClock(clock Clock) *PredictorBuilder {
	if b.HasError() {
		return b
	}
	b.clock = clock
	return b
}

// HasError checks if the predictor builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *PredictorBuilder) HasError() bool {
	return b.err != nil
}

// Build builds the predictor.
//
// Returns:
//   - *Predictor: The predictor.
//   - error: The first error of the chain, or a missing task or engine.
func (b *PredictorBuilder) Build() (*Predictor, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.task == "" {
		return nil, ErrNoTask
	}
	if b.engine == nil {
		return nil, ErrNoEngine
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}

	p := &Predictor{
		task:       b.task,
		labels:     b.labels,
		engine:     b.engine,
		thresholds: b.thresholds,
		tracker:    NewTracker(now),
		now:        now,
	}
	p.maxItems.Store(int32(b.maxItems))
	return p, nil
}

// MustBuild builds the predictor and panics if there is an error.
//
// Returns:
//   - *Predictor: The predictor.
func (b *PredictorBuilder) MustBuild() *Predictor {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// Predictor turns images into structured results for one task.
//
// Calls to Predict are serialized. Thresholds and the item cap may be changed from
// any goroutine and take effect on the next call.
type Predictor struct {
	task       models.Task
	labels     models.Labels
	engine     Engine
	thresholds *Thresholds
	tracker    *Tracker
	now        Clock
	maxItems   atomic.Int32
	mu         sync.Mutex
}

// Predict runs the engine on img and decodes its output.
//
// A decode failure still yields a result carrying an empty payload and the current
// metrics, returned together with the error. Engine and assembly failures yield no
// result.
//
// Arguments:
//   - ctx: Cancels the engine call.
//   - img: The original image.
//
// Returns:
//   - *postprocess.DetectionResult: The result, owned by the caller.
//   - error: The engine, decode or assembly error, if any.
func (p *Predictor) Predict(ctx context.Context, img image.Image) (*postprocess.DetectionResult, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	bounds := img.Bounds()
	shape := images.Size{Width: bounds.Dx(), Height: bounds.Dy()}

	start := p.now()
	out, err := p.engine.Predict(ctx, img, p.thresholds.Features())
	if err != nil && !postprocess.IsDecodeError(err) {
		return nil, errors.Wrap(err, "engine prediction failed")
	}
	p.tracker.Record(p.now().Sub(start))

	// Engines that decode their own tensors report malformed output the same way.
	var (
		payload   postprocess.Payload
		boxes     []postprocess.Box
		decodeErr = err
	)
	if decodeErr == nil {
		payload, boxes, decodeErr = p.decode(out, shape)
	}
	if decodeErr != nil {
		log.Error().Err(decodeErr).Str("task", string(p.task)).Msg("decode failed, returning empty result")
		payload, boxes = postprocess.EmptyPayload(p.task), nil
	}

	result, err := postprocess.Assemble(shape, p.task, payload, boxes, p.tracker.Snapshot(), p.labels)
	if err != nil {
		return nil, err
	}
	return result, decodeErr
}

func (p *Predictor) decode(out *Output, shape images.Size) (postprocess.Payload, []postprocess.Box, error) {
	if out == nil {
		return nil, nil, errors.Wrap(postprocess.ErrMalformedOutput, "engine returned no output")
	}
	maxItems := p.MaxItems()

	switch p.task {
	case models.TaskClassify:
		result, err := postprocess.Decode(out.ClassificationSource(p.labels))
		return result, nil, err

	case models.TaskOBB:
		boxes, err := postprocess.DecodeOrientedBoxes(out.OrientedBoxes, p.labels, shape, maxItems)
		return postprocess.OrientedDetection{Boxes: boxes}, nil, p.tolerateLabels(err)
	}

	boxes, err := postprocess.DecodeBoxes(out.Detections, p.labels, shape, maxItems)
	if err = p.tolerateLabels(err); err != nil {
		return nil, nil, err
	}

	switch p.task {
	case models.TaskSegment:
		masks, err := postprocess.DecodeMasks(out.Masks, out.MaskShape, shape, maxItems)
		return postprocess.Segmentation{Masks: masks}, boxes, err
	case models.TaskPose:
		sets, err := postprocess.DecodeKeypoints(out.Keypoints, out.KeypointsPerInstance, shape, maxItems)
		return postprocess.Pose{Keypoints: sets}, boxes, err
	default:
		return postprocess.Detection{}, boxes, nil
	}
}

// tolerateLabels downgrades an unknown class index on a box to a warning. The box
// is kept under the "unknown" name so it stays aligned with masks and keypoints.
func (p *Predictor) tolerateLabels(err error) error {
	if errors.Is(err, postprocess.ErrLabelIndexOutOfRange) {
		log.Warn().Err(err).Str("task", string(p.task)).Msg("box with unlabelled class")
		return nil
	}
	return err
}

// Task returns the task the predictor is bound to.
func (p *Predictor) Task() models.Task {
	return p.task
}

// Labels returns a copy of the predictor's labels.
func (p *Predictor) Labels() models.Labels {
	return p.labels.Clone()
}

// Thresholds returns the predictor's live thresholds.
func (p *Predictor) Thresholds() *Thresholds {
	return p.thresholds
}

// Metrics returns the current latency and frame rate averages.
func (p *Predictor) Metrics() postprocess.PerformanceSnapshot {
	return p.tracker.Snapshot()
}

// SetMaxItems sets the item cap, clamped to [1, MaxItemsLimit].
//
// Arguments:
//   - n: The requested cap.
//
// Returns:
//   - int: The cap actually applied.
func (p *Predictor) SetMaxItems(n int) int {
	n = clampMaxItems(n)
	p.maxItems.Store(int32(n))
	return n
}

// MaxItems returns the current item cap.
func (p *Predictor) MaxItems() int {
	return int(p.maxItems.Load())
}

// Close releases the engine.
func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Close()
}

func clampMaxItems(n int) int {
	return max(1, min(MaxItemsLimit, n))
}
