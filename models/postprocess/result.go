// Package postprocess - Decoding of raw model outputs into task results.
package postprocess

import (
	"image"

	"github.com/nvr-ai/go-predict/images"
	"github.com/nvr-ai/go-predict/models"
)

// Payload is the task-specific part of a DetectionResult.
//
// The interface is sealed: only ClassificationResult, Detection, Segmentation, Pose
// and OrientedDetection implement it, so a result always carries exactly one of them.
type Payload interface {
	// Task returns the task this payload belongs to.
	Task() models.Task
	isPayload()
}

// ClassificationResult is the ranked outcome of an image classification.
type ClassificationResult struct {
	// Top1 is the best label, empty when nothing was ranked.
	Top1 string `json:"top1"`
	// Top1Conf is the confidence of Top1.
	Top1Conf float32 `json:"top1_conf"`
	// Top5 holds up to five labels, best first.
	Top5 []string `json:"top5"`
	// Top5Confs is index-aligned with Top5.
	Top5Confs []float32 `json:"top5_confs"`
}

// Detection marks a plain detection result; the boxes carry all of its data.
type Detection struct{}

// Segmentation carries the instance masks of a segmentation result.
type Segmentation struct {
	Masks Mask `json:"masks"`
}

// Pose carries one keypoint set per detected instance.
type Pose struct {
	Keypoints []KeypointSet `json:"keypoints"`
}

// OrientedDetection carries the oriented boxes of an OBB result.
type OrientedDetection struct {
	Boxes []OrientedBox `json:"boxes"`
}

// Task implements Payload.
func (ClassificationResult) Task() models.Task { return models.TaskClassify }

// Task implements Payload.
func (Detection) Task() models.Task { return models.TaskDetect }

// Task implements Payload.
func (Segmentation) Task() models.Task { return models.TaskSegment }

// Task implements Payload.
func (Pose) Task() models.Task { return models.TaskPose }

// Task implements Payload.
func (OrientedDetection) Task() models.Task { return models.TaskOBB }

func (ClassificationResult) isPayload() {}
func (Detection) isPayload()            {}
func (Segmentation) isPayload()         {}
func (Pose) isPayload()                 {}
func (OrientedDetection) isPayload()    {}

// Box is one axis-aligned detection described in both coordinate spaces.
type Box struct {
	ClassIndex int     `json:"class_index"`
	ClassName  string  `json:"class_name"`
	Confidence float32 `json:"confidence"`
	// Rect is in pixels of the original image.
	Rect images.Rect `json:"rect"`
	// NormalizedRect is Rect divided by the original image size, inside [0,1]².
	NormalizedRect images.Rect `json:"normalized_rect"`
}

// OrientedBox is one oriented detection.
type OrientedBox struct {
	ClassIndex int     `json:"class_index"`
	ClassName  string  `json:"class_name"`
	Confidence float32 `json:"confidence"`
	// Box is in normalized model space.
	Box images.OBB `json:"box"`
	// Polygon is Box projected onto the original image, in pixels.
	Polygon images.Polygon `json:"polygon"`
}

// Mask holds per-instance segmentation probabilities.
type Mask struct {
	// Instances is indexed as [instance][row][col].
	Instances [][][]float32 `json:"instances"`
	// Composite is an optional label image at the original size.
	Composite image.Image `json:"-"`
}

// KeypointSet holds the keypoints of one instance; all three slices are index-aligned.
type KeypointSet struct {
	Normalized  []images.Point `json:"normalized"`
	Pixels      []images.Point `json:"pixels"`
	Confidences []float32      `json:"confidences"`
}

// PerformanceSnapshot is a copy of the smoothed timing metrics at result time.
type PerformanceSnapshot struct {
	// LatencyMillis is the smoothed single-inference latency.
	LatencyMillis float64 `json:"latency_ms"`
	// FPS is the smoothed delivered frame rate.
	FPS float64 `json:"fps"`
}

// DetectionResult is the immutable outcome of one inference call.
type DetectionResult struct {
	// OriginalShape is the size of the image that was analysed.
	OriginalShape images.Size `json:"original_shape"`
	// Boxes is never nil; it is empty for classification and OBB results.
	Boxes []Box `json:"boxes"`
	// Payload is the task-specific data.
	Payload Payload `json:"payload"`
	// AnnotatedImage is attached by external renderers through WithAnnotatedImage.
	AnnotatedImage image.Image `json:"-"`
	// Performance is a snapshot of the predictor's metrics.
	Performance PerformanceSnapshot `json:"performance"`
	// Labels is the predictor's label list.
	Labels []string `json:"labels"`
}

// Task returns the task of the result's payload.
func (r *DetectionResult) Task() models.Task {
	return r.Payload.Task()
}

// Classification returns the classification payload, if any.
func (r *DetectionResult) Classification() (ClassificationResult, bool) {
	c, ok := r.Payload.(ClassificationResult)
	return c, ok
}

// Masks returns the segmentation masks, if any.
func (r *DetectionResult) Masks() (Mask, bool) {
	s, ok := r.Payload.(Segmentation)
	return s.Masks, ok
}

// Keypoints returns the per-instance keypoints, if any.
func (r *DetectionResult) Keypoints() ([]KeypointSet, bool) {
	p, ok := r.Payload.(Pose)
	return p.Keypoints, ok
}

// OrientedBoxes returns the oriented boxes, if any.
func (r *DetectionResult) OrientedBoxes() ([]OrientedBox, bool) {
	o, ok := r.Payload.(OrientedDetection)
	return o.Boxes, ok
}

// WithAnnotatedImage returns a copy of the result carrying img. The receiver is left unchanged.
func (r *DetectionResult) WithAnnotatedImage(img image.Image) *DetectionResult {
	out := *r
	out.AnnotatedImage = img
	return &out
}

// EmptyPayload returns the payload of a result that decoded nothing for task.
// Its slices are empty, not nil.
func EmptyPayload(task models.Task) Payload {
	switch task {
	case models.TaskClassify:
		return EmptyClassification()
	case models.TaskSegment:
		return Segmentation{Masks: Mask{Instances: [][][]float32{}}}
	case models.TaskPose:
		return Pose{Keypoints: []KeypointSet{}}
	case models.TaskOBB:
		return OrientedDetection{Boxes: []OrientedBox{}}
	default:
		return Detection{}
	}
}
