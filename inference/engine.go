// Package inference - Engine boundary between the model runtime and the decoders.
package inference

import (
	"context"
	"image"

	"github.com/nvr-ai/go-predict/models"
	"github.com/nvr-ai/go-predict/models/postprocess"
)

// Engine runs a model on one image and returns its raw outputs.
//
// The engine owns thresholding and NMS: it receives the current feature map on
// every call and is expected to apply the confidence and IoU cut-offs it carries.
type Engine interface {
	// Predict runs the model.
	//
	// Arguments:
	//   - ctx: Cancels the inference.
	//   - img: The original image, before any resizing.
	//   - features: The current threshold feature map.
	//
	// Returns:
	//   - *Output: The raw outputs for the model's task.
	//   - error: Any runtime failure.
	Predict(ctx context.Context, img image.Image, features FeatureMap) (*Output, error)
	// Close releases the engine's native resources.
	Close() error
}

// Output holds the raw tensors of one inference. Only the fields of the model's
// task are set; all geometry is normalized to the model input.
type Output struct {
	// Scores is a per-class score vector (classify).
	Scores []float32 `json:"scores,omitempty"`
	// HalfScores is a per-class fp16 score vector (classify). Used when Scores is empty.
	HalfScores []uint16 `json:"half_scores,omitempty"`
	// Observations is an engine-ranked class list (classify). Used when both score
	// vectors are empty.
	Observations postprocess.Observations `json:"observations,omitempty"`

	// Detections are the boxes left after the engine's NMS (detect, segment, pose).
	Detections []postprocess.RawDetection `json:"detections,omitempty"`

	// Keypoints is a flat [instances, KeypointsPerInstance, 3] buffer (pose).
	Keypoints []float32 `json:"keypoints,omitempty"`
	// KeypointsPerInstance is the number of keypoints per instance (pose).
	KeypointsPerInstance int `json:"keypoints_per_instance,omitempty"`

	// Masks is a flat [instances, rows, cols] probability buffer (segment).
	Masks []float32 `json:"masks,omitempty"`
	// MaskShape is the shape of Masks as instances, rows, cols (segment).
	MaskShape [3]int `json:"mask_shape,omitempty"`

	// OrientedBoxes are the oriented boxes left after the engine's NMS (obb).
	OrientedBoxes []postprocess.RawOrientedBox `json:"oriented_boxes,omitempty"`
}

// ClassificationSource picks the classification input the engine filled in.
//
// Arguments:
//   - labels: The predictor's labels, used by the score vectors.
//
// Returns:
//   - postprocess.ClassificationSource: Scores, then half scores, then observations.
func (o *Output) ClassificationSource(labels models.Labels) postprocess.ClassificationSource {
	switch {
	case len(o.Scores) > 0:
		return postprocess.RawScores{Scores: o.Scores, Labels: labels}
	case len(o.HalfScores) > 0:
		return postprocess.HalfScores{Bits: o.HalfScores, Labels: labels}
	default:
		return o.Observations
	}
}
