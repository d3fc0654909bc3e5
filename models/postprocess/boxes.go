package postprocess

import (
	"github.com/nvr-ai/go-predict/images"
	"github.com/nvr-ai/go-predict/models"
	"github.com/pkg/errors"
)

// unknownLabel names detections whose class index has no label.
const unknownLabel = "unknown"

// RawDetection is one axis-aligned detection as emitted by the engine, after its
// own thresholding and suppression.
type RawDetection struct {
	ClassIndex int     `json:"class_index"`
	Confidence float32 `json:"confidence"`
	// Rect is normalized to the model input.
	Rect images.Rect `json:"rect"`
}

// RawOrientedBox is one oriented detection as emitted by the engine.
type RawOrientedBox struct {
	ClassIndex int        `json:"class_index"`
	Confidence float32    `json:"confidence"`
	Box        images.OBB `json:"box"`
}

// DecodeBoxes converts engine detections into boxes in both coordinate spaces.
//
// At most maxItems detections are kept (all of them when maxItems <= 0), in engine
// order. A detection whose class index has no label is still returned, named
// "unknown", so boxes stay index-aligned with keypoints and masks; the first such
// index is reported through ErrLabelIndexOutOfRange.
//
// Arguments:
//   - raw: Engine detections with normalized rectangles.
//   - labels: The predictor's labels.
//   - shape: The original image size.
//   - maxItems: The maximum number of boxes to keep.
//
// Returns:
//   - []Box: The decoded boxes, never nil.
//   - error: ErrLabelIndexOutOfRange if any class index could not be named.
func DecodeBoxes(raw []RawDetection, labels models.Labels, shape images.Size, maxItems int) ([]Box, error) {
	raw = capItems(raw, maxItems)
	boxes := make([]Box, 0, len(raw))

	var err error
	for _, d := range raw {
		name, lookupErr := className(labels, d.ClassIndex)
		if lookupErr != nil && err == nil {
			err = lookupErr
		}

		normalized := d.Rect.Clamp()
		boxes = append(boxes, Box{
			ClassIndex:     d.ClassIndex,
			ClassName:      name,
			Confidence:     d.Confidence,
			Rect:           normalized.Scale(shape),
			NormalizedRect: normalized,
		})
	}
	return boxes, err
}

// DecodeOrientedBoxes converts engine oriented boxes and projects each onto the image.
//
// Label handling and the maxItems cap follow DecodeBoxes.
func DecodeOrientedBoxes(raw []RawOrientedBox, labels models.Labels, shape images.Size, maxItems int) ([]OrientedBox, error) {
	raw = capItems(raw, maxItems)
	boxes := make([]OrientedBox, 0, len(raw))

	var err error
	for _, d := range raw {
		name, lookupErr := className(labels, d.ClassIndex)
		if lookupErr != nil && err == nil {
			err = lookupErr
		}

		boxes = append(boxes, OrientedBox{
			ClassIndex: d.ClassIndex,
			ClassName:  name,
			Confidence: d.Confidence,
			Box:        d.Box,
			Polygon:    d.Box.ToPolygonPixelSpace(shape.Width, shape.Height),
		})
	}
	return boxes, err
}

func className(labels models.Labels, idx int) (string, error) {
	name, ok := labels.Name(idx)
	if !ok {
		return unknownLabel, errors.Wrapf(ErrLabelIndexOutOfRange, "class %d with %d labels", idx, len(labels))
	}
	return name, nil
}

func capItems[T any](items []T, maxItems int) []T {
	if maxItems > 0 && len(items) > maxItems {
		return items[:maxItems]
	}
	return items
}
