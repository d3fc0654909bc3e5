package postprocess

import (
	"github.com/nvr-ai/go-predict/images"
	"github.com/nvr-ai/go-predict/models"
	"github.com/pkg/errors"
)

// Assemble builds the result of one inference call.
//
// The payload kind must match the task the predictor was built for. Tasks without
// axis-aligned boxes (classification, OBB) must not receive any. Every slice is
// deep-copied, so the returned result shares no memory with its inputs or with any
// other result.
//
// Arguments:
//   - shape: The original image size.
//   - task: The predictor's task.
//   - payload: The task-specific data.
//   - boxes: Axis-aligned boxes, nil or empty for tasks without boxes.
//   - perf: The current metrics snapshot.
//   - labels: The predictor's labels.
//
// Returns:
//   - *DetectionResult: The assembled result.
//   - error: ErrInvalidTaskPayload if the inputs break the task contract.
func Assemble(
	shape images.Size,
	task models.Task,
	payload Payload,
	boxes []Box,
	perf PerformanceSnapshot,
	labels models.Labels,
) (*DetectionResult, error) {
	if err := validatePayload(task, payload, boxes); err != nil {
		return nil, err
	}

	outBoxes := make([]Box, len(boxes))
	copy(outBoxes, boxes)

	return &DetectionResult{
		OriginalShape: shape,
		Boxes:         outBoxes,
		Payload:       clonePayload(payload),
		Performance:   perf,
		Labels:        labels.Clone(),
	}, nil
}

func validatePayload(task models.Task, payload Payload, boxes []Box) error {
	if payload == nil {
		return errors.Wrapf(ErrInvalidTaskPayload, "no payload for task %q", task)
	}
	if payload.Task() != task {
		return errors.Wrapf(ErrInvalidTaskPayload, "%q payload for task %q", payload.Task(), task)
	}
	if !task.HasBoxes() && len(boxes) > 0 {
		return errors.Wrapf(ErrInvalidTaskPayload, "task %q does not carry boxes, got %d", task, len(boxes))
	}

	switch p := payload.(type) {
	case ClassificationResult:
		if len(p.Top5) != len(p.Top5Confs) || len(p.Top5) > topK {
			return errors.Wrapf(ErrInvalidTaskPayload,
				"%d top-5 labels with %d confidences", len(p.Top5), len(p.Top5Confs))
		}
		if len(p.Top5) > 0 && p.Top1 != p.Top5[0] {
			return errors.Wrapf(ErrInvalidTaskPayload, "top1 %q differs from top5[0] %q", p.Top1, p.Top5[0])
		}
	case Pose:
		for i, set := range p.Keypoints {
			if len(set.Normalized) != len(set.Pixels) || len(set.Normalized) != len(set.Confidences) {
				return errors.Wrapf(ErrInvalidTaskPayload, "keypoint set %d is not index-aligned", i)
			}
		}
	}
	return nil
}

func clonePayload(payload Payload) Payload {
	switch p := payload.(type) {
	case ClassificationResult:
		return ClassificationResult{
			Top1:      p.Top1,
			Top1Conf:  p.Top1Conf,
			Top5:      cloneSlice(p.Top5),
			Top5Confs: cloneSlice(p.Top5Confs),
		}
	case Segmentation:
		instances := make([][][]float32, len(p.Masks.Instances))
		for i, inst := range p.Masks.Instances {
			rows := make([][]float32, len(inst))
			for y, row := range inst {
				rows[y] = cloneSlice(row)
			}
			instances[i] = rows
		}
		// The composite is rendered per call and never written afterwards.
		return Segmentation{Masks: Mask{Instances: instances, Composite: p.Masks.Composite}}
	case Pose:
		sets := make([]KeypointSet, len(p.Keypoints))
		for i, set := range p.Keypoints {
			sets[i] = KeypointSet{
				Normalized:  cloneSlice(set.Normalized),
				Pixels:      cloneSlice(set.Pixels),
				Confidences: cloneSlice(set.Confidences),
			}
		}
		return Pose{Keypoints: sets}
	case OrientedDetection:
		return OrientedDetection{Boxes: cloneSlice(p.Boxes)}
	default:
		return payload
	}
}

// cloneSlice copies s, turning nil into an empty slice.
func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
