// Package providers - Raw output tensor decoding for end-to-end exported models.
package providers

import (
	"github.com/nvr-ai/go-predict/images"
	"github.com/nvr-ai/go-predict/inference"
	"github.com/nvr-ai/go-predict/models"
	"github.com/nvr-ai/go-predict/models/postprocess"
	"github.com/pkg/errors"
)

const (
	// detectionRowSize is x1, y1, x2, y2, score, class in input pixels.
	detectionRowSize = 6
	// orientedRowSize is cx, cy, w, h, score, class in input pixels plus the angle in radians.
	orientedRowSize = 7
)

// ErrUnsupportedTask is returned for tasks the ONNX engine cannot decode.
var ErrUnsupportedTask = errors.New("task not supported by the ONNX engine")

// supportsTask reports whether decodeOutput handles task.
func supportsTask(task models.Task) bool {
	return task == models.TaskClassify || task == models.TaskDetect || task == models.TaskOBB
}

// decodeOutput turns the model's output buffer into engine output for task.
//
// The buffer belongs to the session and is overwritten by the next run, so every
// returned slice is a copy.
//
// Arguments:
//   - task: The model's task.
//   - data: The output tensor's backing slice.
//   - inputSize: The model's square input edge, used to normalize geometry.
//   - confidence: Rows scoring below it are dropped.
//
// Returns:
//   - *inference.Output: The decoded output.
//   - error: ErrMalformedOutput or ErrUnsupportedTask.
func decodeOutput(task models.Task, data []float32, inputSize int, confidence float32) (*inference.Output, error) {
	switch task {
	case models.TaskClassify:
		scores := make([]float32, len(data))
		copy(scores, data)
		return &inference.Output{Scores: scores}, nil
	case models.TaskDetect:
		detections, err := decodeDetectionRows(data, inputSize, confidence)
		if err != nil {
			return nil, err
		}
		return &inference.Output{Detections: detections}, nil
	case models.TaskOBB:
		boxes, err := decodeOrientedRows(data, inputSize, confidence)
		if err != nil {
			return nil, err
		}
		return &inference.Output{OrientedBoxes: boxes}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedTask, "%q", task)
	}
}

// decodeDetectionRows reads rows of x1, y1, x2, y2, score, class.
func decodeDetectionRows(data []float32, inputSize int, confidence float32) ([]postprocess.RawDetection, error) {
	if len(data)%detectionRowSize != 0 {
		return nil, errors.Wrapf(postprocess.ErrMalformedOutput,
			"%d values is not a whole number of %d-value rows", len(data), detectionRowSize)
	}
	scale := 1 / float32(inputSize)

	detections := make([]postprocess.RawDetection, 0)
	for off := 0; off < len(data); off += detectionRowSize {
		row := data[off : off+detectionRowSize]
		if row[4] < confidence {
			continue
		}
		detections = append(detections, postprocess.RawDetection{
			ClassIndex: int(row[5]),
			Confidence: row[4],
			Rect: images.Rect{
				X1: row[0] * scale,
				Y1: row[1] * scale,
				X2: row[2] * scale,
				Y2: row[3] * scale,
			},
		})
	}
	return detections, nil
}

// decodeOrientedRows reads rows of cx, cy, w, h, score, class, angle.
func decodeOrientedRows(data []float32, inputSize int, confidence float32) ([]postprocess.RawOrientedBox, error) {
	if len(data)%orientedRowSize != 0 {
		return nil, errors.Wrapf(postprocess.ErrMalformedOutput,
			"%d values is not a whole number of %d-value rows", len(data), orientedRowSize)
	}
	scale := 1 / float32(inputSize)

	boxes := make([]postprocess.RawOrientedBox, 0)
	for off := 0; off < len(data); off += orientedRowSize {
		row := data[off : off+orientedRowSize]
		if row[4] < confidence {
			continue
		}
		boxes = append(boxes, postprocess.RawOrientedBox{
			ClassIndex: int(row[5]),
			Confidence: row[4],
			Box: images.OBB{
				CenterX: row[0] * scale,
				CenterY: row[1] * scale,
				Width:   row[2] * scale,
				Height:  row[3] * scale,
				Angle:   row[6],
			},
		})
	}
	return boxes, nil
}
