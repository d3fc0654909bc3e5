package main

import (
	"context"
	"encoding/json"
	"image"
	"os"

	"github.com/nvr-ai/go-predict/inference"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// replayEngine returns a recorded engine output on every call. It lets a capture
// taken from another runtime be decoded without loading a model.
type replayEngine struct {
	out *inference.Output
}

// loadCapture reads a JSON-encoded inference.Output.
//
// Arguments:
//   - path: The capture file.
//
// Returns:
//   - *replayEngine: An engine replaying the capture.
//   - error: A read or decode error.
func loadCapture(path string) (*replayEngine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read capture %s", path)
	}
	var out inference.Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to decode capture %s", path)
	}
	return &replayEngine{out: &out}, nil
}

func (e *replayEngine) Predict(ctx context.Context, img image.Image, features inference.FeatureMap) (*inference.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug().
		Float32("confidence", features.Confidence()).
		Float32("iou", features.IoU()).
		Int("detections", len(e.out.Detections)).
		Msg("replaying capture")
	return e.out, nil
}

func (e *replayEngine) Close() error {
	return nil
}
