package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-predict/images"
	"github.com/nvr-ai/go-predict/inference"
	"github.com/nvr-ai/go-predict/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestValidateInputFlags(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	imagePath := writeFile(t, "frame.png", buf.Bytes())
	capturePath := writeFile(t, "capture.json", []byte(`{}`))
	bmpPath := writeFile(t, "frame.bmp", []byte{0})

	tests := []struct {
		name    string
		image   string
		capture string
		want    InputType
		wantErr bool
	}{
		{name: "Image", image: imagePath, want: InputImage},
		{name: "Capture", capture: capturePath, want: InputCapture},
		{name: "Capture with image", image: imagePath, capture: capturePath, want: InputCapture},
		{name: "Neither", wantErr: true},
		{name: "Missing image", image: filepath.Join(t.TempDir(), "absent.png"), wantErr: true},
		{name: "Unsupported extension", image: bmpPath, wantErr: true},
		{name: "Capture with wrong extension", capture: imagePath, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateInputFlags(tt.image, tt.capture)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.image, got.Path)
		})
	}
}

func TestLoadCapture(t *testing.T) {
	path := writeFile(t, "capture.json", []byte(`{"scores": [0.1, 0.7, 0.2]}`))

	engine, err := loadCapture(path)
	require.NoError(t, err)

	out, err := engine.Predict(context.Background(), nil, inference.FeatureMap{})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.7, 0.2}, out.Scores)
	assert.NoError(t, engine.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Predict(ctx, nil, inference.FeatureMap{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = loadCapture(writeFile(t, "broken.json", []byte(`{"scores": [`)))
	assert.Error(t, err)
}

type decodedReport struct {
	Task   string `json:"task"`
	Error  string `json:"error"`
	Result struct {
		OriginalShape images.Size `json:"original_shape"`
		Boxes         []struct {
			ClassName string      `json:"class_name"`
			Rect      images.Rect `json:"rect"`
		} `json:"boxes"`
		Payload json.RawMessage `json:"payload"`
	} `json:"result"`
}

func TestRun_Capture(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		capture   string
		wantBoxes []string
		wantErr   bool
	}{
		{
			name: "Detect",
			config: `
task: detect
labels: [person, car]
max_items: 5
log_level: error
`,
			capture: `{"detections": [
				{"class_index": 1, "confidence": 0.9, "rect": {"x1": 0.125, "y1": 0.25, "x2": 0.5, "y2": 0.75}},
				{"class_index": 0, "confidence": 0.6, "rect": {"x1": 0, "y1": 0, "x2": 0.25, "y2": 0.5}}
			]}`,
			wantBoxes: []string{"car", "person"},
		},
		{
			name: "Classify label mismatch",
			config: `
task: classify
labels: [cat, dog]
log_level: error
`,
			capture:   `{"scores": [0.2, 0.3, 0.5]}`,
			wantBoxes: []string{},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeFile(t, "predict.yaml", []byte(tt.config))
			capturePath := writeFile(t, "capture.json", []byte(tt.capture))

			var out bytes.Buffer
			err := run(context.Background(), configPath, "", capturePath, images.Size{Width: 200, Height: 100}, &out)
			require.NoError(t, err)

			var got decodedReport
			require.NoError(t, json.Unmarshal(out.Bytes(), &got))
			assert.Equal(t, images.Size{Width: 200, Height: 100}, got.Result.OriginalShape)
			assert.Equal(t, tt.wantErr, got.Error != "")

			names := make([]string, 0, len(got.Result.Boxes))
			for _, b := range got.Result.Boxes {
				names = append(names, b.ClassName)
			}
			assert.Equal(t, tt.wantBoxes, names)
		})
	}
}

func TestRun_CaptureBoxGeometry(t *testing.T) {
	configPath := writeFile(t, "predict.yaml", []byte("labels: [person, car]\nlog_level: error\n"))
	capturePath := writeFile(t, "capture.json", []byte(
		`{"detections": [{"class_index": 1, "confidence": 0.9, "rect": {"x1": 0.125, "y1": 0.25, "x2": 0.5, "y2": 0.75}}]}`))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), configPath, "", capturePath, images.Size{Width: 200, Height: 100}, &out))

	var got decodedReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, string(models.TaskDetect), got.Task)
	require.Len(t, got.Result.Boxes, 1)
	assert.Equal(t, images.Rect{X1: 25, Y1: 25, X2: 100, Y2: 75}, got.Result.Boxes[0].Rect)
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), "", "", "", images.Size{Width: 10, Height: 10}, &out)
	assert.Error(t, err)

	err = run(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), "", "", images.Size{}, &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestLoadFrame(t *testing.T) {
	img, err := loadFrame("", images.Size{Width: 32, Height: 16})
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())

	_, err = loadFrame("", images.Size{})
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6))))
	img, err = loadFrame(writeFile(t, "frame.png", buf.Bytes()), images.Size{})
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}
