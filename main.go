package main

import (
	"context"
	"encoding/json"
	"flag"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/go-predict/config"
	"github.com/nvr-ai/go-predict/images"
	"github.com/nvr-ai/go-predict/inference"
	"github.com/nvr-ai/go-predict/inference/providers"
	"github.com/nvr-ai/go-predict/logger"
	"github.com/nvr-ai/go-predict/models"
	"github.com/nvr-ai/go-predict/models/postprocess"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Supported file extensions
var (
	supportedImageExtensions   = []string{".jpg", ".jpeg", ".png", ".webp"}
	supportedCaptureExtensions = []string{".json"}
)

// InputType represents the type of input being processed
type InputType int

const (
	// InputImage runs the configured ONNX model on an image file.
	InputImage InputType = iota
	// InputCapture replays a recorded engine output.
	InputCapture
)

// InputConfig holds the input configuration
type InputConfig struct {
	Type InputType
	// Path is the image file.
	Path string
	// CapturePath is the recorded engine output; set for InputCapture.
	CapturePath string
}

// report is the JSON document written to stdout.
type report struct {
	Task   models.Task                  `json:"task"`
	Result *postprocess.DetectionResult `json:"result"`
	Error  string                       `json:"error,omitempty"`
}

func main() {
	var (
		configPath  string
		imagePath   string
		capturePath string
		width       int
		height      int
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML, JSON or TOML configuration file")
	flag.StringVar(&imagePath, "image", "", "Path to image file (.jpg, .jpeg, .png, .webp)")
	flag.StringVar(&capturePath, "capture", "", "Path to a recorded engine output (.json) to decode instead of running a model")
	flag.IntVar(&width, "width", 640, "Frame width used with -capture when no -image is given")
	flag.IntVar(&height, "height", 640, "Frame height used with -capture when no -image is given")
	flag.Parse()

	if err := run(context.Background(), configPath, imagePath, capturePath, images.Size{Width: width, Height: height}, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("prediction failed")
	}
}

// run loads the configuration, builds a predictor and writes one prediction as JSON.
//
// Arguments:
//   - ctx: Cancels the prediction.
//   - configPath: Optional configuration file.
//   - imagePath: The image to predict on.
//   - capturePath: Optional recorded engine output replacing the ONNX engine.
//   - frame: The frame size used when a capture is replayed without an image.
//   - w: Where the report is written.
//
// Returns:
//   - error: Any setup failure. Decode failures are reported in the JSON document.
func run(ctx context.Context, configPath, imagePath, capturePath string, frame images.Size, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel, nil); err != nil {
		return err
	}

	input, err := validateInputFlags(imagePath, capturePath)
	if err != nil {
		return err
	}

	labels, err := cfg.ResolveLabels()
	if err != nil {
		return err
	}

	var engine inference.Engine
	switch input.Type {
	case InputCapture:
		engine, err = loadCapture(input.CapturePath)
	default:
		engine, err = providers.NewONNXEngine(cfg.ONNX)
	}
	if err != nil {
		return err
	}

	predictor, err := inference.NewPredictorBuilder().
		WithTask(models.Task(cfg.Task)).
		WithLabels(labels).
		WithEngine(engine).
		WithThresholds(cfg.ConfidenceThreshold, cfg.IoUThreshold).
		WithMaxItems(cfg.MaxItems).
		Build()
	if err != nil {
		_ = engine.Close()
		return err
	}
	defer func() {
		if err := predictor.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close predictor")
		}
	}()

	img, err := loadFrame(input.Path, frame)
	if err != nil {
		return err
	}

	log.Info().
		Str("task", string(predictor.Task())).
		Int("labels", len(predictor.Labels())).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("running prediction")

	result, err := predictor.Predict(ctx, img)
	if result == nil {
		return err
	}

	out := report{Task: predictor.Task(), Result: result}
	if err != nil {
		out.Error = err.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "failed to write report")
}

// loadFrame decodes the image at path, or returns a blank frame of the given size
// when no path is set.
func loadFrame(path string, frame images.Size) (image.Image, error) {
	if path == "" {
		if frame.Empty() {
			return nil, errors.Errorf("invalid frame size %dx%d", frame.Width, frame.Height)
		}
		return image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height)), nil
	}
	encoded, err := images.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return encoded.Decode()
}

func validateInputFlags(imagePath, capturePath string) (*InputConfig, error) {
	if imagePath != "" {
		if err := validateFile(imagePath, supportedImageExtensions); err != nil {
			return nil, errors.Wrap(err, "image validation error")
		}
	}

	if capturePath != "" {
		if err := validateFile(capturePath, supportedCaptureExtensions); err != nil {
			return nil, errors.Wrap(err, "capture validation error")
		}
		return &InputConfig{Type: InputCapture, Path: imagePath, CapturePath: capturePath}, nil
	}

	if imagePath == "" {
		return nil, errors.New("one of -image or -capture is required")
	}
	return &InputConfig{Type: InputImage, Path: imagePath}, nil
}

// validateFile checks if the file exists and has a supported extension
func validateFile(filePath string, supportedExtensions []string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return errors.Errorf("file not found: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supportedExt := range supportedExtensions {
		if ext == supportedExt {
			return nil
		}
	}

	return errors.Errorf("unsupported file extension: %s. Supported extensions: %v", ext, supportedExtensions)
}
