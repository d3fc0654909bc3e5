// Package providers - ONNX Runtime engine.
package providers

import (
	"context"
	"image"
	"sync"

	"github.com/nvr-ai/go-predict/inference"
	"github.com/nvr-ai/go-predict/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrEngineClosed is returned by Predict after Close.
var ErrEngineClosed = errors.New("engine closed")

// ONNXConfig describes an end-to-end exported model (NMS inside the graph) and how to
// run it.
type ONNXConfig struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string `json:"model_path" mapstructure:"model_path"`
	// SharedLibraryPath overrides the platform default ONNX Runtime library.
	SharedLibraryPath string `json:"shared_library_path" mapstructure:"shared_library_path"`
	// Task is the model's task; set from the top-level configuration.
	Task models.Task `json:"-" mapstructure:"-"`
	// InputSize is the model's square input edge in pixels.
	InputSize int `json:"input_size" mapstructure:"input_size"`
	// InputName is the image input node.
	InputName string `json:"input_name" mapstructure:"input_name"`
	// OutputName is the output node.
	OutputName string `json:"output_name" mapstructure:"output_name"`
	// OutputShape is the fixed output tensor shape, e.g. [1, 300, 6].
	OutputShape []int64 `json:"output_shape" mapstructure:"output_shape"`
	// ConfidenceInput names an optional scalar input fed from the confidence threshold.
	ConfidenceInput string `json:"confidence_input" mapstructure:"confidence_input"`
	// IoUInput names an optional scalar input fed from the IoU threshold.
	IoUInput string `json:"iou_input" mapstructure:"iou_input"`
	// Backend selects the execution provider.
	Backend Backend `json:"backend" mapstructure:"backend"`
	// CUDA holds options for BackendCUDA.
	CUDA CUDAOptions `json:"cuda" mapstructure:"cuda"`
	// OpenVINO holds options for BackendOpenVINO.
	OpenVINO OpenVINOOptions `json:"openvino" mapstructure:"openvino"`
	// IntraOpThreads parallelizes execution within graph nodes; 0 uses the runtime default.
	IntraOpThreads int `json:"intra_op_threads" mapstructure:"intra_op_threads"`
	// InterOpThreads parallelizes execution across graph nodes; 0 uses the runtime default.
	InterOpThreads int `json:"inter_op_threads" mapstructure:"inter_op_threads"`
}

// DefaultONNXConfig returns the settings of a 640x640 YOLO end-to-end detection export.
//
// Returns:
//   - ONNXConfig: The default configuration, without a model path.
func DefaultONNXConfig() ONNXConfig {
	return ONNXConfig{
		Task:        models.TaskDetect,
		InputSize:   640,
		InputName:   "images",
		OutputName:  "output0",
		OutputShape: []int64{1, 300, detectionRowSize},
		Backend:     BackendCPU,
	}
}

// Validate checks the configuration before any native resource is created.
//
// Returns:
//   - error: The first problem found.
func (c ONNXConfig) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if !supportsTask(c.Task) {
		return errors.Wrapf(ErrUnsupportedTask, "%q", c.Task)
	}
	if c.InputSize <= 0 {
		return errors.Errorf("input size must be positive, got %d", c.InputSize)
	}
	if c.InputName == "" || c.OutputName == "" {
		return errors.New("input and output names are required")
	}
	if len(c.OutputShape) == 0 {
		return errors.New("output shape is required")
	}
	for _, d := range c.OutputShape {
		if d <= 0 {
			return errors.Errorf("output shape %v has a non-positive dimension", c.OutputShape)
		}
	}
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	return nil
}

// ONNXEngine runs an ONNX model through ONNX Runtime with preallocated tensors.
type ONNXEngine struct {
	cfg        ONNXConfig
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	confidence *ort.Tensor[float32]
	iou        *ort.Tensor[float32]
	mu         sync.Mutex
}

var _ inference.Engine = (*ONNXEngine)(nil)

// NewONNXEngine loads the model and binds its tensors.
//
// Order of operations:
//  1. Library path check and one-time environment setup.
//  2. Tensor allocation for the image, the optional threshold scalars and the output.
//  3. Session options and execution provider.
//  4. Session creation, binding the tensors.
//
// Arguments:
//   - cfg: The engine configuration.
//
// Returns:
//   - *ONNXEngine: The engine; the caller must Close it.
//   - error: A configuration, library or session error.
func NewONNXEngine(cfg ONNXConfig) (*ONNXEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid ONNX configuration")
	}

	if !ort.IsInitialized() {
		libPath, err := ResolveSharedLibPath(cfg.SharedLibraryPath)
		if err != nil {
			return nil, err
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "error initializing ORT environment")
		}
	}

	e := &ONNXEngine{cfg: cfg}
	size := int64(cfg.InputSize)

	var err error
	e.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	inputNames := []string{cfg.InputName}
	inputs := []ort.ArbitraryTensor{e.input}

	if cfg.ConfidenceInput != "" {
		if e.confidence, err = ort.NewTensor(ort.NewShape(1), []float32{inference.DefaultConfidenceThreshold}); err != nil {
			e.destroy()
			return nil, errors.Wrap(err, "error creating confidence tensor")
		}
		inputNames = append(inputNames, cfg.ConfidenceInput)
		inputs = append(inputs, e.confidence)
	}
	if cfg.IoUInput != "" {
		if e.iou, err = ort.NewTensor(ort.NewShape(1), []float32{inference.DefaultIoUThreshold}); err != nil {
			e.destroy()
			return nil, errors.Wrap(err, "error creating IoU tensor")
		}
		inputNames = append(inputNames, cfg.IoUInput)
		inputs = append(inputs, e.iou)
	}

	e.output, err = ort.NewEmptyTensor[float32](ort.NewShape(cfg.OutputShape...))
	if err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}
	if err := appendExecutionProvider(options, cfg); err != nil {
		e.destroy()
		return nil, err
	}

	e.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		inputNames,
		[]string{cfg.OutputName},
		inputs,
		[]ort.ArbitraryTensor{e.output},
		options,
	)
	if err != nil {
		e.destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	log.Info().
		Str("model", cfg.ModelPath).
		Str("task", string(cfg.Task)).
		Str("backend", string(cfg.Backend)).
		Int("input_size", cfg.InputSize).
		Msg("ONNX engine ready")
	return e, nil
}

// Predict prepares img, runs the session and decodes the output.
//
// Arguments:
//   - ctx: Checked before the run; a started run is not interrupted.
//   - img: The original image.
//   - features: The threshold feature map.
//
// Returns:
//   - *inference.Output: The decoded output.
//   - error: A preparation, runtime or decode error.
func (e *ONNXEngine) Predict(ctx context.Context, img image.Image, features inference.FeatureMap) (*inference.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, ErrEngineClosed
	}

	if err := inference.PrepareInput(img, e.input.GetData(), e.cfg.InputSize); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}
	if e.confidence != nil {
		e.confidence.GetData()[0] = features.Confidence()
	}
	if e.iou != nil {
		e.iou.GetData()[0] = features.IoU()
	}

	if err := e.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	return decodeOutput(e.cfg.Task, e.output.GetData(), e.cfg.InputSize, features.Confidence())
}

// Close releases the session and its tensors. It is safe to call more than once.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		if destroyErr := e.session.Destroy(); destroyErr != nil {
			err = errors.Wrap(destroyErr, "error destroying ORT session")
		}
		e.session = nil
	}
	e.destroy()
	return err
}

// destroy releases whichever tensors were allocated.
func (e *ONNXEngine) destroy() {
	for _, t := range []*ort.Tensor[float32]{e.input, e.confidence, e.iou, e.output} {
		if t != nil {
			t.Destroy()
		}
	}
	e.input, e.confidence, e.iou, e.output = nil, nil, nil, nil
}
