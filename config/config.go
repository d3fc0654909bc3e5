// Package config - File and environment configuration for the predictor.
package config

import (
	"strings"

	"github.com/nvr-ai/go-predict/inference"
	"github.com/nvr-ai/go-predict/inference/providers"
	"github.com/nvr-ai/go-predict/logger"
	"github.com/nvr-ai/go-predict/models"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PREDICT_ONNX_MODEL_PATH.
const EnvPrefix = "PREDICT"

// Config holds everything needed to build a predictor.
type Config struct {
	// Task is the model's task name.
	Task string `json:"task" mapstructure:"task"`
	// LabelSet selects a built-in label list; ignored when Labels is set.
	LabelSet string `json:"label_set" mapstructure:"label_set"`
	// Labels lists the model's class names in index order.
	Labels []string `json:"labels" mapstructure:"labels"`
	// ConfidenceThreshold is the initial confidence cut-off.
	ConfidenceThreshold float32 `json:"confidence_threshold" mapstructure:"confidence_threshold"`
	// IoUThreshold is the initial NMS overlap cut-off.
	IoUThreshold float32 `json:"iou_threshold" mapstructure:"iou_threshold"`
	// MaxItems caps the number of boxes per result.
	MaxItems int `json:"max_items" mapstructure:"max_items"`
	// LogLevel is the zerolog level name.
	LogLevel string `json:"log_level" mapstructure:"log_level"`
	// ONNX configures the ONNX Runtime engine.
	ONNX providers.ONNXConfig `json:"onnx" mapstructure:"onnx"`
}

// DefaultConfig returns a COCO detection configuration with default thresholds.
//
// Returns:
//   - Config: The default configuration, without a model path.
//
// Example:
//
//	cfg := config.DefaultConfig()
//	cfg.ONNX.ModelPath = "path/to/model.onnx"
func DefaultConfig() Config {
	return Config{
		Task:                string(models.TaskDetect),
		LabelSet:            string(models.LabelSetCOCO),
		ConfidenceThreshold: inference.DefaultConfidenceThreshold,
		IoUThreshold:        inference.DefaultIoUThreshold,
		MaxItems:            inference.DefaultMaxItems,
		LogLevel:            "info",
		ONNX:                providers.DefaultONNXConfig(),
	}
}

// Load reads an optional configuration file and applies PREDICT_* environment overrides
// on top of the defaults.
//
// Arguments:
//   - path: A YAML, JSON or TOML file; "" reads defaults and environment only.
//
// Returns:
//   - Config: The validated configuration.
//   - error: A read, decode or validation error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	task, _ := models.ParseTask(cfg.Task)
	cfg.ONNX.Task = task
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("task", d.Task)
	v.SetDefault("label_set", d.LabelSet)
	v.SetDefault("labels", []string{})
	v.SetDefault("confidence_threshold", d.ConfidenceThreshold)
	v.SetDefault("iou_threshold", d.IoUThreshold)
	v.SetDefault("max_items", d.MaxItems)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("onnx.model_path", d.ONNX.ModelPath)
	v.SetDefault("onnx.shared_library_path", d.ONNX.SharedLibraryPath)
	v.SetDefault("onnx.input_size", d.ONNX.InputSize)
	v.SetDefault("onnx.input_name", d.ONNX.InputName)
	v.SetDefault("onnx.output_name", d.ONNX.OutputName)
	v.SetDefault("onnx.output_shape", d.ONNX.OutputShape)
	v.SetDefault("onnx.confidence_input", d.ONNX.ConfidenceInput)
	v.SetDefault("onnx.iou_input", d.ONNX.IoUInput)
	v.SetDefault("onnx.backend", string(d.ONNX.Backend))
	v.SetDefault("onnx.intra_op_threads", d.ONNX.IntraOpThreads)
	v.SetDefault("onnx.inter_op_threads", d.ONNX.InterOpThreads)
	v.SetDefault("onnx.cuda.device_id", d.ONNX.CUDA.DeviceID)
	v.SetDefault("onnx.cuda.gpu_mem_limit", d.ONNX.CUDA.GPUMemLimit)
	v.SetDefault("onnx.cuda.use_tf32", d.ONNX.CUDA.UseTF32)
	v.SetDefault("onnx.cuda.prefer_nhwc", d.ONNX.CUDA.PreferNHWC)
	v.SetDefault("onnx.openvino.device_type", d.ONNX.OpenVINO.DeviceType)
	v.SetDefault("onnx.openvino.precision", d.ONNX.OpenVINO.Precision)
	v.SetDefault("onnx.openvino.num_of_threads", d.ONNX.OpenVINO.NumOfThreads)
}

// Validate checks the predictor settings. The ONNX section is validated when the
// engine is built, since a recorded capture does not need it.
//
// Returns:
//   - error: The first problem found.
func (c Config) Validate() error {
	if _, err := models.ParseTask(c.Task); err != nil {
		return err
	}
	if len(c.Labels) == 0 && c.LabelSet != "" {
		if _, err := models.LookupLabels(models.LabelSet(c.LabelSet)); err != nil {
			return err
		}
	}
	if !inRange(c.ConfidenceThreshold) {
		return errors.Wrapf(inference.ErrThresholdOutOfRange, "confidence_threshold = %v", c.ConfidenceThreshold)
	}
	if !inRange(c.IoUThreshold) {
		return errors.Wrapf(inference.ErrThresholdOutOfRange, "iou_threshold = %v", c.IoUThreshold)
	}
	if c.MaxItems < 1 || c.MaxItems > inference.MaxItemsLimit {
		return errors.Errorf("max_items must be in [1, %d], got %d", inference.MaxItemsLimit, c.MaxItems)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := providers.ParseBackend(string(c.ONNX.Backend)); err != nil {
		return err
	}
	return nil
}

// ResolveLabels returns the explicit labels, or the selected built-in set.
//
// Returns:
//   - models.Labels: The labels; nil when neither is configured.
//   - error: An error if the label set is unknown.
func (c Config) ResolveLabels() (models.Labels, error) {
	if len(c.Labels) > 0 {
		return models.Labels(c.Labels).Clone(), nil
	}
	if c.LabelSet == "" {
		return nil, nil
	}
	return models.LookupLabels(models.LabelSet(c.LabelSet))
}

func inRange(v float32) bool {
	return v >= 0 && v <= 1
}
