// Package providers - Execution provider selection for ONNX Runtime sessions.
package providers

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Backend names an ONNX Runtime execution provider.
type Backend string

const (
	// BackendCPU uses the default CPU provider.
	BackendCPU Backend = "cpu"
	// BackendCoreML uses Apple CoreML for macOS/iOS acceleration.
	BackendCoreML Backend = "coreml"
	// BackendCUDA uses NVIDIA CUDA for GPU acceleration.
	BackendCUDA Backend = "cuda"
	// BackendOpenVINO uses Intel OpenVINO.
	BackendOpenVINO Backend = "openvino"
)

// ErrUnsupportedBackend is returned for an unknown execution provider name.
var ErrUnsupportedBackend = errors.New("unsupported execution provider")

// ParseBackend converts a provider name into a Backend. An empty name selects the CPU.
//
// Arguments:
//   - s: The provider name, case-insensitive.
//
// Returns:
//   - Backend: The matching backend.
//   - error: ErrUnsupportedBackend if the name is unknown.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendCPU, nil
	case BackendCPU, BackendCoreML, BackendCUDA, BackendOpenVINO:
		return b, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedBackend, "%q", s)
	}
}

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"device_id" mapstructure:"device_id"`
	// The size limit of the device memory arena in bytes; 0 leaves the runtime default.
	GPUMemLimit int64 `json:"gpu_mem_limit" mapstructure:"gpu_mem_limit"`
	// Allow TensorFloat-32 on Ampere and newer GPUs.
	UseTF32 bool `json:"use_tf32" mapstructure:"use_tf32"`
	// If this option is enabled, the execution provider prefers NHWC operators over NCHW.
	PreferNHWC bool `json:"prefer_nhwc" mapstructure:"prefer_nhwc"`
}

// native converts the options into the runtime's key/value form.
func (o CUDAOptions) native() map[string]string {
	opts := map[string]string{
		"device_id":   fmt.Sprintf("%d", o.DeviceID),
		"use_tf32":    boolFlag(o.UseTF32),
		"prefer_nhwc": boolFlag(o.PreferNHWC),
	}
	if o.GPUMemLimit > 0 {
		opts["gpu_mem_limit"] = fmt.Sprintf("%d", o.GPUMemLimit)
	}
	return opts
}

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type (CPU, GPU, NPU).
	DeviceType string `json:"device_type" mapstructure:"device_type"`
	// One of FP32, FP16 or ACCURACY.
	Precision string `json:"precision" mapstructure:"precision"`
	// Overrides the accelerator's default number of threads; 0 leaves the default.
	NumOfThreads int `json:"num_of_threads" mapstructure:"num_of_threads"`
}

func (o OpenVINOOptions) native() map[string]string {
	opts := map[string]string{}
	if o.DeviceType != "" {
		opts["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		opts["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		opts["num_of_threads"] = fmt.Sprintf("%d", o.NumOfThreads)
	}
	return opts
}

// appendExecutionProvider enables the configured backend on the session options.
// The CPU backend needs no registration.
func appendExecutionProvider(options *ort.SessionOptions, cfg ONNXConfig) error {
	switch cfg.Backend {
	case BackendCPU, "":
		return nil
	case BackendCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case BackendOpenVINO:
		if err := options.AppendExecutionProviderOpenVINO(cfg.OpenVINO.native()); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case BackendCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(cfg.CUDA.native()); err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	default:
		return errors.Wrapf(ErrUnsupportedBackend, "%q", cfg.Backend)
	}
	return nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
