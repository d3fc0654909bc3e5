// Package providers - Utility functions.
package providers

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// ErrSharedLibraryNotFound is returned when the ONNX Runtime shared library is missing.
var ErrSharedLibraryNotFound = errors.New("ONNX Runtime library not found")

// GetSharedLibPath returns the default path to the shared library for the current platform.
//
// Returns:
//   - string: The path to the shared library, or "" when the platform is unsupported.
func GetSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
	return ""
}

// ResolveSharedLibPath picks the shared library to load and checks that it exists.
//
// Arguments:
//   - override: A configured path; the platform default is used when empty.
//
// Returns:
//   - string: The library path.
//   - error: ErrSharedLibraryNotFound if there is no library at that path.
func ResolveSharedLibPath(override string) (string, error) {
	path := override
	if path == "" {
		path = GetSharedLibPath()
	}
	if path == "" {
		return "", errors.Wrapf(ErrSharedLibraryNotFound, "no default for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(ErrSharedLibraryNotFound, "%s: %v", path, err)
	}
	return path, nil
}
