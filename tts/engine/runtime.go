package engine

import (
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// InitRuntime loads the ONNX Runtime shared library and initializes its
// environment. Safe for concurrent callers; only the first call does work.
func InitRuntime() error {
	runtimeOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		ort.SetSharedLibraryPath(sharedLibraryPath())
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// sharedLibraryPath resolves the runtime library, preferring the
// ONNXRUNTIME_LIB_PATH environment variable over common install locations.
func sharedLibraryPath() string {
	if path := os.Getenv("ONNXRUNTIME_LIB_PATH"); path != "" {
		return path
	}
	candidates := []string{
		"/usr/local/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	// Fall back to the bare name so the loader searches LD_LIBRARY_PATH.
	return "libonnxruntime.so"
}
