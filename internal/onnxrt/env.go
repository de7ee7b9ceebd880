// Package onnxrt owns the process-wide ONNX Runtime environment. The
// runtime can only be initialized once per process, so every model user
// acquires a reference and releases it when done.
package onnxrt

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	mu      sync.Mutex
	refs    int
	libPath string
)

// Acquire initializes the runtime from the shared library at lib, or adds
// a reference when it is already running. The returned release function
// must be called exactly once.
func Acquire(lib string) (release func(), err error) {
	mu.Lock()
	defer mu.Unlock()

	if refs == 0 {
		ort.SetSharedLibraryPath(lib)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnxrt: initialize %s: %w", lib, err)
		}
		libPath = lib
	} else if lib != libPath {
		return nil, fmt.Errorf("onnxrt: runtime already loaded from %s, cannot load %s", libPath, lib)
	}
	refs++

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			defer mu.Unlock()
			refs--
			if refs == 0 {
				ort.DestroyEnvironment()
				libPath = ""
			}
		})
	}, nil
}
