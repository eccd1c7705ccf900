// Package testutil provides shared skip helpers and fixtures for tests that
// depend on external prerequisites (an ONNX Runtime shared library, model
// weights on disk) that are not guaranteed to be present in every
// environment this daemon's tests run in.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireONNXRuntime(t)
//	    testutil.RequireModelWeights(t, "models/musicgen")
//	    ...
//	}
package testutil

import (
	"os"
	"testing"

	"github.com/willibrandon/lofid/internal/model"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks (in order): the ORT_LIBRARY_PATH env var, then the
// LOFI_ORT_LIB env var, then common system library paths.
func RequireONNXRuntime(t testing.TB) {
	t.Helper()

	for _, env := range []string{"ORT_LIBRARY_PATH", "LOFI_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return // found
			}
			t.Skipf("ONNX Runtime library not found at %s=%q", env, p)
		}
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return // found
		}
	}

	t.Skip("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or LOFI_ORT_LIB")
}

// RequireModelWeights skips the test if the named backend's weight directory
// is not present and populated on disk, using the same check the daemon
// performs before loading a backend.
func RequireModelWeights(t testing.TB, path string) {
	t.Helper()

	if err := model.EnsurePresent(path); err != nil {
		t.Skipf("model weights not available at %q: %v", path, err)
	}
}
