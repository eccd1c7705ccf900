package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/willibrandon/lofid/internal/config"
)

// RuntimeInfo describes the ONNX Runtime shared library every session in
// the process binds against.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
	Initialized bool
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

var (
	bootstrapOnce sync.Once
	bootstrapInfo RuntimeInfo
	errBootstrap  error
	shutdownFlag  atomic.Bool
)

// Bootstrap resolves the ONNX Runtime library once per process and pins the
// result. Backend bundles come and go as the daemon hot-swaps models, but
// they all bind the same library; re-resolving per swap would only invite
// version skew mid-process.
func Bootstrap(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	bootstrapOnce.Do(func() {
		info, err := DetectRuntime(cfg)
		if err != nil {
			errBootstrap = err
			return
		}

		// Keep this process-local marker for future ORT bindings.
		err = os.Setenv("LOFI_ORT_LIB", info.LibraryPath)
		if err != nil {
			errBootstrap = fmt.Errorf("set LOFI_ORT_LIB: %w", err)
			return
		}

		bootstrapInfo = info
		bootstrapInfo.Initialized = true
	})

	if errBootstrap != nil {
		return RuntimeInfo{}, errBootstrap
	}

	return bootstrapInfo, nil
}

func Shutdown() error {
	if !bootstrapInfo.Initialized {
		return nil
	}

	if shutdownFlag.Swap(true) {
		return nil
	}

	// Placeholder cleanup point for native ORT environment/session teardown.
	bootstrapInfo.Initialized = false

	return nil
}

// DetectRuntime locates the ONNX Runtime shared library and its version
// without loading it.
func DetectRuntime(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	path := resolveLibraryPath(cfg)
	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, errors.New("unable to detect ONNX Runtime library path")
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	return RuntimeInfo{LibraryPath: path, Version: resolveVersion(cfg, path)}, nil
}

// resolveLibraryPath walks the path sources in precedence order: explicit
// config, the daemon's own LOFI_ORT_LIB marker, the generic ORT variable,
// then well-known install locations for the current OS. An explicit source
// wins even if the file it names is missing, so a misconfiguration fails
// loudly instead of silently falling through to a system library.
func resolveLibraryPath(cfg config.RuntimeConfig) string {
	explicit := []string{
		cfg.ORTLibraryPath,
		os.Getenv("LOFI_ORT_LIB"),
		os.Getenv("ORT_LIBRARY_PATH"),
	}
	for _, p := range explicit {
		if p != "" {
			return p
		}
	}

	for _, c := range defaultLibraryCandidates() {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	return ""
}

// defaultLibraryCandidates lists the install locations probed when nothing
// names the library explicitly.
func defaultLibraryCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/opt/homebrew/lib/libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{"C:/onnxruntime/lib/onnxruntime.dll"}
	default:
		return []string{
			"/usr/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		}
	}
}

func resolveVersion(cfg config.RuntimeConfig, path string) string {
	if cfg.ORTVersion != "" {
		return cfg.ORTVersion
	}

	if v := os.Getenv("ORT_VERSION"); v != "" {
		return v
	}

	if v := inferVersionFromPath(path); v != "" {
		return v
	}

	return "unknown"
}

func inferVersionFromPath(path string) string {
	name := filepath.Base(path)
	if m := versionPattern.FindStringSubmatch(name); len(m) == 2 {
		return m[1]
	}

	return ""
}
