// Package model resolves on-disk model weight locations for the two
// generation backends. Fetching weights from a remote repository is
// explicitly out of scope for this daemon; callers are expected to have
// already placed the ONNX graph files and manifest at the configured path.
package model

import (
	"fmt"
	"os"
)

// EnsurePresent checks that the given path exists and is readable, acting as
// the blocking "ensure weights present" primitive the generation drivers
// depend on before constructing any inference session. It performs no
// network activity and triggers no download.
func EnsurePresent(path string) error {
	if path == "" {
		return fmt.Errorf("model: weights path is empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model: weights not found at %q: %w", path, err)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("model: cannot list weights directory %q: %w", path, err)
		}

		if len(entries) == 0 {
			return fmt.Errorf("model: weights directory %q is empty", path)
		}
	}

	return nil
}
