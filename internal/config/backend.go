package config

import (
	"fmt"
	"strings"
)

// Backend tags identify the two model families this daemon can load.
// Exactly one is resident at a time.
const (
	BackendMusicgen = "musicgen"
	BackendAceStep  = "ace_step"
)

// NormalizeBackend validates and lower-cases a backend tag, defaulting an
// empty string to BackendMusicgen.
func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendMusicgen
	}

	switch backend {
	case BackendMusicgen, BackendAceStep:
		return backend, nil
	default:
		return "", fmt.Errorf("invalid backend %q (expected %s|%s)", raw, BackendMusicgen, BackendAceStep)
	}
}
