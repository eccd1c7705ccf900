package daemon

import (
	"github.com/willibrandon/lofid/internal/config"
	"github.com/willibrandon/lofid/internal/protocol"
)

// ModelDirFor returns the configured model directory for a backend tag.
func ModelDirFor(cfg config.Config, backend string) string {
	if backend == config.BackendAceStep {
		return cfg.Daemon.AceStepModelPath
	}

	return cfg.Daemon.ModelPath
}

// DescribeBackends reports both backends' installedness without
// constructing any ONNX session; "ready" means weights are present and
// loadable on demand. Shared by the protocol's get_backends method and
// the CLI's backends command.
func DescribeBackends(cfg config.Config) protocol.GetBackendsResult {
	return protocol.GetBackendsResult{
		Backends: []protocol.BackendDescriptor{
			describeBackend(cfg, config.BackendMusicgen, "MusicGen", MusicgenSampleRate, MusicgenMinDurationSec, MusicgenMaxDurationSec),
			describeBackend(cfg, config.BackendAceStep, "ACE-Step", AceStepSampleRate, AceStepMinDurationSec, AceStepMaxDurationSec),
		},
		DefaultBackend: cfg.Daemon.Backend,
	}
}

func describeBackend(cfg config.Config, tag, name string, sampleRate, minDur, maxDur int) protocol.BackendDescriptor {
	modelDir := ModelDirFor(cfg, tag)

	status := "not_installed"

	var modelVersion string

	if BackendAvailable(tag, modelDir) {
		status = "ready"
		modelVersion = detectModelVersion(modelDir, tag)
	}

	return protocol.BackendDescriptor{
		Type:           tag,
		Name:           name,
		Status:         status,
		MinDurationSec: minDur,
		MaxDurationSec: maxDur,
		SampleRate:     sampleRate,
		ModelVersion:   modelVersion,
	}
}
