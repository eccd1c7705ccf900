// Package config loads the daemon's layered configuration: built-in
// defaults, a config file, environment variables, and command-line flags,
// in that order of increasing precedence, via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the daemon's full configuration tree.
type Config struct {
	Daemon   DaemonConfig  `mapstructure:"daemon"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	LogLevel string        `mapstructure:"log_level"`
}

// DaemonConfig holds the settings carried by the LOFI_* environment
// variables (LOFI_MODEL_PATH, LOFI_ACE_STEP_MODEL_PATH, LOFI_CACHE_PATH,
// LOFI_DEVICE, LOFI_BACKEND, LOFI_THREADS, LOFI_ACE_STEP_STEPS,
// LOFI_ACE_STEP_SCHEDULER, LOFI_ACE_STEP_GUIDANCE).
type DaemonConfig struct {
	// ModelPath is the directory holding the autoregressive (musicgen)
	// backend's ONNX manifest and graph files.
	ModelPath string `mapstructure:"model_path"`
	// AceStepModelPath is the directory holding the diffusion (ace_step)
	// backend's ONNX manifest and graph files.
	AceStepModelPath string `mapstructure:"ace_step_model_path"`
	// CachePath is the directory generated .wav tracks are written to;
	// track files are named "<cache_path>/<track_id>.wav". The result
	// cache's index is held in memory only and is not stored here.
	CachePath string `mapstructure:"cache_path"`
	// Device is one of auto|cpu|cuda|metal. It is loaded but not consulted
	// when ONNX sessions are created; every runner uses ONNX Runtime's
	// default session options.
	Device string `mapstructure:"device"`
	// Backend is the server's default backend tag (musicgen|ace_step) used
	// when a generate request omits one.
	Backend string `mapstructure:"backend"`
	// Threads is the configured ONNX Runtime intra-op thread count, 1-256.
	// It is not applied to the ONNX sessions, which run with ONNX
	// Runtime's default session options.
	Threads int `mapstructure:"threads"`
	// AceStepSteps is the default diffusion step count, 1-200.
	AceStepSteps int `mapstructure:"ace_step_steps"`
	// AceStepScheduler is the default solver name (euler|heun|pingpong).
	AceStepScheduler string `mapstructure:"ace_step_scheduler"`
	// AceStepGuidance is the default diffusion guidance scale, 1.0-20.0.
	AceStepGuidance float64 `mapstructure:"ace_step_guidance"`
	// CacheCapacity bounds the result cache's entry count (spec default 100).
	CacheCapacity int `mapstructure:"cache_capacity"`
	// QueueCapacity is loaded but not consulted: the pending-job queue is
	// always bounded at queue.MaxSize (10).
	QueueCapacity int `mapstructure:"queue_capacity"`
}

// RuntimeConfig holds ONNX Runtime bootstrap settings.
type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
}

// LoadOptions configures Load.
type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultConfig returns the daemon's built-in configuration defaults.
func DefaultConfig() Config {
	return Config{
		Daemon: DaemonConfig{
			ModelPath:        "models/musicgen",
			AceStepModelPath: "models/ace_step",
			CachePath:        "cache",
			Device:           "auto",
			Backend:          "musicgen",
			Threads:          4,
			AceStepSteps:     60,
			AceStepScheduler: "euler",
			AceStepGuidance:  7.0,
			CacheCapacity:    100,
			QueueCapacity:    10,
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTVersion:     "",
		},
		LogLevel: "info",
	}
}

// RegisterFlags registers the daemon's CLI flags plus the ambient ONNX
// Runtime/logging flags.
func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("model-dir", defaults.Daemon.ModelPath, "Directory holding the musicgen backend's ONNX manifest")
	fs.String("ace-step-model-dir", defaults.Daemon.AceStepModelPath, "Directory holding the ace_step backend's ONNX manifest")
	fs.String("cache-path", defaults.Daemon.CachePath, "Directory for generated .wav tracks and the result cache")
	fs.String("device", defaults.Daemon.Device, "Execution device (auto|cpu|cuda|metal)")
	fs.String("backend", defaults.Daemon.Backend, "Default backend (musicgen|ace_step)")
	fs.Int("threads", defaults.Daemon.Threads, "ONNX Runtime intra-op thread count (1-256)")
	fs.Int("steps", defaults.Daemon.AceStepSteps, "Default ace_step diffusion step count (1-200)")
	fs.String("scheduler", defaults.Daemon.AceStepScheduler, "Default ace_step solver (euler|heun|pingpong)")
	fs.Float64("guidance", defaults.Daemon.AceStepGuidance, "Default ace_step classifier-free guidance scale (1.0-20.0)")
	fs.Int("cache-capacity", defaults.Daemon.CacheCapacity, "Maximum number of tracks retained in the result cache")
	fs.Int("queue-capacity", defaults.Daemon.QueueCapacity, "Maximum number of pending generation jobs")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

// Load builds a Config from defaults, an optional config file, environment
// variables prefixed LOFI_, and bound command-line flags, in that order of
// increasing precedence.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("LOFI")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("lofid")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("daemon.model_path", c.Daemon.ModelPath)
	v.SetDefault("daemon.ace_step_model_path", c.Daemon.AceStepModelPath)
	v.SetDefault("daemon.cache_path", c.Daemon.CachePath)
	v.SetDefault("daemon.device", c.Daemon.Device)
	v.SetDefault("daemon.backend", c.Daemon.Backend)
	v.SetDefault("daemon.threads", c.Daemon.Threads)
	v.SetDefault("daemon.ace_step_steps", c.Daemon.AceStepSteps)
	v.SetDefault("daemon.ace_step_scheduler", c.Daemon.AceStepScheduler)
	v.SetDefault("daemon.ace_step_guidance", c.Daemon.AceStepGuidance)
	v.SetDefault("daemon.cache_capacity", c.Daemon.CacheCapacity)
	v.SetDefault("daemon.queue_capacity", c.Daemon.QueueCapacity)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("log_level", c.LogLevel)
}

// registerAliases binds each recognized LOFI_* environment variable name
// to its mapstructure key explicitly, so they work whether or not
// AutomaticEnv's key-replacer heuristic would already cover them.
func registerAliases(v *viper.Viper) {
	must(v.BindEnv("daemon.model_path", "LOFI_MODEL_PATH"))
	must(v.BindEnv("daemon.ace_step_model_path", "LOFI_ACE_STEP_MODEL_PATH"))
	must(v.BindEnv("daemon.cache_path", "LOFI_CACHE_PATH"))
	must(v.BindEnv("daemon.device", "LOFI_DEVICE"))
	must(v.BindEnv("daemon.backend", "LOFI_BACKEND"))
	must(v.BindEnv("daemon.threads", "LOFI_THREADS"))
	must(v.BindEnv("daemon.ace_step_steps", "LOFI_ACE_STEP_STEPS"))
	must(v.BindEnv("daemon.ace_step_scheduler", "LOFI_ACE_STEP_SCHEDULER"))
	must(v.BindEnv("daemon.ace_step_guidance", "LOFI_ACE_STEP_GUIDANCE"))

	v.RegisterAlias("daemon.model_path", "model-dir")
	v.RegisterAlias("daemon.ace_step_model_path", "ace-step-model-dir")
	v.RegisterAlias("daemon.cache_path", "cache-path")
	v.RegisterAlias("daemon.device", "device")
	v.RegisterAlias("daemon.backend", "backend")
	v.RegisterAlias("daemon.threads", "threads")
	v.RegisterAlias("daemon.ace_step_steps", "steps")
	v.RegisterAlias("daemon.ace_step_scheduler", "scheduler")
	v.RegisterAlias("daemon.ace_step_guidance", "guidance")
	v.RegisterAlias("daemon.cache_capacity", "cache-capacity")
	v.RegisterAlias("daemon.queue_capacity", "queue-capacity")
	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_version", "runtime-ort-version")
	v.RegisterAlias("log_level", "log-level")
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("config: bind env: %v", err))
	}
}
