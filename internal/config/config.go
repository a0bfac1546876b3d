// Package config provides the configuration schema, loader, and engine
// registry for hearken.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/hearken/internal/capture"
	"github.com/MrWong99/hearken/internal/pipeline"
	"github.com/MrWong99/hearken/pkg/engine"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Backend selects the audio subsystem used for live capture.
type Backend string

const (
	// BackendMalgo captures through miniaudio with a push callback.
	BackendMalgo Backend = "malgo"

	// BackendPortAudio captures through PortAudio's blocking reads.
	BackendPortAudio Backend = "portaudio"
)

// IsValid reports whether b is a recognised capture backend.
func (b Backend) IsValid() bool {
	return b == BackendMalgo || b == BackendPortAudio
}

// DrainMode selects where frames are processed for push backends.
type DrainMode string

const (
	// DrainInline processes frames inside the device callback.
	DrainInline DrainMode = "inline"

	// DrainAsync processes frames on a dedicated consumer goroutine.
	DrainAsync DrainMode = "async"
)

// IsValid reports whether d is a recognised drain mode.
func (d DrainMode) IsValid() bool {
	return d == DrainInline || d == DrainAsync
}

// Default values filled in by [ApplyDefaults].
const (
	DefaultLogLevel       = LogInfo
	DefaultWakeWordEngine = "porcupine"
	DefaultIntentEngine   = "rhino"
	DefaultBackend        = BackendMalgo
	DefaultDrain          = DrainInline
)

// Config is the root configuration structure for hearken.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engines EnginesConfig `yaml:"engines"`
	Capture CaptureConfig `yaml:"capture"`
}

// ServerConfig holds logging and the optional observability listener.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// EnginesConfig selects the wake-word and intent engines.
type EnginesConfig struct {
	// AccessKey is shared by both engines unless an engine sets its own.
	AccessKey string `yaml:"access_key"`

	WakeWord WakeWordEntry `yaml:"wake_word"`
	Intent   IntentEntry   `yaml:"intent"`
}

// WakeWordEntry configures the wake-word engine. Name is used to look up the
// constructor in the [Registry].
type WakeWordEntry struct {
	Name        string   `yaml:"name"`
	AccessKey   string   `yaml:"access_key"`
	KeywordPath string   `yaml:"keyword_path"`
	ModelPath   string   `yaml:"model_path"`
	LibraryPath string   `yaml:"library_path"`
	Sensitivity *float32 `yaml:"sensitivity"`
}

// IntentEntry configures the intent engine.
type IntentEntry struct {
	Name        string `yaml:"name"`
	AccessKey   string `yaml:"access_key"`
	ContextPath string `yaml:"context_path"`
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`

	Sensitivity *float32 `yaml:"sensitivity"`

	// EndpointDuration is the trailing silence in seconds, within [0.5, 5].
	EndpointDuration *float32 `yaml:"endpoint_duration"`

	RequireEndpoint *bool `yaml:"require_endpoint"`
}

// CaptureConfig configures live microphone capture.
type CaptureConfig struct {
	Backend Backend   `yaml:"backend"`
	Drain   DrainMode `yaml:"drain"`

	// DeviceIndex selects a device from the backend's listing. Nil or -1
	// selects the default device.
	DeviceIndex *int `yaml:"device_index"`

	// OutputPath, when set, records the raw captured stream as a WAV file.
	OutputPath string `yaml:"output_path"`

	// PollInterval bounds how long cancellation takes to be observed.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Device returns the configured device index or [capture.DefaultDevice].
func (c CaptureConfig) Device() int {
	if c.DeviceIndex == nil {
		return capture.DefaultDevice
	}
	return *c.DeviceIndex
}

// ApplyDefaults fills in every unset field that has a default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Engines.WakeWord.Name == "" {
		cfg.Engines.WakeWord.Name = DefaultWakeWordEngine
	}
	if cfg.Engines.Intent.Name == "" {
		cfg.Engines.Intent.Name = DefaultIntentEngine
	}
	if cfg.Capture.Backend == "" {
		cfg.Capture.Backend = DefaultBackend
	}
	if cfg.Capture.Drain == "" {
		cfg.Capture.Drain = DefaultDrain
	}
	if cfg.Capture.DeviceIndex == nil {
		cfg.Capture.DeviceIndex = engine.Ptr(capture.DefaultDevice)
	}
	if cfg.Capture.PollInterval == 0 {
		cfg.Capture.PollInterval = capture.DefaultPollInterval
	}
}

// PipelineConfig converts the engine section into a [pipeline.Config].
func (c *Config) PipelineConfig() pipeline.Config {
	ww := c.Engines.WakeWord
	in := c.Engines.Intent
	return pipeline.Config{
		AccessKey: c.Engines.AccessKey,
		WakeWord: engine.WakeWordConfig{
			Name:        ww.Name,
			AccessKey:   ww.AccessKey,
			KeywordPath: ww.KeywordPath,
			ModelPath:   ww.ModelPath,
			LibraryPath: ww.LibraryPath,
			Sensitivity: ww.Sensitivity,
		},
		Intent: engine.IntentConfig{
			Name:             in.Name,
			AccessKey:        in.AccessKey,
			ContextPath:      in.ContextPath,
			ModelPath:        in.ModelPath,
			LibraryPath:      in.LibraryPath,
			Sensitivity:      in.Sensitivity,
			EndpointDuration: in.EndpointDuration,
			RequireEndpoint:  in.RequireEndpoint,
		},
	}
}
