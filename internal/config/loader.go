package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/hearken/internal/capture"
	"github.com/MrWong99/hearken/pkg/engine"
)

// ValidEngineNames lists known engine names per engine kind.
// Used by [Validate] to warn about unrecognised engine names.
var ValidEngineNames = map[string][]string{
	"wake_word": {"porcupine"},
	"intent":    {"rhino"},
}

// Load reads the YAML configuration file at path from fs and returns a
// validated [Config] with defaults applied.
func Load(fs afero.Fs, path string) (*Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := Parse(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML config from r and applies defaults without
// validating, so callers can layer overrides on top before calling
// [Validate]. Unknown fields are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Engines
	ww := cfg.Engines.WakeWord
	in := cfg.Engines.Intent
	validateEngineName("wake_word", ww.Name)
	validateEngineName("intent", in.Name)

	if ww.KeywordPath == "" {
		errs = append(errs, errors.New("engines.wake_word.keyword_path is required"))
	}
	if in.ContextPath == "" {
		errs = append(errs, errors.New("engines.intent.context_path is required"))
	}
	errs = appendRange(errs, "engines.wake_word.sensitivity", ww.Sensitivity, engine.MinSensitivity, engine.MaxSensitivity)
	errs = appendRange(errs, "engines.intent.sensitivity", in.Sensitivity, engine.MinSensitivity, engine.MaxSensitivity)
	errs = appendRange(errs, "engines.intent.endpoint_duration", in.EndpointDuration, engine.MinEndpointDuration, engine.MaxEndpointDuration)

	if cfg.Engines.AccessKey == "" && (ww.AccessKey == "" || in.AccessKey == "") {
		slog.Warn("no access key configured; engines that require one will fail to initialise")
	}

	// Capture
	if cfg.Capture.Backend != "" && !cfg.Capture.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("capture.backend %q is invalid; valid values: malgo, portaudio", cfg.Capture.Backend))
	}
	if cfg.Capture.Drain != "" && !cfg.Capture.Drain.IsValid() {
		errs = append(errs, fmt.Errorf("capture.drain %q is invalid; valid values: inline, async", cfg.Capture.Drain))
	}
	if cfg.Capture.Drain == DrainAsync && cfg.Capture.Backend == BackendPortAudio {
		slog.Warn("capture.drain is ignored for the portaudio backend; frames are processed after each read")
	}
	if cfg.Capture.DeviceIndex != nil && *cfg.Capture.DeviceIndex < capture.DefaultDevice {
		errs = append(errs, fmt.Errorf("capture.device_index %d is invalid; use -1 for the default device", *cfg.Capture.DeviceIndex))
	}
	if cfg.Capture.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("capture.poll_interval %s must not be negative", cfg.Capture.PollInterval))
	}

	return errors.Join(errs...)
}

// CheckPaths verifies that every configured model, keyword, context and
// library file exists on fs, and that the recording directory exists.
func CheckPaths(fs afero.Fs, cfg *Config) error {
	ww := cfg.Engines.WakeWord
	in := cfg.Engines.Intent
	files := []struct{ field, path string }{
		{"engines.wake_word.keyword_path", ww.KeywordPath},
		{"engines.wake_word.model_path", ww.ModelPath},
		{"engines.wake_word.library_path", ww.LibraryPath},
		{"engines.intent.context_path", in.ContextPath},
		{"engines.intent.model_path", in.ModelPath},
		{"engines.intent.library_path", in.LibraryPath},
	}

	var errs []error
	for _, f := range files {
		if f.path == "" {
			continue
		}
		ok, err := afero.Exists(fs, f.path)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s %q: %w", f.field, f.path, err))
		case !ok:
			errs = append(errs, fmt.Errorf("%s %q does not exist", f.field, f.path))
		}
	}
	if out := cfg.Capture.OutputPath; out != "" {
		if ok, _ := afero.DirExists(fs, filepath.Dir(out)); !ok {
			errs = append(errs, fmt.Errorf("capture.output_path %q: directory does not exist", out))
		}
	}
	return errors.Join(errs...)
}

func appendRange(errs []error, field string, v *float32, lo, hi float32) []error {
	if v == nil || (*v >= lo && *v <= hi) {
		return errs
	}
	return append(errs, fmt.Errorf("%s %.2f is out of range [%g, %g]", field, *v, lo, hi))
}

// validateEngineName logs a warning if name is non-empty and not found in
// the [ValidEngineNames] list for the given kind.
func validateEngineName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidEngineNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown engine name; may be a typo or a third-party engine",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
