package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/pkg/engine"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Engines.WakeWord.KeywordPath = "/models/picovoice.ppn"
	cfg.Engines.Intent.ContextPath = "/models/coffee_maker.rhn"
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	d := config.Diff(cfg, baseConfig())
	if d.Changed() {
		t.Errorf("expected no changes for equal configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone should not require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name:   "sensitivity",
			mutate: func(c *config.Config) { c.Engines.WakeWord.Sensitivity = engine.Ptr[float32](0.9) },
			want:   []string{"engines"},
		},
		{
			name:   "device",
			mutate: func(c *config.Config) { c.Capture.DeviceIndex = engine.Ptr(3) },
			want:   []string{"capture"},
		},
		{
			name: "metrics and engines",
			mutate: func(c *config.Config) {
				c.Server.MetricsAddr = ":9100"
				c.Engines.Intent.ContextPath = "/models/other.rhn"
			},
			want: []string{"server.metrics_addr", "engines"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			new := baseConfig()
			tt.mutate(new)
			d := config.Diff(baseConfig(), new)
			if !slices.Equal(d.RestartRequired, tt.want) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.want)
			}
			if d.LogLevelChanged {
				t.Error("unexpected LogLevelChanged")
			}
		})
	}
}
