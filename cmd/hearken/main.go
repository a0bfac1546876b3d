// Command hearken runs the wake-word and intent pipeline over a WAV file or a
// live microphone.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/MrWong99/hearken/internal/app"
	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/internal/pipeline"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── Logger ────────────────────────────────────────────────────────────────
	// The level is raised or lowered once the config is known.
	level := new(slog.LevelVar)
	slog.SetDefault(newLogger(level))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{fs: afero.NewOsFs(), level: level}
	if err := c.rootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("hearken failed", "err", err)
		return 1
	}
	return 0
}

// newLogger returns a text logger on stderr whose level follows level.
func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Application lifecycle ─────────────────────────────────────────────────────

// runApp builds the application, runs job under the observability listener
// and shuts everything down afterwards.
func (c *cli) runApp(ctx context.Context, cfg *config.Config, job func(context.Context, *app.App) error) error {
	opts := []app.Option{app.WithFs(c.fs)}

	if cfg.Server.MetricsAddr != "" {
		prov, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "hearken",
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		opts = append(opts, app.WithTelemetry(prov))
	}

	a, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}
	slog.Info("pipeline ready",
		"version", a.Version(),
		"sample_rate", a.Pipeline().SampleRate(),
		"frame_length", a.Pipeline().FrameLength(),
	)

	runErr := a.Run(ctx, func(ctx context.Context) error { return job(ctx, a) })

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "err", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// watchConfig hot-reloads the log level while a long-running command is
// active. Everything else in the file only takes effect on the next run.
func (c *cli) watchConfig() (stop func()) {
	if c.configPath == "" {
		return func() {}
	}
	w, err := config.NewWatcher(c.fs, c.configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged && !c.flagSet("log-level") {
			c.level.Set(d.NewLogLevel.Level())
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if len(d.RestartRequired) > 0 {
			slog.Info("config changed, restart to apply", "sections", d.RestartRequired)
		}
	})
	if err != nil {
		// The file may only be valid together with command-line overrides.
		slog.Debug("config watcher disabled", "err", err)
		return func() {}
	}
	return w.Stop
}

// cliVersion is reported when the engines cannot be loaded.
func cliVersion() string {
	return fmt.Sprintf("hearken %s (pipeline %s)", version, pipeline.Release)
}
