// Package app wires the hearken subsystems into a running application.
//
// The App struct owns the full lifecycle: New validates the config and
// builds the pipeline, RunFile and RunMic feed it audio, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithBuilder, WithFs,
// WithDeviceOpener). When an option is not provided, New uses the real
// engines, the OS filesystem and the configured capture backend.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/internal/health"
	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/internal/pipeline"
	"github.com/MrWong99/hearken/pkg/engine"
)

// shutdownTimeout bounds how long the observability listener may take to
// drain when a run ends.
const shutdownTimeout = 5 * time.Second

// App owns the pipeline and everything feeding it.
type App struct {
	cfg *config.Config

	fs        afero.Fs
	builder   pipeline.Builder
	out       io.Writer
	openDev   DeviceOpener
	telemetry *observe.Provider
	metrics   *observe.Metrics

	pipe *pipeline.Pipeline

	// outMu serializes callback output; callbacks may run on a device thread.
	outMu sync.Mutex

	pipelineGate *health.Gate
	captureGate  *health.Gate

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBuilder injects the engine builder instead of [DefaultRegistry].
func WithBuilder(b pipeline.Builder) Option {
	return func(a *App) { a.builder = b }
}

// WithFs injects the filesystem used for input files, model path checks and
// recordings.
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithOutput redirects wake and inference output, which defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithDeviceOpener replaces the hardware capture backends.
func WithDeviceOpener(open DeviceOpener) Option {
	return func(a *App) { a.openDev = open }
}

// WithTelemetry records to p's meter provider and serves p's Prometheus
// registry on /metrics.
func WithTelemetry(p *observe.Provider) Option {
	return func(a *App) { a.telemetry = p }
}

// WithMetrics records to m without a telemetry provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New validates cfg, checks that every configured engine file exists and
// builds the pipeline.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:          cfg,
		fs:           afero.NewOsFs(),
		out:          os.Stdout,
		openDev:      OpenDevice,
		pipelineGate: health.NewGate("pipeline"),
		captureGate:  health.NewGate("capture"),
	}
	for _, o := range opts {
		o(a)
	}
	if a.builder == nil {
		a.builder = DefaultRegistry()
	}
	if a.metrics == nil {
		if a.telemetry != nil {
			a.metrics = a.telemetry.Metrics
		} else {
			a.metrics = observe.DefaultMetrics()
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}
	if err := config.CheckPaths(a.fs, cfg); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	p, err := pipeline.New(cfg.PipelineConfig(), a.builder, a.onWake, a.onInference,
		pipeline.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.pipe = p
	a.closers = append(a.closers, p.Close)
	a.pipelineGate.Ready()
	// Only live capture takes the capture gate down.
	a.captureGate.Ready()
	return a, nil
}

// Pipeline returns the pipeline built by New.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipe }

// Version returns the pipeline version string.
func (a *App) Version() string { return a.pipe.Version() }

func (a *App) onWake() {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, "[wake word]")
}

func (a *App) onInference(inf engine.Inference) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	PrintInference(a.out, inf)
}

// Handler returns the observability mux: /healthz, /readyz and, with
// telemetry configured, /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(a.Version(), a.pipelineGate.Checker(), a.captureGate.Checker()).Register(mux)
	if a.telemetry != nil {
		mux.Handle("GET /metrics", a.telemetry.Handler())
	}
	return observe.Middleware(a.metrics)(mux)
}

// Run executes job while serving [App.Handler] on the configured metrics
// address. Without an address it just runs job. A listener failure cancels
// the job; the listener is shut down when the job returns.
func (a *App) Run(ctx context.Context, job func(context.Context) error) error {
	addr := a.cfg.Server.MetricsAddr
	if addr == "" {
		return job(ctx)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("observability listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics listener shutdown", "err", err)
			}
		}()
		return job(gctx)
	})
	return g.Wait()
}

// Shutdown releases the pipeline and flushes telemetry. It is safe to call
// more than once; only the first call does any work.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.pipelineGate.Fail(errors.New("shutting down"))
		for _, c := range a.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		if a.telemetry != nil {
			if err := a.telemetry.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
