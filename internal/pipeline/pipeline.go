// Package pipeline coordinates a wake-word engine and an intent engine into
// a single voice-command pipeline.
//
// A [Pipeline] consumes fixed-length PCM frames. While scanning, every frame
// goes to the wake-word engine; once the keyword is detected the pipeline
// switches to accumulating and routes frames to the intent engine until it
// finalizes an inference, then switches back. Both engines must agree on
// sample rate and frame length; this is checked once in [New].
//
// A Pipeline is not safe for concurrent use. Callbacks run synchronously on
// the goroutine that called Process.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/pkg/engine"
)

// Release is the pipeline's own version, reported as the first component of
// [Pipeline.Version].
const Release = "1.1.0"

// Mode is the pipeline's routing state.
type Mode int

const (
	// ModeScanning routes frames to the wake-word engine.
	ModeScanning Mode = iota
	// ModeAccumulating routes frames to the intent engine.
	ModeAccumulating
)

func (m Mode) String() string {
	switch m {
	case ModeScanning:
		return "scanning"
	case ModeAccumulating:
		return "accumulating"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Config selects and tunes both engines. AccessKey is copied into either
// engine config that leaves its own AccessKey empty.
type Config struct {
	AccessKey string
	WakeWord  engine.WakeWordConfig
	Intent    engine.IntentConfig
}

// Builder constructs engines from their configs. The config package's
// Registry is the production implementation.
type Builder interface {
	NewWakeWord(cfg engine.WakeWordConfig) (engine.WakeWord, error)
	NewIntent(cfg engine.IntentConfig) (engine.Intent, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records pipeline metrics to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger sets the logger used for lifecycle and transition logs.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// Pipeline owns a wake-word engine and an intent engine and dispatches
// frames between them.
type Pipeline struct {
	cfg    Config
	wake   engine.WakeWord
	intent engine.Intent

	onWake      func()
	onInference func(engine.Inference)

	frameLength int
	sampleRate  int
	mode        Mode
	closed      bool

	metrics *observe.Metrics
	log     *slog.Logger
}

// New builds the wake-word engine, then the intent engine, and verifies that
// they agree on sample rate and frame length. It never returns a partially
// built pipeline: on failure every engine built so far is closed.
//
// onWake is invoked once per detection and onInference once per finalized
// inference. Either may be nil.
func New(cfg Config, b Builder, onWake func(), onInference func(engine.Inference), opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:         cfg,
		onWake:      onWake,
		onInference: onInference,
		metrics:     observe.DefaultMetrics(),
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if b == nil {
		return nil, &EngineInitError{Engine: EngineWakeWord, Err: errors.New("no engine builder")}
	}

	wcfg := cfg.WakeWord
	if wcfg.AccessKey == "" {
		wcfg.AccessKey = cfg.AccessKey
	}
	icfg := cfg.Intent
	if icfg.AccessKey == "" {
		icfg.AccessKey = cfg.AccessKey
	}

	wake, err := b.NewWakeWord(wcfg)
	if err != nil {
		return nil, &EngineInitError{Engine: EngineWakeWord, Err: err}
	}
	if wake.FrameLength() <= 0 || wake.SampleRate() <= 0 {
		p.release(wake, nil)
		return nil, &EngineInitError{Engine: EngineWakeWord, Err: fmt.Errorf(
			"reported %d Hz/%d samples", wake.SampleRate(), wake.FrameLength())}
	}

	intent, err := b.NewIntent(icfg)
	if err != nil {
		p.release(wake, nil)
		return nil, &EngineInitError{Engine: EngineIntent, Err: err}
	}

	if wake.SampleRate() != intent.SampleRate() || wake.FrameLength() != intent.FrameLength() {
		incompatible := &IncompatibleEnginesError{
			WakeWordSampleRate:  wake.SampleRate(),
			WakeWordFrameLength: wake.FrameLength(),
			IntentSampleRate:    intent.SampleRate(),
			IntentFrameLength:   intent.FrameLength(),
		}
		p.release(wake, intent)
		return nil, incompatible
	}

	p.wake = wake
	p.intent = intent
	p.frameLength = wake.FrameLength()
	p.sampleRate = wake.SampleRate()

	p.log.Info("pipeline ready",
		"wake_word", wcfg.Name,
		"intent", icfg.Name,
		"sample_rate", p.sampleRate,
		"frame_length", p.frameLength,
		"version", p.Version(),
	)
	return p, nil
}

// release closes engines built during a failed New. Close errors are logged
// because the construction error takes precedence.
func (p *Pipeline) release(wake engine.WakeWord, intent engine.Intent) {
	if intent != nil {
		if err := intent.Close(); err != nil {
			p.log.Warn("pipeline: release intent engine", "err", err)
		}
	}
	if wake != nil {
		if err := wake.Close(); err != nil {
			p.log.Warn("pipeline: release wake-word engine", "err", err)
		}
	}
}

// Process consumes one frame of exactly [Pipeline.FrameLength] samples.
//
// In [ModeScanning] the frame goes to the wake-word engine; a detection of
// keyword 0 switches to [ModeAccumulating] and invokes the wake callback.
// In [ModeAccumulating] the frame goes to the intent engine; once it
// finalizes, the inference is fetched, the pipeline returns to
// [ModeScanning], and the inference callback is invoked.
//
// On error the mode is left unchanged; call [Pipeline.Reset] to abandon an
// utterance.
func (p *Pipeline) Process(frame []int16) error {
	if p.closed {
		return ErrClosed
	}
	if len(frame) != p.frameLength {
		return &ProcessError{
			Mode: p.mode,
			Err:  fmt.Errorf("%w: got %d samples, want %d", ErrFrameLength, len(frame), p.frameLength),
		}
	}

	ctx := context.Background()
	mode := p.mode
	start := time.Now()

	var err error
	switch mode {
	case ModeScanning:
		err = p.scan(ctx, frame)
	case ModeAccumulating:
		err = p.accumulate(ctx, frame)
	}

	p.metrics.RecordFrame(ctx, mode.String(), time.Since(start).Seconds())
	return err
}

func (p *Pipeline) scan(ctx context.Context, frame []int16) error {
	idx, err := p.wake.Process(frame)
	if err != nil {
		p.metrics.RecordProcessError(ctx, string(EngineWakeWord))
		return &ProcessError{Engine: EngineWakeWord, Mode: ModeScanning, Err: err}
	}
	if idx != 0 {
		return nil
	}

	p.mode = ModeAccumulating
	p.metrics.WakeDetections.Add(ctx, 1)
	p.log.Debug("wake word detected", "mode", p.mode)
	if p.onWake != nil {
		p.onWake()
	}
	return nil
}

func (p *Pipeline) accumulate(ctx context.Context, frame []int16) error {
	finalized, err := p.intent.Process(frame)
	if err != nil {
		p.metrics.RecordProcessError(ctx, string(EngineIntent))
		return &ProcessError{Engine: EngineIntent, Mode: ModeAccumulating, Err: err}
	}
	if !finalized {
		return nil
	}

	inf, err := p.intent.Inference()
	if err != nil {
		p.metrics.RecordProcessError(ctx, string(EngineIntent))
		return &ProcessError{Engine: EngineIntent, Mode: ModeAccumulating, Err: fmt.Errorf("fetch inference: %w", err)}
	}

	p.mode = ModeScanning
	p.metrics.RecordInference(ctx, inf.IsUnderstood, inf.Intent)
	p.log.Debug("inference finalized",
		"understood", inf.IsUnderstood,
		"intent", inf.Intent,
		"slots", len(inf.Slots),
		"mode", p.mode,
	)
	if p.onInference != nil {
		p.onInference(inf)
	}
	return nil
}

// Reset returns the pipeline to [ModeScanning]. Use it to abandon an
// utterance after a processing error.
func (p *Pipeline) Reset() {
	if p.mode != ModeScanning {
		p.log.Debug("pipeline reset", "from", p.mode)
	}
	p.mode = ModeScanning
}

// Mode returns the current routing state.
func (p *Pipeline) Mode() Mode { return p.mode }

// FrameLength returns the number of samples Process expects.
func (p *Pipeline) FrameLength() int { return p.frameLength }

// SampleRate returns the sample rate in Hz shared by both engines.
func (p *Pipeline) SampleRate() int { return p.sampleRate }

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() Config { return p.cfg }

// Version returns e.g. "1.1.0 (wake-word v3.0.1) (intent v3.0.0)".
func (p *Pipeline) Version() string {
	return fmt.Sprintf("%s (wake-word v%s) (intent v%s)", Release, p.wake.Version(), p.intent.Version())
}

// Close releases both engines. Subsequent calls return nil.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if err := p.wake.Close(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: close wake-word engine: %w", err))
	}
	if err := p.intent.Close(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: close intent engine: %w", err))
	}
	return errors.Join(errs...)
}
