// Package picovoice adapts the Porcupine wake-word engine and the Rhino
// speech-to-intent engine to the [engine.WakeWord] and [engine.Intent]
// contracts.
//
// Both bindings ship their native libraries and default models, so only an
// access key and the keyword or context file are required.
package picovoice

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	porcupine "github.com/Picovoice/porcupine/binding/go/v3"
	rhino "github.com/Picovoice/rhino/binding/go/v3"

	"github.com/MrWong99/hearken/pkg/engine"
)

// Engine names under which the adapters are usually registered.
const (
	PorcupineName = "porcupine"
	RhinoName     = "rhino"
)

var (
	// ErrAccessKeyRequired is returned when no access key was configured.
	ErrAccessKeyRequired = errors.New("picovoice: access key is required")

	// ErrDeleted is returned when an engine is used after Close.
	ErrDeleted = errors.New("picovoice: engine has been closed")
)

func warnLibraryPath(name, path string) {
	if path != "" {
		slog.Warn("picovoice: library path override is not supported by the Go binding; using the bundled library",
			"engine", name, "library_path", path)
	}
}

// ─── Porcupine ───────────────────────────────────────────────────────────────

// Porcupine is a single-keyword [engine.WakeWord].
type Porcupine struct {
	mu      sync.Mutex
	handle  porcupine.Porcupine
	deleted bool
}

var _ engine.WakeWord = (*Porcupine)(nil)

// NewPorcupine initialises Porcupine with the keyword at cfg.KeywordPath.
func NewPorcupine(cfg engine.WakeWordConfig) (*Porcupine, error) {
	if cfg.AccessKey == "" {
		return nil, ErrAccessKeyRequired
	}
	if cfg.KeywordPath == "" {
		return nil, errors.New("picovoice: porcupine: keyword path is required")
	}
	warnLibraryPath(PorcupineName, cfg.LibraryPath)

	p := &Porcupine{handle: porcupine.Porcupine{
		AccessKey:     cfg.AccessKey,
		ModelPath:     cfg.ModelPath,
		KeywordPaths:  []string{cfg.KeywordPath},
		Sensitivities: []float32{cfg.SensitivityOrDefault()},
	}}
	if err := p.handle.Init(); err != nil {
		return nil, fmt.Errorf("picovoice: porcupine init: %w", err)
	}
	return p, nil
}

// NewWakeWord is [NewPorcupine] with the [engine.WakeWord] return type used by
// engine registries.
func NewWakeWord(cfg engine.WakeWordConfig) (engine.WakeWord, error) {
	p, err := NewPorcupine(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Porcupine) SampleRate() int  { return porcupine.SampleRate }
func (p *Porcupine) FrameLength() int { return porcupine.FrameLength }
func (p *Porcupine) Version() string  { return porcupine.Version }

// Process returns 0 when the keyword was detected in frame, otherwise
// [engine.NoMatch].
func (p *Porcupine) Process(frame []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleted {
		return engine.NoMatch, ErrDeleted
	}
	idx, err := p.handle.Process(frame)
	if err != nil {
		return engine.NoMatch, fmt.Errorf("picovoice: porcupine process: %w", err)
	}
	return idx, nil
}

// Close releases the native engine. It is safe to call more than once.
func (p *Porcupine) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleted {
		return nil
	}
	p.deleted = true
	if err := p.handle.Delete(); err != nil {
		return fmt.Errorf("picovoice: porcupine delete: %w", err)
	}
	return nil
}

// ─── Rhino ───────────────────────────────────────────────────────────────────

// Rhino is an [engine.Intent] backed by a Rhino context.
type Rhino struct {
	mu      sync.Mutex
	handle  rhino.Rhino
	deleted bool
}

var _ engine.Intent = (*Rhino)(nil)

// NewRhino initialises Rhino with the context at cfg.ContextPath.
func NewRhino(cfg engine.IntentConfig) (*Rhino, error) {
	if cfg.AccessKey == "" {
		return nil, ErrAccessKeyRequired
	}
	if cfg.ContextPath == "" {
		return nil, errors.New("picovoice: rhino: context path is required")
	}
	warnLibraryPath(RhinoName, cfg.LibraryPath)

	r := &Rhino{handle: rhino.Rhino{
		AccessKey:           cfg.AccessKey,
		ModelPath:           cfg.ModelPath,
		ContextPath:         cfg.ContextPath,
		Sensitivity:         cfg.SensitivityOrDefault(),
		EndpointDurationSec: cfg.EndpointDurationOrDefault(),
		RequireEndpoint:     cfg.RequireEndpointOrDefault(),
	}}
	if err := r.handle.Init(); err != nil {
		return nil, fmt.Errorf("picovoice: rhino init: %w", err)
	}
	return r, nil
}

// NewIntent is [NewRhino] with the [engine.Intent] return type used by engine
// registries.
func NewIntent(cfg engine.IntentConfig) (engine.Intent, error) {
	r, err := NewRhino(cfg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rhino) SampleRate() int  { return rhino.SampleRate }
func (r *Rhino) FrameLength() int { return rhino.FrameLength }
func (r *Rhino) Version() string  { return rhino.Version }

// ContextInfo returns the YAML description of the loaded context: its
// intents, expressions and slot values.
func (r *Rhino) ContextInfo() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle.ContextInfo
}

// Process reports whether the current utterance has been finalized.
func (r *Rhino) Process(frame []int16) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return false, ErrDeleted
	}
	done, err := r.handle.Process(frame)
	if err != nil {
		return false, fmt.Errorf("picovoice: rhino process: %w", err)
	}
	return done, nil
}

// Inference returns the result of the finalized utterance. Call it once
// after Process returned true.
func (r *Rhino) Inference() (engine.Inference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return engine.Inference{}, ErrDeleted
	}
	inf, err := r.handle.GetInference()
	if err != nil {
		return engine.Inference{}, fmt.Errorf("picovoice: rhino inference: %w", err)
	}
	out := engine.Inference{IsUnderstood: inf.IsUnderstood}
	if inf.IsUnderstood {
		out.Intent = inf.Intent
		out.Slots = make(map[string]string, len(inf.Slots))
		for k, v := range inf.Slots {
			out.Slots[k] = v
		}
	}
	return out, nil
}

// Close releases the native engine. It is safe to call more than once.
func (r *Rhino) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return nil
	}
	r.deleted = true
	if err := r.handle.Delete(); err != nil {
		return fmt.Errorf("picovoice: rhino delete: %w", err)
	}
	return nil
}
