// Package mock provides scripted test doubles for the engine package
// interfaces.
//
// Use WakeWord and Intent to drive a pipeline deterministically: each double
// either consults a per-frame function (DetectFunc / FinalizeFunc) or pops the
// next value from a pre-loaded script. Every call is recorded so that tests
// can assert on the exact frames an engine saw.
//
// Example:
//
//	ww := &mock.WakeWord{Script: []int{-1, -1, 0}}
//	in := &mock.Intent{
//	    Script: []bool{false, true},
//	    Result: engine.Inference{IsUnderstood: true, Intent: "orderBeverage"},
//	}
//	b := &mock.Builder{WakeWord: ww, Intent: in}
package mock

import (
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/hearken/pkg/engine"
)

// Defaults reported by the doubles when the corresponding field is zero.
const (
	DefaultSampleRate  = 16000
	DefaultFrameLength = 512
	DefaultVersion     = "0.0.0-mock"
)

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// ─── WakeWord ────────────────────────────────────────────────────────────────

// WakeWord is a mock implementation of engine.WakeWord.
type WakeWord struct {
	mu sync.Mutex

	// Rate is the reported sample rate. Zero means DefaultSampleRate.
	Rate int

	// Frames is the reported frame length. Zero means DefaultFrameLength.
	Frames int

	// Ver is the reported version. Empty means DefaultVersion.
	Ver string

	// DetectFunc, if set, decides the keyword index for each frame and takes
	// precedence over Script.
	DetectFunc func(frame []int16) int

	// Script holds keyword indices returned by successive Process calls. Once
	// exhausted, Process returns engine.NoMatch.
	Script []int

	// ProcessErr, if non-nil, is returned by every Process call.
	ProcessErr error

	// CloseErr, if non-nil, is returned by the first Close call.
	CloseErr error

	// --- Call records ---

	// ProcessCalls holds a copy of every frame passed to Process, in order.
	ProcessCalls [][]int16

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewWakeWord returns a WakeWord reporting the given sample rate and frame length.
func NewWakeWord(sampleRate, frameLength int) *WakeWord {
	return &WakeWord{Rate: sampleRate, Frames: frameLength}
}

// SampleRate implements engine.Info.
func (w *WakeWord) SampleRate() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return orDefault(w.Rate, DefaultSampleRate)
}

// FrameLength implements engine.Info.
func (w *WakeWord) FrameLength() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return orDefault(w.Frames, DefaultFrameLength)
}

// Version implements engine.Info.
func (w *WakeWord) Version() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return orDefault(w.Ver, DefaultVersion)
}

// SetVersion sets the reported version string.
func (w *WakeWord) SetVersion(v string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Ver = v
}

// Process records the frame and returns the scripted keyword index.
func (w *WakeWord) Process(frame []int16) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ProcessCalls = append(w.ProcessCalls, slices.Clone(frame))
	if w.ProcessErr != nil {
		return engine.NoMatch, w.ProcessErr
	}
	if w.DetectFunc != nil {
		return w.DetectFunc(frame), nil
	}
	if len(w.Script) == 0 {
		return engine.NoMatch, nil
	}
	idx := w.Script[0]
	w.Script = w.Script[1:]
	return idx, nil
}

// Close records the call. CloseErr is only returned the first time.
func (w *WakeWord) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.CloseCallCount++
	if w.CloseCallCount == 1 {
		return w.CloseErr
	}
	return nil
}

// Processed returns the number of frames passed to Process so far.
func (w *WakeWord) Processed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ProcessCalls)
}

// Closed returns the number of Close calls so far.
func (w *WakeWord) Closed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.CloseCallCount
}

var _ engine.WakeWord = (*WakeWord)(nil)

// ─── Intent ──────────────────────────────────────────────────────────────────

// Intent is a mock implementation of engine.Intent.
type Intent struct {
	mu sync.Mutex

	// Rate is the reported sample rate. Zero means DefaultSampleRate.
	Rate int

	// Frames is the reported frame length. Zero means DefaultFrameLength.
	Frames int

	// Ver is the reported version. Empty means DefaultVersion.
	Ver string

	// FinalizeFunc, if set, decides whether each frame finalizes the
	// inference and takes precedence over Script.
	FinalizeFunc func(frame []int16) bool

	// Script holds finalized flags returned by successive Process calls. Once
	// exhausted, Process returns false.
	Script []bool

	// Result is returned by every Inference call.
	Result engine.Inference

	// ProcessErr, if non-nil, is returned by every Process call.
	ProcessErr error

	// InferenceErr, if non-nil, is returned by every Inference call.
	InferenceErr error

	// CloseErr, if non-nil, is returned by the first Close call.
	CloseErr error

	// --- Call records ---

	// ProcessCalls holds a copy of every frame passed to Process, in order.
	ProcessCalls [][]int16

	// InferenceCallCount is the number of times Inference was called.
	InferenceCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewIntent returns an Intent reporting the given sample rate and frame length.
func NewIntent(sampleRate, frameLength int) *Intent {
	return &Intent{Rate: sampleRate, Frames: frameLength}
}

// SampleRate implements engine.Info.
func (in *Intent) SampleRate() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return orDefault(in.Rate, DefaultSampleRate)
}

// FrameLength implements engine.Info.
func (in *Intent) FrameLength() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return orDefault(in.Frames, DefaultFrameLength)
}

// Version implements engine.Info.
func (in *Intent) Version() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return orDefault(in.Ver, DefaultVersion)
}

// SetVersion sets the reported version string.
func (in *Intent) SetVersion(v string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.Ver = v
}

// Process records the frame and returns the scripted finalized flag.
func (in *Intent) Process(frame []int16) (bool, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.ProcessCalls = append(in.ProcessCalls, slices.Clone(frame))
	if in.ProcessErr != nil {
		return false, in.ProcessErr
	}
	if in.FinalizeFunc != nil {
		return in.FinalizeFunc(frame), nil
	}
	if len(in.Script) == 0 {
		return false, nil
	}
	done := in.Script[0]
	in.Script = in.Script[1:]
	return done, nil
}

// Inference records the call and returns a copy of Result.
func (in *Intent) Inference() (engine.Inference, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.InferenceCallCount++
	if in.InferenceErr != nil {
		return engine.Inference{}, in.InferenceErr
	}
	res := in.Result
	res.Slots = maps.Clone(in.Result.Slots)
	return res, nil
}

// Close records the call. CloseErr is only returned the first time.
func (in *Intent) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.CloseCallCount++
	if in.CloseCallCount == 1 {
		return in.CloseErr
	}
	return nil
}

// Processed returns the number of frames passed to Process so far.
func (in *Intent) Processed() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.ProcessCalls)
}

// Inferences returns the number of Inference calls so far.
func (in *Intent) Inferences() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.InferenceCallCount
}

// Closed returns the number of Close calls so far.
func (in *Intent) Closed() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.CloseCallCount
}

var _ engine.Intent = (*Intent)(nil)

// ─── Builder ─────────────────────────────────────────────────────────────────

// Builder hands out pre-built engines and records the configs it was asked
// to build from. It satisfies the pipeline's engine builder contract.
type Builder struct {
	mu sync.Mutex

	// WakeWord is returned by NewWakeWord. If nil, a default WakeWord is created.
	WakeWord engine.WakeWord

	// Intent is returned by NewIntent. If nil, a default Intent is created.
	Intent engine.Intent

	// WakeWordErr, if non-nil, is returned by NewWakeWord.
	WakeWordErr error

	// IntentErr, if non-nil, is returned by NewIntent.
	IntentErr error

	// WakeWordCalls records every config passed to NewWakeWord.
	WakeWordCalls []engine.WakeWordConfig

	// IntentCalls records every config passed to NewIntent.
	IntentCalls []engine.IntentConfig
}

// NewWakeWord records the call and returns WakeWord, WakeWordErr.
func (b *Builder) NewWakeWord(cfg engine.WakeWordConfig) (engine.WakeWord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.WakeWordCalls = append(b.WakeWordCalls, cfg)
	if b.WakeWordErr != nil {
		return nil, b.WakeWordErr
	}
	if b.WakeWord == nil {
		return &WakeWord{}, nil
	}
	return b.WakeWord, nil
}

// NewIntent records the call and returns Intent, IntentErr.
func (b *Builder) NewIntent(cfg engine.IntentConfig) (engine.Intent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.IntentCalls = append(b.IntentCalls, cfg)
	if b.IntentErr != nil {
		return nil, b.IntentErr
	}
	if b.Intent == nil {
		return &Intent{}, nil
	}
	return b.Intent, nil
}
