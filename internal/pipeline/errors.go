package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them; the concrete types below
// carry the details.
var (
	// ErrEngineInit is wrapped by every [*EngineInitError].
	ErrEngineInit = errors.New("pipeline: engine initialization failed")

	// ErrIncompatibleEngines is wrapped by every [*IncompatibleEnginesError].
	ErrIncompatibleEngines = errors.New("pipeline: engines disagree on sample rate or frame length")

	// ErrFrameLength is wrapped by the [*ProcessError] returned for frames
	// whose length differs from [Pipeline.FrameLength].
	ErrFrameLength = errors.New("pipeline: frame length mismatch")

	// ErrClosed is returned by Process after Close.
	ErrClosed = errors.New("pipeline: closed")
)

// Engine names one of the two engines in a pipeline. The values double as
// metric and log attribute values.
type Engine string

const (
	EngineWakeWord Engine = "wake_word"
	EngineIntent   Engine = "intent"
)

// EngineInitError reports that an engine rejected its configuration or could
// not be loaded.
type EngineInitError struct {
	Engine Engine
	Err    error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("pipeline: init %s engine: %v", e.Engine, e.Err)
}

// Unwrap exposes both [ErrEngineInit] and the underlying engine error.
func (e *EngineInitError) Unwrap() []error {
	return []error{ErrEngineInit, e.Err}
}

// IncompatibleEnginesError reports that the two engines cannot share a
// frame stream.
type IncompatibleEnginesError struct {
	WakeWordSampleRate  int
	WakeWordFrameLength int
	IntentSampleRate    int
	IntentFrameLength   int
}

func (e *IncompatibleEnginesError) Error() string {
	return fmt.Sprintf("%v: wake word %d Hz/%d samples, intent %d Hz/%d samples",
		ErrIncompatibleEngines,
		e.WakeWordSampleRate, e.WakeWordFrameLength,
		e.IntentSampleRate, e.IntentFrameLength)
}

func (e *IncompatibleEnginesError) Unwrap() error { return ErrIncompatibleEngines }

// ProcessError reports a failure while processing one frame. Engine is empty
// when the frame was rejected before reaching an engine. The pipeline's mode
// is unchanged when a ProcessError is returned.
type ProcessError struct {
	Engine Engine
	Mode   Mode
	Err    error
}

func (e *ProcessError) Error() string {
	if e.Engine == "" {
		return fmt.Sprintf("pipeline: process (%s): %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("pipeline: process (%s): %s engine: %v", e.Mode, e.Engine, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }
