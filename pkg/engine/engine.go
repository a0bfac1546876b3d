// Package engine defines the capability interfaces for the two streaming
// audio classifiers that hearken coordinates: a wake-word detector and an
// intent/slot recognizer.
//
// Both engines consume fixed-length frames of 16-bit mono PCM at a fixed
// sample rate. Frame length and sample rate are reported by the engine and
// never change after construction. Engines are stateful: each call to
// Process advances internal state, so a single engine instance must be
// driven by one goroutine at a time.
//
// Implementations are provided by engine-specific packages (e.g.,
// engine/picovoice). This package lives under pkg/ so that third-party
// engines can implement [WakeWord] and [Intent].
package engine

// NoMatch is the keyword index a [WakeWord] reports for frames that did not
// complete any configured keyword.
const NoMatch = -1

// Info is the set of pure queries shared by both engine kinds. Values are
// fixed at construction.
type Info interface {
	// SampleRate is the audio sample rate in Hz the engine expects.
	SampleRate() int

	// FrameLength is the number of samples the engine consumes per Process call.
	FrameLength() int

	// Version is the engine's version string (without a leading "v").
	Version() string
}

// WakeWord scores successive frames and reports which configured keyword, if
// any, just completed.
type WakeWord interface {
	Info

	// Process consumes exactly FrameLength samples and returns the index of
	// the keyword that was detected in this frame, or a negative value when no
	// keyword completed.
	Process(frame []int16) (int, error)

	// Close releases all native resources. Calling Close more than once is
	// safe and returns nil.
	Close() error
}

// Intent accumulates frames following a wake word and reports once the
// spoken command has been finalized.
type Intent interface {
	Info

	// Process consumes exactly FrameLength samples and reports whether the
	// engine has finalized its inference. Once it returns true, Inference must
	// be called exactly once before the next Process call.
	Process(frame []int16) (bool, error)

	// Inference returns the finalized result and resets the engine for the
	// next utterance.
	Inference() (Inference, error)

	// Close releases all native resources. Calling Close more than once is
	// safe and returns nil.
	Close() error
}

// Inference is the structured command extracted by an [Intent] engine.
type Inference struct {
	// IsUnderstood reports whether the utterance matched any intent of the
	// loaded context. When false, Intent and Slots are empty.
	IsUnderstood bool

	// Intent is the name of the matched intent (e.g., "orderBeverage").
	Intent string

	// Slots maps slot names to their spoken values (e.g., "size" → "large").
	Slots map[string]string
}
