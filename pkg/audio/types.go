// Package audio holds the PCM plumbing between audio sources and the
// fixed-frame pipeline: frame sources for raw and WAV input, the queue that
// re-chunks live capture callbacks into whole frames, and the WAV recorder
// used to tee the raw capture stream to disk.
//
// All audio in this package is 16-bit signed little-endian PCM. Frames are
// plain []int16 slices whose length equals the consumer's frame length.
package audio

import (
	"context"
	"errors"
	"fmt"
)

// BitDepth is the only sample width supported by hearken.
const BitDepth = 16

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// FrameSource yields fixed-length frames in stream order.
type FrameSource interface {
	// Next returns the next full frame. It returns io.EOF once no further full
	// frame is available; a trailing partial frame is never returned.
	Next() ([]int16, error)
}

// SampleSink receives raw samples in arrival order.
type SampleSink interface {
	WriteSamples(samples []int16) error
	Close() error
}

// ErrInvalidFrameLength is returned when a frame source is created with a
// non-positive frame length.
var ErrInvalidFrameLength = errors.New("audio: frame length must be positive")

// FormatError reports an input whose container format does not match what
// the pipeline consumes. It is returned before any frame is read.
type FormatError struct {
	// Want is the required format.
	Want Format
	// Got is the format found in the input. Zero if the header was unreadable.
	Got Format
	// BitDepth is the sample width found in the input.
	BitDepth int
	// Reason is a short human readable description.
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("audio: invalid input: %s (need %s %d-bit PCM)", e.Reason, e.Want, BitDepth)
	}
	return fmt.Sprintf("audio: invalid input: got %s %d-bit, need %s %d-bit PCM",
		e.Got, e.BitDepth, e.Want, BitDepth)
}

// ForEachFrame reads every frame from src and passes it to fn until the
// source is exhausted, fn fails, or ctx is cancelled. Reaching the end of
// the source is not an error.
func ForEachFrame(ctx context.Context, src FrameSource, fn func(frame []int16) error) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		frame, err := src.Next()
		if err != nil {
			if isEOF(err) {
				return n, nil
			}
			return n, err
		}
		if err := fn(frame); err != nil {
			return n, err
		}
		n++
	}
}
