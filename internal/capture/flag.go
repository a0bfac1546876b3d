package capture

import "sync/atomic"

// Flag is the cooperative cancellation signal shared between a capture
// session and whatever decides to end it (usually a signal handler). The
// drain loop polls it lock-free before every frame; a frame already inside
// the pipeline always completes.
type Flag struct {
	listening atomic.Bool
}

// Listen marks the session as active. Called at session start.
func (f *Flag) Listen() { f.listening.Store(true) }

// Stop asks the session to end. Safe to call from any goroutine, any number
// of times.
func (f *Flag) Stop() { f.listening.Store(false) }

// Listening reports whether the session should keep processing frames.
func (f *Flag) Listening() bool { return f.listening.Load() }
