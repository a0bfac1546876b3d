// Package capture runs live microphone capture into a frame processor.
//
// Capture devices deliver audio in chunks whose size has nothing to do with
// the pipeline's frame length. A [Session] bridges the two: every chunk is
// teed to an optional recorder, appended to a [audio.SampleQueue], and whole
// frames are drained from the front of the queue into the processor until
// the cancellation [Flag] clears.
//
// Two disciplines are supported. Push devices (malgo) call back from their
// own thread; the session drains either inline in that callback or on a
// dedicated consumer goroutine. Pull devices (PortAudio) are read one frame
// at a time from the session's goroutine.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/pkg/audio"
)

// DefaultPollInterval is how often a push session checks the cancellation
// flag while the device runs.
const DefaultPollInterval = 20 * time.Millisecond

// Processor consumes fixed-length frames. *pipeline.Pipeline satisfies it.
type Processor interface {
	Process(frame []int16) error
	FrameLength() int
	SampleRate() int
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder tees every captured sample, in arrival order, to sink. The
// session does not close the sink.
func WithRecorder(sink audio.SampleSink) Option {
	return func(s *Session) { s.recorder = sink }
}

// WithFlag shares an externally owned cancellation flag with the session.
func WithFlag(f *Flag) Option {
	return func(s *Session) {
		if f != nil {
			s.flag = f
		}
	}
}

// WithPollInterval sets how often the flag and context are checked while a
// push device runs. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithAsyncDrain moves frame processing for push devices off the device
// callback onto a dedicated consumer goroutine.
func WithAsyncDrain() Option {
	return func(s *Session) { s.async = true }
}

// WithMetrics records capture metrics to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithBackendName labels capture metrics and logs with the backend name.
func WithBackendName(name string) Option {
	return func(s *Session) { s.backend = name }
}

// Session drives one capture run into a Processor.
type Session struct {
	proc     Processor
	queue    *audio.SampleQueue
	flag     *Flag
	poll     time.Duration
	async    bool
	backend  string
	metrics  *observe.Metrics
	recorder audio.SampleSink

	recMu sync.Mutex

	// procMu serializes drains; Processor implementations are single-writer.
	procMu sync.Mutex
	frame  []int16

	errMu sync.Mutex
	err   error
}

// NewSession returns a Session feeding p.
func NewSession(p Processor, opts ...Option) *Session {
	s := &Session{
		proc:    p,
		queue:   audio.NewSampleQueue(),
		flag:    &Flag{},
		poll:    DefaultPollInterval,
		backend: "unknown",
		metrics: observe.DefaultMetrics(),
		frame:   make([]int16, p.FrameLength()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Flag returns the session's cancellation flag.
func (s *Session) Flag() *Flag { return s.flag }

// Buffered returns the number of samples waiting for a full frame.
func (s *Session) Buffered() int { return s.queue.Len() }

// Write is the producer side of the session: it tees samples to the
// recorder, queues them and, unless async draining is enabled, drains whole
// frames into the processor before returning. Processing errors stop the
// session and are reported by Run.
func (s *Session) Write(samples []int16) {
	s.ingest(samples, !s.async)
}

func (s *Session) ingest(samples []int16, drain bool) {
	if len(samples) == 0 {
		return
	}
	s.metrics.RecordCapture(context.Background(), s.backend, len(samples))

	if s.recorder != nil {
		s.recMu.Lock()
		err := s.recorder.WriteSamples(samples)
		s.recMu.Unlock()
		if err != nil {
			s.fail(fmt.Errorf("capture: record: %w", err))
			return
		}
	}

	s.queue.Append(samples)
	if drain {
		s.drain()
	}
}

// Drain processes whole frames from the front of the queue until fewer than
// one frame remains or the flag clears. It returns the number of frames
// processed and the first processing error.
func (s *Session) Drain() (int, error) {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	n := 0
	for s.flag.Listening() {
		if !s.queue.PopFrame(s.frame) {
			break
		}
		if err := s.proc.Process(s.frame); err != nil {
			return n, err
		}
		n++
	}
	s.metrics.QueueDepth.Record(context.Background(), int64(s.queue.Len()))
	return n, nil
}

func (s *Session) drain() {
	if _, err := s.Drain(); err != nil {
		s.fail(err)
	}
}

// fail records the first error and stops the session.
func (s *Session) fail(err error) {
	s.errMu.Lock()
	first := s.err == nil
	if first {
		s.err = err
	}
	s.errMu.Unlock()
	if first {
		slog.Error("capture: stopping session", "backend", s.backend, "err", err)
	}
	s.flag.Stop()
}

func (s *Session) firstErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) begin(ctx context.Context) (stop func() bool) {
	s.errMu.Lock()
	s.err = nil
	s.errMu.Unlock()
	s.queue.Reset()
	s.flag.Listen()
	s.metrics.ActiveCaptures.Add(ctx, 1)
	slog.Info("capture started",
		"backend", s.backend,
		"sample_rate", s.proc.SampleRate(),
		"frame_length", s.proc.FrameLength(),
		"async_drain", s.async,
	)
	return context.AfterFunc(ctx, s.flag.Stop)
}

// finish abandons the partial frame left in the queue and combines the
// session's first processing error with any device error.
func (s *Session) finish(ctx context.Context, deviceErr error) error {
	s.flag.Stop()
	s.metrics.ActiveCaptures.Add(context.WithoutCancel(ctx), -1)
	if dropped := s.queue.Reset(); dropped > 0 {
		s.metrics.DroppedSamples.Add(context.WithoutCancel(ctx), int64(dropped))
		slog.Debug("capture: dropped trailing samples", "backend", s.backend, "samples", dropped)
	}
	slog.Info("capture stopped", "backend", s.backend)
	return errors.Join(s.firstErr(), deviceErr)
}

// RunPush captures from a push device until the flag clears, ctx is
// cancelled, or processing fails. Cancellation is a normal stop and
// returns nil.
func (s *Session) RunPush(ctx context.Context, dev PushDevice) error {
	stopAfter := s.begin(ctx)
	defer stopAfter()

	var g errgroup.Group
	if s.async {
		g.Go(func() error {
			s.consume()
			return nil
		})
	}

	if err := dev.Start(s.Write); err != nil {
		s.flag.Stop()
		_ = g.Wait()
		return s.finish(ctx, err)
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for s.flag.Listening() {
		select {
		case <-ctx.Done():
			s.flag.Stop()
		case <-ticker.C:
		}
	}

	stopErr := dev.Stop()
	_ = g.Wait()
	return s.finish(ctx, stopErr)
}

// consume is the async drain loop for push devices.
func (s *Session) consume() {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for s.flag.Listening() {
		select {
		case <-s.queue.Notify():
			s.drain()
		case <-ticker.C:
		}
	}
}

// RunPull reads one frame at a time from a pull device until the flag
// clears, ctx is cancelled, or reading or processing fails. Cancellation is
// a normal stop and returns nil.
func (s *Session) RunPull(ctx context.Context, dev PullDevice) error {
	stopAfter := s.begin(ctx)
	defer stopAfter()

	if err := dev.Start(); err != nil {
		return s.finish(ctx, err)
	}

	buf := make([]int16, s.proc.FrameLength())
	var readErr error
	for s.flag.Listening() {
		if err := dev.Read(buf); err != nil {
			// A read interrupted by cancellation is not a failure.
			if s.flag.Listening() {
				readErr = err
			}
			break
		}
		s.ingest(buf, true)
	}

	return s.finish(ctx, errors.Join(readErr, dev.Stop()))
}
