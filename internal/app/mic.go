package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/hearken/internal/capture"
	"github.com/MrWong99/hearken/internal/capture/malgo"
	"github.com/MrWong99/hearken/internal/capture/portaudio"
	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/pkg/audio"
)

// Device is an opened capture device. Exactly one of Push and Pull is set.
type Device struct {
	Backend string
	Push    capture.PushDevice
	Pull    capture.PullDevice

	// Release closes the device and its backend. May be nil.
	Release func() error
}

// DeviceOpener opens the device selected by cfg for mono 16-bit capture at
// sampleRate. Pull devices deliver frameLength samples per read.
type DeviceOpener func(cfg config.CaptureConfig, sampleRate, frameLength int) (*Device, error)

// OpenDevice is the hardware [DeviceOpener].
func OpenDevice(cfg config.CaptureConfig, sampleRate, frameLength int) (*Device, error) {
	switch cfg.Backend {
	case config.BackendPortAudio:
		b, err := portaudio.New()
		if err != nil {
			return nil, err
		}
		dev, err := b.Open(cfg.Device(), sampleRate, frameLength)
		if err != nil {
			return nil, errors.Join(err, b.Close())
		}
		return &Device{
			Backend: b.Name(),
			Pull:    dev,
			Release: func() error { return errors.Join(dev.Close(), b.Close()) },
		}, nil

	case config.BackendMalgo, "":
		b, err := malgo.New()
		if err != nil {
			return nil, err
		}
		dev, err := b.Open(cfg.Device(), sampleRate)
		if err != nil {
			return nil, errors.Join(err, b.Close())
		}
		return &Device{
			Backend: b.Name(),
			Push:    dev,
			Release: func() error { return errors.Join(dev.Close(), b.Close()) },
		}, nil

	default:
		return nil, fmt.Errorf("app: unknown capture backend %q", cfg.Backend)
	}
}

// ListDevices writes the capture devices of backend to w. It needs no
// engines or config.
func ListDevices(backend config.Backend, w io.Writer) error {
	var b capture.Backend
	var err error
	switch backend {
	case config.BackendPortAudio:
		b, err = portaudio.New()
	case config.BackendMalgo, "":
		b, err = malgo.New()
	default:
		return fmt.Errorf("app: unknown capture backend %q", backend)
	}
	if err != nil {
		return err
	}
	devices, err := b.Devices()
	if err != nil {
		return errors.Join(err, b.Close())
	}
	PrintDevices(w, b.Name(), devices)
	return b.Close()
}

// RunMic captures from the configured device until ctx is cancelled or
// processing fails. With capture.output_path set, the raw captured stream is
// recorded as a WAV file.
func (a *App) RunMic(ctx context.Context) error {
	c := a.cfg.Capture
	ctx, span := observe.StartRun(ctx, "mic",
		attribute.String("capture.backend", string(c.Backend)),
		attribute.Int("capture.device_index", c.Device()),
		attribute.String("capture.drain", string(c.Drain)),
	)
	defer span.End()
	log := observe.Logger(ctx)

	a.pipe.Reset()
	a.captureGate.Fail(errors.New("opening capture device"))

	dev, err := a.openDev(c, a.pipe.SampleRate(), a.pipe.FrameLength())
	if err != nil {
		return observe.Fail(span, fmt.Errorf("app: open capture device: %w", err))
	}

	opts := []capture.Option{
		capture.WithMetrics(a.metrics),
		capture.WithPollInterval(c.PollInterval),
		capture.WithBackendName(dev.Backend),
	}
	if c.Drain == config.DrainAsync {
		opts = append(opts, capture.WithAsyncDrain())
	}

	var rec *audio.WAVRecorder
	if c.OutputPath != "" {
		f, err := a.fs.Create(c.OutputPath)
		if err != nil {
			return observe.Fail(span, errors.Join(fmt.Errorf("app: create recording: %w", err), release(dev)))
		}
		rec = audio.NewWAVRecorder(f, a.pipe.SampleRate())
		opts = append(opts, capture.WithRecorder(rec))
	}

	sess := capture.NewSession(a.pipe, opts...)

	a.captureGate.Ready()
	a.outMu.Lock()
	fmt.Fprintln(a.out, "Listening... press Ctrl+C to stop.")
	a.outMu.Unlock()

	var runErr error
	switch {
	case dev.Push != nil:
		runErr = sess.RunPush(ctx, dev.Push)
	case dev.Pull != nil:
		runErr = sess.RunPull(ctx, dev.Pull)
	default:
		runErr = errors.New("app: capture device has neither a push nor a pull interface")
	}
	a.captureGate.Fail(errors.New("capture stopped"))

	errs := []error{runErr}
	if rec != nil {
		errs = append(errs, rec.Close())
		log.Info("recording written", "path", c.OutputPath, "samples", rec.Samples())
	}
	errs = append(errs, release(dev))

	if err := errors.Join(errs...); err != nil {
		return observe.Fail(span, err)
	}
	return nil
}

func release(dev *Device) error {
	if dev.Release == nil {
		return nil
	}
	return dev.Release()
}
