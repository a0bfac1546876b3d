// Package malgo is the push capture backend built on miniaudio. Devices call
// back from a miniaudio-owned thread with chunks of arbitrary size.
package malgo

import (
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	ma "github.com/gen2brain/malgo"

	"github.com/MrWong99/hearken/internal/capture"
	"github.com/MrWong99/hearken/pkg/audio"
)

// Name is the backend name reported by [Backend.Name].
const Name = "malgo"

// Backend owns a miniaudio context.
type Backend struct {
	ctx  *ma.AllocatedContext
	once sync.Once
}

// platformBackends picks the miniaudio backend per OS. Nil lets miniaudio
// probe in its default order.
func platformBackends() []ma.Backend {
	switch runtime.GOOS {
	case "windows":
		return []ma.Backend{ma.BackendWinmm}
	case "linux":
		return []ma.Backend{ma.BackendAlsa}
	default:
		return nil
	}
}

// New initialises a miniaudio context.
func New() (*Backend, error) {
	ctx, err := ma.InitContext(platformBackends(), ma.ContextConfig{}, func(msg string) {
		slog.Debug("malgo", "msg", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, deviceErr("init", capture.DefaultDevice, err)
	}
	return &Backend{ctx: ctx}, nil
}

func deviceErr(op string, index int, err error) error {
	return &capture.DeviceError{Backend: Name, Op: op, Index: index, Err: err}
}

// Name implements [capture.Backend].
func (b *Backend) Name() string { return Name }

func (b *Backend) captureDevices() ([]ma.DeviceInfo, error) {
	infos, err := b.ctx.Devices(ma.Capture)
	if err != nil {
		return nil, deviceErr("enumerate", capture.DefaultDevice, err)
	}
	return infos, nil
}

// Devices implements [capture.Backend].
func (b *Backend) Devices() ([]capture.DeviceInfo, error) {
	infos, err := b.captureDevices()
	if err != nil {
		return nil, err
	}
	return deviceInfos(infos), nil
}

// deviceInfos converts miniaudio's listing; the position in infos is the
// index accepted by [Backend.Open].
func deviceInfos(infos []ma.DeviceInfo) []capture.DeviceInfo {
	out := make([]capture.DeviceInfo, len(infos))
	for i, info := range infos {
		out[i] = capture.DeviceInfo{
			Index:   i,
			Name:    strings.ReplaceAll(info.Name(), "\x00", ""),
			Default: info.IsDefault != 0,
		}
	}
	return out
}

// Open prepares a mono 16-bit capture device at sampleRate. index selects a
// device from [Backend.Devices] or [capture.DefaultDevice].
func (b *Backend) Open(index, sampleRate int) (*Device, error) {
	cfg := ma.DefaultDeviceConfig(ma.Capture)
	cfg.Capture.Format = ma.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	if index != capture.DefaultDevice {
		infos, err := b.captureDevices()
		if err != nil {
			return nil, err
		}
		if err := capture.CheckIndex(Name, index, len(infos)); err != nil {
			return nil, err
		}
		cfg.Capture.DeviceID = infos[index].ID.Pointer()
	}
	return &Device{backend: b, cfg: cfg, index: index}, nil
}

// Close releases the miniaudio context. Devices must be closed first.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() {
		err = b.ctx.Uninit()
		b.ctx.Free()
	})
	return err
}

// Device is a [capture.PushDevice] backed by a miniaudio capture device.
type Device struct {
	backend *Backend
	cfg     ma.DeviceConfig
	index   int
	dev     *ma.Device
	dec     audio.ByteDecoder
}

// Start implements [capture.PushDevice].
func (d *Device) Start(onSamples func([]int16)) error {
	if d.dev != nil {
		return deviceErr("start", d.index, errors.New("already started"))
	}
	callbacks := ma.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onSamples(d.dec.Decode(input))
		},
	}
	dev, err := ma.InitDevice(d.backend.ctx.Context, d.cfg, callbacks)
	if err != nil {
		return deviceErr("open", d.index, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return deviceErr("start", d.index, err)
	}
	d.dev = dev
	return nil
}

// Stop implements [capture.PushDevice]. It returns once no further callback
// runs.
func (d *Device) Stop() error {
	if d.dev == nil {
		return nil
	}
	if err := d.dev.Stop(); err != nil {
		return deviceErr("stop", d.index, err)
	}
	return nil
}

// Close implements [capture.PushDevice].
func (d *Device) Close() error {
	if d.dev != nil {
		d.dev.Uninit()
		d.dev = nil
	}
	return nil
}

var (
	_ capture.Backend    = (*Backend)(nil)
	_ capture.PushDevice = (*Device)(nil)
)
