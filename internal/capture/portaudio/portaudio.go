// Package portaudio is the pull capture backend built on PortAudio's
// blocking read API.
package portaudio

import (
	"errors"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/hearken/internal/capture"
)

// Name is the backend name reported by [Backend.Name].
const Name = "portaudio"

// Backend holds one PortAudio initialisation.
type Backend struct {
	once sync.Once
}

// New initialises PortAudio. Each successful call must be paired with Close.
func New() (*Backend, error) {
	if err := pa.Initialize(); err != nil {
		return nil, deviceErr("init", capture.DefaultDevice, err)
	}
	return &Backend{}, nil
}

func deviceErr(op string, index int, err error) error {
	return &capture.DeviceError{Backend: Name, Op: op, Index: index, Err: err}
}

// Name implements [capture.Backend].
func (b *Backend) Name() string { return Name }

// inputDevices lists devices with at least one input channel. Indices
// reported by Devices refer to this list.
func (b *Backend) inputDevices() ([]*pa.DeviceInfo, error) {
	all, err := pa.Devices()
	if err != nil {
		return nil, deviceErr("enumerate", capture.DefaultDevice, err)
	}
	var in []*pa.DeviceInfo
	for _, d := range all {
		if d.MaxInputChannels > 0 {
			in = append(in, d)
		}
	}
	return in, nil
}

// Devices implements [capture.Backend].
func (b *Backend) Devices() ([]capture.DeviceInfo, error) {
	devs, err := b.inputDevices()
	if err != nil {
		return nil, err
	}
	// A host without a default input still gets a listing.
	def, _ := pa.DefaultInputDevice()
	return deviceInfos(devs, def), nil
}

// deviceInfos converts PortAudio's listing. PortAudio hands out one cached
// *DeviceInfo per device, so the default is identified by pointer; names are
// not unique.
func deviceInfos(devs []*pa.DeviceInfo, def *pa.DeviceInfo) []capture.DeviceInfo {
	out := make([]capture.DeviceInfo, len(devs))
	for i, d := range devs {
		out[i] = capture.DeviceInfo{Index: i, Name: d.Name, Default: def != nil && d == def}
	}
	return out
}

// Open prepares a mono 16-bit input stream at sampleRate that delivers
// frameLength samples per read.
func (b *Backend) Open(index, sampleRate, frameLength int) (*Device, error) {
	var dev *pa.DeviceInfo
	if index == capture.DefaultDevice {
		def, err := pa.DefaultInputDevice()
		if err != nil {
			return nil, deviceErr("select", index, err)
		}
		dev = def
	} else {
		devs, err := b.inputDevices()
		if err != nil {
			return nil, err
		}
		if err := capture.CheckIndex(Name, index, len(devs)); err != nil {
			return nil, err
		}
		dev = devs[index]
	}

	params := pa.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.Output.Channels = 0
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = frameLength

	buf := make([]int16, frameLength)
	stream, err := pa.OpenStream(params, buf)
	if err != nil {
		return nil, deviceErr("open", index, err)
	}
	return &Device{stream: stream, buf: buf, index: index}, nil
}

// Close terminates PortAudio.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() { err = pa.Terminate() })
	return err
}

// Device is a [capture.PullDevice] backed by a blocking PortAudio stream.
type Device struct {
	stream *pa.Stream
	buf    []int16
	index  int
}

// Start implements [capture.PullDevice].
func (d *Device) Start() error {
	if err := d.stream.Start(); err != nil {
		return deviceErr("start", d.index, err)
	}
	return nil
}

// Read implements [capture.PullDevice]. len(buf) must equal the frame length
// the device was opened with. Input overflows are logged and the (partially
// stale) buffer is still returned.
func (d *Device) Read(buf []int16) error {
	if len(buf) != len(d.buf) {
		return deviceErr("read", d.index, errors.New("buffer length does not match stream frame length"))
	}
	if err := d.stream.Read(); err != nil {
		if !errors.Is(err, pa.InputOverflowed) {
			return deviceErr("read", d.index, err)
		}
		slog.Warn("capture: portaudio input overflowed", "device", d.index)
	}
	copy(buf, d.buf)
	return nil
}

// Stop implements [capture.PullDevice].
func (d *Device) Stop() error {
	if err := d.stream.Stop(); err != nil {
		return deviceErr("stop", d.index, err)
	}
	return nil
}

// Close implements [capture.PullDevice].
func (d *Device) Close() error {
	if err := d.stream.Close(); err != nil {
		return deviceErr("close", d.index, err)
	}
	return nil
}

var (
	_ capture.Backend    = (*Backend)(nil)
	_ capture.PullDevice = (*Device)(nil)
)
