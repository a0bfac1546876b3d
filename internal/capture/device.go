package capture

import (
	"errors"
	"fmt"
)

// DefaultDevice selects the system's default capture device.
const DefaultDevice = -1

// Hardware backends live in the malgo and portaudio subpackages so that this
// package builds without cgo.

// PushDevice delivers captured audio by invoking a callback from its own
// thread with chunks of arbitrary size.
type PushDevice interface {
	// Start begins capture. onSamples receives mono 16-bit samples; the slice
	// is only valid for the duration of the call.
	Start(onSamples func(samples []int16)) error
	Stop() error
	Close() error
}

// PullDevice is read synchronously, one buffer at a time.
type PullDevice interface {
	Start() error
	// Read blocks until len(buf) samples have been captured.
	Read(buf []int16) error
	Stop() error
	Close() error
}

// DeviceInfo describes one capture device. Index is the value accepted by
// the backend's Open method.
type DeviceInfo struct {
	Index   int
	Name    string
	Default bool
}

// Backend is an audio subsystem that can enumerate capture devices.
type Backend interface {
	Name() string
	Devices() ([]DeviceInfo, error)
	Close() error
}

// ErrDeviceNotFound is wrapped by the [*DeviceError] returned for device
// indices outside the enumerated range.
var ErrDeviceNotFound = errors.New("capture: no such device")

// DeviceError reports a capture device failure. Index is [DefaultDevice]
// when the default device was selected.
type DeviceError struct {
	Backend string
	Op      string
	Index   int
	Err     error
}

func (e *DeviceError) Error() string {
	dev := "default device"
	if e.Index != DefaultDevice {
		dev = fmt.Sprintf("device %d", e.Index)
	}
	return fmt.Sprintf("capture: %s: %s %s: %v", e.Backend, e.Op, dev, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// CheckIndex validates a device index against the number of devices a
// backend enumerated. [DefaultDevice] is always valid.
func CheckIndex(backend string, index, count int) error {
	if index == DefaultDevice {
		return nil
	}
	if index < 0 || index >= count {
		return &DeviceError{
			Backend: backend,
			Op:      "select",
			Index:   index,
			Err:     fmt.Errorf("%w (%d devices available)", ErrDeviceNotFound, count),
		}
	}
	return nil
}
