// Package camera finds V4L2 capture devices, filters them by name, grabs a
// single frame from each and encodes it as JPEG.
package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevices reports that enumeration found no capture device.
	ErrNoDevices = errors.New("no video devices present")
	// ErrDeviceUnavailable reports a device that could not be opened or
	// did not deliver a frame (busy, unsupported, unplugged mid-call).
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrNameUnresolvable reports a device whose name could not be read.
	ErrNameUnresolvable = errors.New("device name unresolvable")
	// ErrBlacklisted reports a device excluded by the name blacklist.
	ErrBlacklisted = errors.New("device blacklisted")
)

// Device identifies one enumerated device node.
type Device struct {
	Path  string // e.g. /dev/video0
	Index int    // numeric suffix of Path, keys the sysfs lookup
}

func (d Device) String() string { return d.Path }

// PixelFormat is a V4L2 fourcc code.
type PixelFormat uint32

// Supported pixel formats.
const (
	FormatYUYV  PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	FormatRGB24 PixelFormat = 'R' | 'G'<<8 | 'B'<<16 | '3'<<24
	FormatMJPEG PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
)

func (f PixelFormat) String() string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

// Frame is one raw frame as delivered by the device.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Format PixelFormat
}

// Enumerator lists the capture devices present right now.
type Enumerator interface {
	List() ([]Device, error)
}

// Namer resolves a device's human-readable hardware name.
type Namer interface {
	Name(dev Device) (string, error)
}

// Source grabs exactly one frame from a device, releasing it before returning.
type Source interface {
	Capture(dev Device) (*Frame, error)
}

// unavailable wraps err as ErrDeviceUnavailable for dev.
func unavailable(dev Device, step string, err error) error {
	return fmt.Errorf("%s: %s: %w: %v", dev.Path, step, ErrDeviceUnavailable, err)
}
