package camera

import (
	"fmt"
	"time"

	"github.com/blackjack/webcam"

	"github.com/yar-resh/camshoter/internal/debug"
)

// preferredFormats lists the pixel formats we can encode, best first.
var preferredFormats = []PixelFormat{FormatYUYV, FormatRGB24, FormatMJPEG}

// WebcamSource captures single frames through V4L2 (blackjack/webcam).
type WebcamSource struct {
	Width   uint32        // requested width, 0 = largest supported
	Height  uint32        // requested height, 0 = largest supported
	Timeout time.Duration // frame wait limit, 0 = wait forever
}

// Capture opens dev, streams until one frame arrives, copies it and
// releases the device. The device is closed on every return path.
func (s *WebcamSource) Capture(dev Device) (*Frame, error) {
	debug.Verbose("Opening %s", dev.Path)
	cam, err := webcam.Open(dev.Path)
	if err != nil {
		return nil, unavailable(dev, "open", err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			debug.Warn("closing %s: %v", dev.Path, err)
		}
	}()

	format, ok := pickFormat(cam.GetSupportedFormats())
	if !ok {
		return nil, unavailable(dev, "format", fmt.Errorf("none of %v supported", preferredFormats))
	}

	w, h := s.Width, s.Height
	if w == 0 || h == 0 {
		w, h = largestSize(cam.GetSupportedFrameSizes(webcam.PixelFormat(format)))
	}
	got, gw, gh, err := cam.SetImageFormat(webcam.PixelFormat(format), w, h)
	if err != nil {
		return nil, unavailable(dev, "set format", err)
	}
	if PixelFormat(got) != format {
		return nil, unavailable(dev, "set format", fmt.Errorf("driver switched %s to %s", format, PixelFormat(got)))
	}
	debug.Verbose("%s: %s %dx%d", dev.Path, format, gw, gh)

	if err := cam.StartStreaming(); err != nil {
		return nil, unavailable(dev, "start streaming", err)
	}
	defer func() {
		if err := cam.StopStreaming(); err != nil {
			debug.Warn("stop streaming %s: %v", dev.Path, err)
		}
	}()

	data, err := s.readOne(cam)
	if err != nil {
		return nil, unavailable(dev, "read frame", err)
	}

	return &Frame{
		Data:   data,
		Width:  int(gw),
		Height: int(gh),
		Format: format,
	}, nil
}

// frameReader is the part of *webcam.Webcam used to pull one frame.
type frameReader interface {
	WaitForFrame(timeout uint32) error
	GetFrame() ([]byte, uint32, error)
	ReleaseFrame(index uint32) error
}

// readOne waits for the next non-empty frame and returns a private copy of it.
func (s *WebcamSource) readOne(cam frameReader) ([]byte, error) {
	step := uint32(5)
	if s.Timeout > 0 {
		step = 1
	}
	start := time.Now()

	for {
		err := cam.WaitForFrame(step)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			if s.Timeout > 0 && time.Since(start) >= s.Timeout {
				return nil, fmt.Errorf("no frame within %v", s.Timeout)
			}
			debug.Trace("waiting for frame (%v elapsed)", time.Since(start).Round(time.Second))
			continue
		default:
			return nil, err
		}

		frame, index, err := cam.GetFrame()
		if err != nil {
			return nil, err
		}
		// frame aliases the driver's mmap buffer until it is released
		out := make([]byte, len(frame))
		copy(out, frame)
		if err := cam.ReleaseFrame(index); err != nil {
			debug.Warn("release frame buffer %d: %v", index, err)
		}
		if len(out) == 0 {
			continue
		}
		return out, nil
	}
}

// pickFormat returns the first preferred format the device supports.
func pickFormat(supported map[webcam.PixelFormat]string) (PixelFormat, bool) {
	for _, f := range preferredFormats {
		if _, ok := supported[webcam.PixelFormat(f)]; ok {
			return f, true
		}
	}
	return 0, false
}

// largestSize picks the frame size with the biggest area.
func largestSize(sizes []webcam.FrameSize) (uint32, uint32) {
	var w, h uint32
	for _, fs := range sizes {
		if fs.MaxWidth*fs.MaxHeight > w*h {
			w, h = fs.MaxWidth, fs.MaxHeight
		}
	}
	if w == 0 || h == 0 {
		return 640, 480
	}
	return w, h
}
