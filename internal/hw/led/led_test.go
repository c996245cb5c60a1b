package led

import (
	"errors"
	"testing"

	"github.com/yar-resh/camshoter/internal/hw/gpio"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	gpio.MockDriver
	calls    []gpioCall
	failPins map[int]bool
}

type gpioCall struct {
	op    string
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	if d.failPins[pin] {
		return errors.New("write failed")
	}
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	return nil
}

func TestGPIOLED_InitializedOff(t *testing.T) {
	drv := &recordingDriver{}
	if _, err := NewGPIOLED(drv, 27); err != nil {
		t.Fatalf("NewGPIOLED: %v", err)
	}

	want := []gpioCall{
		{op: "setup", pin: 27},
		{op: "write", pin: 27, level: gpio.Low},
	}
	if len(drv.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", drv.calls, want)
	}
	for i := range want {
		if drv.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, drv.calls[i], want[i])
		}
	}
}

func TestGPIOLED_OnOff(t *testing.T) {
	drv := &recordingDriver{}
	l, _ := NewGPIOLED(drv, 27)
	drv.calls = nil

	if err := l.On(); err != nil {
		t.Fatalf("On: %v", err)
	}
	if err := l.Off(); err != nil {
		t.Fatalf("Off: %v", err)
	}

	if len(drv.calls) != 2 || drv.calls[0].level != gpio.High || drv.calls[1].level != gpio.Low {
		t.Errorf("calls = %+v, want High then Low on pin 27", drv.calls)
	}
}

func TestGPIOLED_WriteError(t *testing.T) {
	drv := &recordingDriver{failPins: map[int]bool{27: true}}
	if _, err := NewGPIOLED(drv, 27); err == nil {
		t.Error("expected error when the pin cannot be driven")
	}
}

func TestIndicatorImplementations(t *testing.T) {
	var _ Indicator = &GPIOLED{}
	var _ Indicator = Noop{}
}
