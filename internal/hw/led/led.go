package led

import (
	"github.com/yar-resh/camshoter/internal/debug"
	"github.com/yar-resh/camshoter/internal/hw/gpio"
)

// Indicator is anything that can show "capture in progress".
type Indicator interface {
	On() error
	Off() error
}

// GPIOLED is an LED wired (through a resistor) between a GPIO pin and ground.
// HIGH lights it.
type GPIOLED struct {
	gpio gpio.Driver
	pin  int
}

// NewGPIOLED configures pin as an output and switches the LED off.
func NewGPIOLED(g gpio.Driver, pin int) (*GPIOLED, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, err
	}
	return &GPIOLED{gpio: g, pin: pin}, nil
}

func (l *GPIOLED) On() error {
	debug.Trace("LED on (pin %d)", l.pin)
	return l.gpio.WritePin(l.pin, gpio.High)
}

func (l *GPIOLED) Off() error {
	debug.Trace("LED off (pin %d)", l.pin)
	return l.gpio.WritePin(l.pin, gpio.Low)
}

// Noop is used when no LED is configured.
type Noop struct{}

func (Noop) On() error  { return nil }
func (Noop) Off() error { return nil }
