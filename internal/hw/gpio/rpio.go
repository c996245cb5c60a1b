package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/yar-resh/camshoter/internal/debug"
)

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	pins     map[int]rpio.Pin
	detected map[int]bool // pins with edge detection armed
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:     make(map[int]rpio.Pin),
		detected: make(map[int]bool),
	}, nil
}

func (r *RPiDriver) pin(pin int, mode PinMode) (rpio.Pin, error) {
	if p, ok := r.pins[pin]; ok {
		return p, nil
	}
	if err := r.SetupPin(pin, mode); err != nil {
		return 0, err
	}
	return r.pins[pin], nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) SetPull(pin int, pull Pull) error {
	debug.GPIO("SetPull", pin, pull)

	p, err := r.pin(pin, Input)
	if err != nil {
		return err
	}

	switch pull {
	case PullOff:
		p.PullOff()
	case PullDown:
		p.PullDown()
	case PullUp:
		p.PullUp()
	default:
		return fmt.Errorf("unknown pull: %d", pull)
	}
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, err := r.pin(pin, Output)
	if err != nil {
		return err
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	p, err := r.pin(pin, Input)
	if err != nil {
		return Low, err
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) Detect(pin int, edge Edge) error {
	debug.GPIO("Detect", pin, edge)

	p, err := r.pin(pin, Input)
	if err != nil {
		return err
	}

	var e rpio.Edge
	switch edge {
	case NoEdge:
		e = rpio.NoEdge
	case RiseEdge:
		e = rpio.RiseEdge
	case FallEdge:
		e = rpio.FallEdge
	case AnyEdge:
		e = rpio.AnyEdge
	default:
		return fmt.Errorf("unknown edge: %d", edge)
	}

	p.Detect(e)
	if edge == NoEdge {
		delete(r.detected, pin)
	} else {
		r.detected[pin] = true
	}
	return nil
}

func (r *RPiDriver) EdgeDetected(pin int) (bool, error) {
	p, ok := r.pins[pin]
	if !ok || !r.detected[pin] {
		return false, fmt.Errorf("edge detection not armed on pin %d", pin)
	}
	return p.EdgeDetected(), nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	for pin := range r.detected {
		debug.Verbose("Disarming edge detection on pin %d", pin)
		r.pins[pin].Detect(rpio.NoEdge)
	}

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
