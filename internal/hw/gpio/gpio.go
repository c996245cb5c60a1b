package gpio

import (
	"sync"

	"github.com/yar-resh/camshoter/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Pull selects the internal resistor of an input pin.
type Pull int

const (
	PullOff Pull = iota
	PullDown
	PullUp
)

// Edge selects which transitions latch the pin's event-detect flag.
type Edge int

const (
	NoEdge Edge = iota
	RiseEdge
	FallEdge
	AnyEdge
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
//
// Pin numbers are BCM channel numbers; see ResolvePin for board numbering.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	SetPull(pin int, pull Pull) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// Detect arms edge detection on an input pin. NoEdge disarms it.
	Detect(pin int, edge Edge) error
	// EdgeDetected reports and clears the pin's latched edge event.
	EdgeDetected(pin int) (bool, error)
	Close() error
}

// MockDriver is a test implementation that logs actions and lets callers
// inject edge events with Trigger. The zero value is ready to use.
type MockDriver struct {
	mu      sync.Mutex
	levels  map[int]Level
	armed   map[int]Edge
	pending map[int]bool
	closed  bool
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) init() {
	if m.levels == nil {
		m.levels = make(map[int]Level)
		m.armed = make(map[int]Edge)
		m.pending = make(map[int]bool)
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) SetPull(pin int, pull Pull) error {
	debug.GPIO("SetPull", pin, pull)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	return m.levels[pin], nil
}

func (m *MockDriver) Detect(pin int, edge Edge) error {
	debug.GPIO("Detect", pin, edge)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if edge == NoEdge {
		delete(m.armed, pin)
		delete(m.pending, pin)
		return nil
	}
	m.armed[pin] = edge
	return nil
}

func (m *MockDriver) EdgeDetected(pin int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	hit := m.pending[pin]
	m.pending[pin] = false
	return hit, nil
}

// Trigger simulates an edge on pin. It is latched only while detection is armed.
func (m *MockDriver) Trigger(pin int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if _, ok := m.armed[pin]; ok {
		m.pending[pin] = true
	}
}

// Armed reports the edge currently armed on pin.
func (m *MockDriver) Armed(pin int) Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	return m.armed[pin]
}

// Level returns the last level written to pin.
func (m *MockDriver) Level(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	return m.levels[pin]
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
