// Package trigger decides when a capture batch runs: once on startup, on a
// debounced button press, or on request from the web API.
package trigger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yar-resh/camshoter/internal/debug"
	"github.com/yar-resh/camshoter/internal/logic/capture"
	"github.com/yar-resh/camshoter/internal/metrics"
)

// Runner runs one capture batch. *capture.Batch satisfies it.
type Runner interface {
	Run() (*capture.Result, error)
}

// Debouncer accepts an event only if at least interval has passed since the
// last accepted one. The first event is always accepted.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	seen     bool
}

func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Allow reports whether an event at now would be accepted. It does not
// change state.
func (d *Debouncer) Allow(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.seen || now.Sub(d.last) >= d.interval
}

// Mark records now as the last accepted event.
func (d *Debouncer) Mark(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = now
	d.seen = true
}

// Last returns the last accepted event time and whether there was one.
func (d *Debouncer) Last() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.seen
}

// Outcome is the fate of one trigger event.
type Outcome int

const (
	Accepted Outcome = iota
	Debounced
	Busy
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return metrics.OutcomeAccepted
	case Debounced:
		return metrics.OutcomeDebounced
	case Busy:
		return metrics.OutcomeBusy
	default:
		return "unknown"
	}
}

// Handler runs the batch for trigger events that pass the debouncer.
// At most one batch runs at a time, whatever the event source.
type Handler struct {
	runner   Runner
	debounce *Debouncer
	mu       sync.Mutex
	busy     atomic.Bool
	closed   bool // guarded by mu
}

// NewHandler creates a handler that ignores events closer than interval to
// the last handled one.
func NewHandler(r Runner, interval time.Duration) *Handler {
	return &Handler{runner: r, debounce: NewDebouncer(interval)}
}

// Fire handles an event at now, waiting for a running batch to finish first.
// It returns false when the event was debounced.
func (h *Handler) Fire(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	ok, _ := h.handle(now)
	return ok
}

// Start handles an event at now without waiting: it returns Busy if a batch
// is running or the handler is closed, and Debounced if the event is too
// close to the last one.
// Otherwise the batch runs in the background and done, when not nil, is
// called with its result once the handler is free again.
func (h *Handler) Start(now time.Time, done func(*capture.Result, error)) Outcome {
	if !h.mu.TryLock() {
		metrics.Trigger(metrics.OutcomeBusy)
		debug.Verbose("trigger at %s: batch in progress", now.Format(time.TimeOnly))
		return Busy
	}
	if h.closed {
		h.mu.Unlock()
		debug.Verbose("trigger at %s: shutting down", now.Format(time.TimeOnly))
		return Busy
	}
	if !h.debounce.Allow(now) {
		h.mu.Unlock()
		h.debounced(now)
		return Debounced
	}

	h.busy.Store(true)
	go func() {
		res, err := h.run(now)
		h.mu.Unlock()
		if done != nil {
			done(res, err)
		}
	}()
	return Accepted
}

// Close waits for a running batch to finish and makes every later event
// a no-op. It is safe to call more than once.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// Busy reports whether a batch is running.
func (h *Handler) Busy() bool { return h.busy.Load() }

// LastHandled returns the time of the last handled event.
func (h *Handler) LastHandled() (time.Time, bool) { return h.debounce.Last() }

// handle runs the batch for now unless debounced. h.mu must be held.
func (h *Handler) handle(now time.Time) (bool, error) {
	if !h.debounce.Allow(now) {
		h.debounced(now)
		return false, nil
	}
	h.busy.Store(true)
	_, err := h.run(now)
	return true, err
}

// run executes the batch and records now as handled. h.mu must be held and
// h.busy set.
func (h *Handler) run(now time.Time) (*capture.Result, error) {
	defer h.busy.Store(false)
	metrics.Trigger(metrics.OutcomeAccepted)
	debug.Live("Trigger at %s: capturing", now.Format(time.TimeOnly))

	res, err := h.runner.Run()
	if err != nil {
		debug.Error(err)
	}
	h.debounce.Mark(now)
	return res, err
}

func (h *Handler) debounced(now time.Time) {
	metrics.Trigger(metrics.OutcomeDebounced)
	last, _ := h.debounce.Last()
	debug.Verbose("trigger at %s ignored: %s since last", now.Format(time.TimeOnly), now.Sub(last).Round(time.Millisecond))
}

// Immediate fires h once, synchronously, and returns the batch error.
func Immediate(h *Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.handle(time.Now())
	return err
}
