package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/yar-resh/camshoter/internal/debug"
	"github.com/yar-resh/camshoter/internal/hw/gpio"
)

// Button watches a push button wired between a GPIO input and 3.3V.
// Rising edges are latched by the GPIO controller and polled every Poll.
type Button struct {
	Driver gpio.Driver
	Pin    int // BCM numbering
	Pull   gpio.Pull
	Bounce time.Duration // edges closer than this to the last reported one are dropped
	Poll   time.Duration
}

// Run arms edge detection and calls fire for each debounced press until ctx
// is cancelled. fire runs on the polling goroutine, so presses during a
// batch collapse into at most one latched edge.
func (b *Button) Run(ctx context.Context, fire func(time.Time)) error {
	if err := b.Driver.SetupPin(b.Pin, gpio.Input); err != nil {
		return fmt.Errorf("button pin %d: setup: %w", b.Pin, err)
	}
	if err := b.Driver.SetPull(b.Pin, b.Pull); err != nil {
		return fmt.Errorf("button pin %d: pull: %w", b.Pin, err)
	}
	if err := b.Driver.Detect(b.Pin, gpio.RiseEdge); err != nil {
		return fmt.Errorf("button pin %d: edge detect: %w", b.Pin, err)
	}
	defer func() {
		if err := b.Driver.Detect(b.Pin, gpio.NoEdge); err != nil {
			debug.Warn("button pin %d: disarm: %v", b.Pin, err)
		}
	}()

	poll := b.Poll
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	debug.Info("Waiting for button on GPIO %d", b.Pin)

	var lastEdge time.Time
	for {
		select {
		case <-ctx.Done():
			debug.Verbose("button pin %d: stop", b.Pin)
			return nil
		case <-ticker.C:
		}

		hit, err := b.Driver.EdgeDetected(b.Pin)
		if err != nil {
			debug.Warn("button pin %d: %v", b.Pin, err)
			continue
		}
		if !hit {
			continue
		}

		now := time.Now()
		if !lastEdge.IsZero() && now.Sub(lastEdge) < b.Bounce {
			debug.Trace("button pin %d: bounce dropped", b.Pin)
			continue
		}
		lastEdge = now
		fire(now)
	}
}
