// Package systemd reports service state to systemd when running as a
// Type=notify unit. Outside systemd every call is a no-op.
package systemd

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/yar-resh/camshoter/internal/debug"
)

// Ready tells systemd that startup finished.
func Ready() { notify(daemon.SdNotifyReady) }

// Stopping tells systemd that shutdown began.
func Stopping() { notify(daemon.SdNotifyStopping) }

// Status publishes a free-form status line shown by systemctl status.
func Status(msg string) { notify("STATUS=" + msg) }

func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		debug.Warn("systemd notify %q: %v", state, err)
		return
	}
	if sent {
		debug.Trace("systemd notified: %s", state)
	}
}
