// Package systemd reports service lifecycle to the service manager over
// the sd_notify protocol.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. Outside systemd (no NOTIFY_SOCKET)
// every call is a silent no-op.
type Notifier struct {
	logger *slog.Logger
	notify func(state string) (bool, error)
}

// NewNotifier creates a notifier bound to the NOTIFY_SOCKET of this process.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

// Ready reports that startup finished.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// RunWatchdog pings the watchdog at half of WATCHDOG_USEC until ctx ends.
// It returns immediately when the unit has no watchdog.
func (n *Notifier) RunWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval <= 0 {
		return
	}
	n.runWatchdog(ctx, interval/2)
}

func (n *Notifier) runWatchdog(ctx context.Context, period time.Duration) {
	n.logger.Debug("Watchdog enabled", "period", period)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
