package control

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultHeartbeatInterval is the period between retained state refreshes.
const DefaultHeartbeatInterval = 15 * time.Second

// StatePublisher is implemented by Client.
type StatePublisher interface {
	PublishState(reason string) error
}

// Heartbeat republishes the current state on a fixed period so observers
// that missed a change converge.
type Heartbeat struct {
	publisher StatePublisher
	interval  time.Duration
	logger    *slog.Logger
}

// NewHeartbeat creates a heartbeat. A non-positive interval uses the default.
func NewHeartbeat(publisher StatePublisher, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{publisher: publisher, interval: interval, logger: logger}
}

// Interval returns the tick period.
func (h *Heartbeat) Interval() time.Duration {
	return h.interval
}

// Run publishes once immediately, then every interval until ctx ends.
// Publish failures never stop the loop.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		h.beat()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Heartbeat) beat() {
	err := h.publisher.PublishState(ReasonHeartbeat)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotConnected):
		h.logger.Debug("Skipping heartbeat while disconnected")
	default:
		h.logger.Warn("Heartbeat publish failed", "error", err)
	}
}
