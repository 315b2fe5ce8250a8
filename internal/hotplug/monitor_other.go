//go:build !linux

package hotplug

import (
	"context"
	"errors"
)

// Monitor is unavailable outside Linux.
type Monitor struct{}

// NewMonitor always fails outside Linux.
func NewMonitor(string) (*Monitor, error) {
	return nil, errors.New("hotplug monitoring requires linux")
}

// Close does nothing.
func (m *Monitor) Close() error { return nil }

// Run closes events and returns immediately.
func (m *Monitor) Run(_ context.Context, events chan<- Event) error {
	close(events)
	return errors.New("hotplug monitoring requires linux")
}
