//go:build linux

package hotplug

import (
	"context"
	"errors"
	"testing"
)

func TestMonitorRunCancelled(t *testing.T) {
	m, err := NewMonitor(SubsystemVideo4Linux)
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event, 1)
	if err := m.Run(ctx, events); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if _, ok := <-events; ok {
		t.Error("events not closed after Run")
	}
}

func TestMonitorClose(t *testing.T) {
	m, err := NewMonitor("")
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := m.Close(); err == nil {
		t.Error("second Close() succeeded")
	}
}
