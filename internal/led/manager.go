package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/mjpegnode/internal/events"
)

// Manager mirrors the capture state on the status LED: solid while the
// camera is on, dark while it is off, blinking after a failed transition
// until the next successful one.
type Manager struct {
	controller  Controller
	eventBus    *events.Bus
	logger      *slog.Logger
	mu          sync.Mutex // serializes hardware writes
	subMu       sync.Mutex
	unsubscribe []func()
}

// NewManager creates a new LED manager that reacts to capture events.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start shows the initial state and begins listening for capture events.
func (m *Manager) Start(initialOn bool) {
	m.show(initialOn)

	m.subMu.Lock()
	m.unsubscribe = append(m.unsubscribe,
		m.eventBus.Subscribe(func(e events.CaptureStateChangedEvent) {
			m.logger.Debug("Capture state changed", "on", e.On)
			m.show(e.On)
		}),
		m.eventBus.Subscribe(func(e events.CaptureFailedEvent) {
			m.logger.Debug("Capture transition failed", "operation", e.Operation)
			m.set(true, PatternBlink)
		}),
	)
	m.subMu.Unlock()
	m.logger.Info("LED manager started")
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	m.subMu.Lock()
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	m.subMu.Unlock()

	m.show(false)
	m.logger.Info("LED manager stopped")
}

func (m *Manager) show(on bool) {
	if on {
		m.set(true, PatternSolid)
		return
	}
	m.set(false, "")
}

func (m *Manager) set(enabled bool, pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.controller.Set(StatusLED, enabled, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "enabled", enabled, "pattern", pattern, "error", err)
	}
}
