package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/mjpegnode/internal/events"
	"github.com/smazurov/mjpegnode/internal/metrics"
	"github.com/smazurov/mjpegnode/internal/state"
)

// StateStore persists the on/off flag.
type StateStore interface {
	Read() state.State
	Write(state.State) error
}

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Controller starts and stops the pipeline idempotently. Every completed
// transition is persisted and announced; a failed one changes nothing.
//
// Start, Stop and IsOn are serialized by one mutex, so the persisted flag
// always matches the last applied transition.
type Controller struct {
	mu       sync.Mutex
	on       bool
	pipeline Pipeline
	sink     FrameSink
	store    StateStore
	bus      EventPublisher
	logger   *slog.Logger
}

// NewController creates a controller in the off state. bus may be nil.
func NewController(pipeline Pipeline, sink FrameSink, store StateStore, bus EventPublisher, logger *slog.Logger) *Controller {
	return &Controller{
		pipeline: pipeline,
		sink:     sink,
		store:    store,
		bus:      bus,
		logger:   logger,
	}
}

// Restore applies the persisted state at startup. When it says on, the
// pipeline is started right away; when off, nothing is written.
func (c *Controller) Restore() error {
	saved := c.store.Read()
	c.logger.Info("Restoring saved state", "on", saved.On)
	if !saved.On {
		metrics.SetCaptureOn(false)
		return nil
	}
	_, err := c.Start()
	return err
}

// Start begins encoding. It returns false without touching anything when the
// camera is already on. A pipeline error aborts the transition.
func (c *Controller) Start() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.on {
		c.logger.Debug("Start ignored, already on")
		return false, nil
	}

	if err := c.pipeline.StartEncodingTo(c.sink); err != nil {
		c.logger.Error("Failed to start camera", "error", err)
		c.publish(events.CaptureFailedEvent{
			Operation: "start",
			Error:     err.Error(),
			Timestamp: now(),
		})
		return false, fmt.Errorf("start capture: %w", err)
	}

	c.apply(true)
	c.logger.Info("Camera started")
	return true, nil
}

// Stop ends encoding. It returns false without touching anything when the
// camera is already off.
func (c *Controller) Stop() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.on {
		c.logger.Debug("Stop ignored, already off")
		return false, nil
	}

	if err := c.pipeline.StopEncoding(); err != nil {
		c.logger.Error("Failed to stop camera", "error", err)
		c.publish(events.CaptureFailedEvent{
			Operation: "stop",
			Error:     err.Error(),
			Timestamp: now(),
		})
		return false, fmt.Errorf("stop capture: %w", err)
	}

	c.apply(false)
	c.logger.Info("Camera stopped")
	return true, nil
}

// Restart cycles the encoder while the camera is on, for example after the
// device was unplugged and plugged back. It does nothing when the camera is
// off and never changes the persisted state.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.on {
		return nil
	}
	if err := c.pipeline.StopEncoding(); err != nil {
		c.logger.Warn("Failed to stop encoder for restart", "error", err)
	}
	if err := c.pipeline.StartEncodingTo(c.sink); err != nil {
		c.logger.Error("Failed to restart camera", "error", err)
		c.publish(events.CaptureFailedEvent{
			Operation: "restart",
			Error:     err.Error(),
			Timestamp: now(),
		})
		return fmt.Errorf("restart capture: %w", err)
	}
	c.logger.Info("Camera restarted")
	return nil
}

// Set is Start when on is true and Stop otherwise.
func (c *Controller) Set(on bool) (bool, error) {
	if on {
		return c.Start()
	}
	return c.Stop()
}

// IsOn reports the current state without side effects.
func (c *Controller) IsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// apply records a completed transition. Caller holds c.mu.
func (c *Controller) apply(on bool) {
	c.on = on
	// A failed write is logged by the store; memory stays authoritative.
	_ = c.store.Write(state.State{On: on})
	metrics.SetCaptureOn(on)
	c.publish(events.CaptureStateChangedEvent{On: on, Timestamp: now()})
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
