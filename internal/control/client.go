package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/mjpegnode/internal/events"
	"github.com/smazurov/mjpegnode/internal/metrics"
)

// ErrNotConnected is returned by PublishState while the broker is unreachable.
var ErrNotConnected = errors.New("not connected to broker")

// Camera is the part of the capture controller the client drives.
type Camera interface {
	Set(on bool) (bool, error)
	IsOn() bool
}

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Publish reasons reported in metrics and events.
const (
	ReasonConnect   = "connect"
	ReasonChange    = "change"
	ReasonHeartbeat = "heartbeat"
)

// Client is the control channel state machine.
type Client struct {
	transport Transport
	camera    Camera
	topics    Topics
	retry     RetryPolicy
	bus       EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	state   atomic.Int32
	lost    chan error
	attempt atomic.Int64

	// sessionMu orders the connect and loss callbacks, which the transport
	// may deliver concurrently and in either order.
	sessionMu   sync.Mutex
	sessionLost bool

	runMu   sync.Mutex
	running bool
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithEventBus publishes connection and state events on bus.
func WithEventBus(bus EventPublisher) Option {
	return func(c *Client) { c.bus = bus }
}

// WithClock sets the time source for state timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a disconnected client and binds it to transport.
func NewClient(transport Transport, camera Camera, topicPrefix string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		camera:    camera,
		topics:    NewTopics(topicPrefix),
		retry:     DefaultRetryPolicy(),
		logger:    logger,
		now:       time.Now,
		lost:      make(chan error, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	transport.Bind(Callbacks{
		OnConnect:    c.handleConnect,
		OnDisconnect: c.handleDisconnect,
		OnMessage:    c.handleMessage,
	})
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Run connects and keeps the connection up until ctx ends: every failed
// attempt and every lost connection is followed by the retry policy's wait
// and a new attempt. Pass the process lifetime context; there is no other
// way to stop the loop. Returns ErrRetriesExhausted only for a bounded policy.
func (c *Client) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.running {
		c.runMu.Unlock()
		return errors.New("control client already running")
	}
	c.running = true
	c.runMu.Unlock()

	defer func() {
		c.transport.Disconnect()
		c.setState(Disconnected, nil)
		c.runMu.Lock()
		c.running = false
		c.runMu.Unlock()
	}()

	if err := c.connectWithRetry(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.lost:
		}

		c.logger.Info("Disconnected from broker, reconnecting", "retry_in", c.retry.Delay(1))
		if !sleep(ctx, c.retry.Delay(1)) {
			return nil
		}
		if err := c.connectWithRetry(ctx); err != nil {
			return err
		}
	}
}

// connectWithRetry attempts to connect until one attempt succeeds. It
// returns nil on success or when ctx ends.
func (c *Client) connectWithRetry(ctx context.Context) error {
	for failures := 0; ; {
		if ctx.Err() != nil {
			return nil
		}

		err := c.connectOnce(ctx)
		if err == nil {
			return nil
		}
		failures++
		if ctx.Err() != nil {
			return nil
		}
		if c.retry.Exhausted(failures) {
			c.logger.Error("Giving up on broker connection", "attempts", failures, "error", err)
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}

		delay := c.retry.Delay(failures)
		c.logger.Info("Connection attempt failed", "attempt", failures, "retry_in", delay, "error", err)
		if !sleep(ctx, delay) {
			return nil
		}
	}
}

func (c *Client) connectOnce(ctx context.Context) error {
	// Drop a stale loss signal from the previous session.
	select {
	case <-c.lost:
	default:
	}

	attempt := c.attempt.Add(1)
	metrics.IncMQTTConnectAttempts()
	c.sessionMu.Lock()
	c.sessionLost = false
	c.setState(Connecting, nil)
	c.sessionMu.Unlock()
	c.logger.Debug("Connecting to broker", "attempt", attempt)

	if err := c.transport.Connect(ctx); err != nil {
		c.sessionMu.Lock()
		c.sessionLost = true
		c.setState(Disconnected, err)
		c.sessionMu.Unlock()
		return err
	}
	return nil
}

// handleConnect runs on the transport's connect callback. A callback for a
// session that was already lost or abandoned is ignored.
func (c *Client) handleConnect() {
	c.sessionMu.Lock()
	if c.sessionLost || c.State() != Connecting {
		c.sessionMu.Unlock()
		c.logger.Debug("Ignoring connect for a dead session", "state", c.State())
		return
	}
	c.setState(Connected, nil)
	c.sessionMu.Unlock()
	c.logger.Info("Connected to broker", "topics", c.topics.Commands())

	if err := c.transport.Subscribe(c.topics.Commands()); err != nil {
		c.logger.Warn("Failed to subscribe to control topics", "error", err)
	}
	// Refresh the retained state right away instead of waiting for the
	// next heartbeat.
	if err := c.PublishState(ReasonConnect); err != nil {
		c.logger.Debug("Initial state publish failed", "error", err)
	}
}

// handleDisconnect runs when the transport loses the connection. A loss
// that arrives before the connect callback still ends the session.
func (c *Client) handleDisconnect(err error) {
	c.sessionMu.Lock()
	if s := c.State(); s != Connected && s != Connecting {
		c.sessionMu.Unlock()
		return
	}
	c.sessionLost = true
	c.setState(Disconnected, err)
	c.sessionMu.Unlock()
	c.logger.Warn("Lost broker connection", "error", err)

	select {
	case c.lost <- err:
	default:
	}
}

// handleMessage dispatches a command by topic.
func (c *Client) handleMessage(msg Message) {
	if c.State() != Connected {
		c.logger.Debug("Dropping message while not connected", "topic", msg.Topic)
		return
	}

	switch msg.Topic {
	case c.topics.On:
		c.logger.Info("Command received", "topic", msg.Topic)
		c.Apply(true)
	case c.topics.Off:
		c.logger.Info("Command received", "topic", msg.Topic)
		c.Apply(false)
	case c.topics.Set:
		on, err := ParseSetCommand(msg.Payload)
		if err != nil {
			c.logger.Warn("Ignoring malformed set command", "payload", string(msg.Payload), "error", err)
			return
		}
		c.logger.Info("Command received", "topic", msg.Topic, "value", on)
		c.Apply(on)
	default:
		c.logger.Debug("Ignoring message on unexpected topic", "topic", msg.Topic)
	}
}

// Apply performs a camera transition and, when the state actually changed,
// publishes the new state. Redundant commands publish nothing.
func (c *Client) Apply(on bool) (bool, error) {
	changed, err := c.camera.Set(on)
	if err != nil {
		c.logger.Warn("Camera transition failed", "on", on, "error", err)
		return false, err
	}
	if !changed {
		c.logger.Debug("Camera already in requested state", "on", on)
		return false, nil
	}
	if err := c.PublishState(ReasonChange); err != nil {
		c.logger.Debug("State publish after change failed", "error", err)
	}
	return true, nil
}

// PublishState publishes the current camera state, retained, on T/state.
// While not connected it returns ErrNotConnected without touching the
// transport.
func (c *Client) PublishState(reason string) error {
	if c.State() != Connected {
		return ErrNotConnected
	}

	msg := NewStateMessage(c.camera.IsOn(), c.now())
	if err := c.transport.Publish(c.topics.State, msg.Encode(), true); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}

	metrics.IncMQTTStatePublish(reason)
	c.publish(events.StatePublishedEvent{
		On:        msg.On,
		Reason:    reason,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	})
	c.logger.Debug("State published", "on", msg.On, "reason", reason)
	return nil
}

func (c *Client) setState(s ConnectionState, err error) {
	old := ConnectionState(c.state.Swap(int32(s)))
	if old == s {
		return
	}
	metrics.SetMQTTConnected(s == Connected)

	ev := events.BrokerConnectionEvent{
		State:     s.String(),
		Attempt:   int(c.attempt.Load()),
		Timestamp: c.now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.publish(ev)
}

func (c *Client) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

// sleep waits for d or until ctx ends; it reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
