package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous; nothing that needs ordering against the caller
// should depend on it.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// A nil bus drops the event, so components can run without one in tests.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case CaptureStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureFailedEvent:
		event.Publish(b.dispatcher, e)
	case BrokerConnectionEvent:
		event.Publish(b.dispatcher, e)
	case StatePublishedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives. Returns an
// unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e CaptureStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(CaptureStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BrokerConnectionEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StatePublishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
