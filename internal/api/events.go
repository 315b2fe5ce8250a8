package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/mjpegnode/internal/events"
)

// sseBuffer bounds events queued for one slow SSE client; overflow is dropped.
const sseBuffer = 16

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Capture transitions and failures, broker connection changes, state publishes and device hotplug",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"capture-state":   events.CaptureStateChangedEvent{},
		"capture-failed":  events.CaptureFailedEvent{},
		"broker":          events.BrokerConnectionEvent{},
		"state-published": events.StatePublishedEvent{},
		"device":          events.DeviceChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, sseBuffer)
		forward := func(ev any) {
			select {
			case eventCh <- ev:
			default:
			}
		}

		bus := s.options.EventBus
		unsubscribers := []func(){
			bus.Subscribe(func(e events.CaptureStateChangedEvent) { forward(e) }),
			bus.Subscribe(func(e events.CaptureFailedEvent) { forward(e) }),
			bus.Subscribe(func(e events.BrokerConnectionEvent) { forward(e) }),
			bus.Subscribe(func(e events.StatePublishedEvent) { forward(e) }),
			bus.Subscribe(func(e events.DeviceChangedEvent) { forward(e) }),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current state first so a new client does not wait for a transition.
		if err := send.Data(events.CaptureStateChangedEvent{
			On:        s.options.Camera.IsOn(),
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
