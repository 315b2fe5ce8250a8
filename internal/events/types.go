package events

// Event type constants for kelindar/event.
const (
	TypeCaptureStateChanged uint32 = iota + 1
	TypeCaptureFailed
	TypeBrokerConnection
	TypeStatePublished
	TypeDeviceChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CaptureStateChangedEvent is emitted after the camera actually started or
// stopped encoding.
type CaptureStateChangedEvent struct {
	On        bool   `json:"on" doc:"Whether the camera is now encoding"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStateChangedEvent.
func (e CaptureStateChangedEvent) Type() uint32 { return TypeCaptureStateChanged }

// CaptureFailedEvent is emitted when the pipeline refused a start or stop.
type CaptureFailedEvent struct {
	Operation string `json:"operation" example:"start" doc:"start or stop"`
	Error     string `json:"error" doc:"Pipeline error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureFailedEvent.
func (e CaptureFailedEvent) Type() uint32 { return TypeCaptureFailed }

// BrokerConnectionEvent reports a control channel state transition.
type BrokerConnectionEvent struct {
	State     string `json:"state" example:"connected" doc:"disconnected, connecting or connected"`
	Attempt   int    `json:"attempt" doc:"Connection attempt counter at the time of the transition"`
	Error     string `json:"error,omitempty" doc:"Last connection error, if any"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BrokerConnectionEvent.
func (e BrokerConnectionEvent) Type() uint32 { return TypeBrokerConnection }

// StatePublishedEvent is emitted each time a state message reached the broker.
type StatePublishedEvent struct {
	On        bool   `json:"on"`
	Reason    string `json:"reason" example:"heartbeat" doc:"connect, change or heartbeat"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z"`
}

// Type returns the event type identifier for StatePublishedEvent.
func (e StatePublishedEvent) Type() uint32 { return TypeStatePublished }

// DeviceChangedEvent reports the capture device appearing or disappearing.
type DeviceChangedEvent struct {
	Device    string `json:"device" example:"/dev/video0"`
	Present   bool   `json:"present" doc:"Whether the device node exists after the change"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z"`
}

// Type returns the event type identifier for DeviceChangedEvent.
func (e DeviceChangedEvent) Type() uint32 { return TypeDeviceChanged }
