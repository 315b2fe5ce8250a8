package control

import "context"

// Message is one inbound publish.
type Message struct {
	Topic   string
	Payload []byte
}

// Callbacks are invoked by a Transport. They may be called from any
// goroutine.
type Callbacks struct {
	// OnConnect runs after a connection was established.
	OnConnect func()
	// OnDisconnect runs when an established connection is lost. It is not
	// called for failed attempts or for Disconnect.
	OnDisconnect func(err error)
	// OnMessage runs for each message on a subscribed topic.
	OnMessage func(Message)
}

// Transport is a broker connection. Connect makes a single attempt; retrying
// is up to the caller.
type Transport interface {
	Bind(cb Callbacks)
	Connect(ctx context.Context) error
	Subscribe(topics []string) error
	Publish(topic string, payload []byte, retained bool) error
	Disconnect()
}
