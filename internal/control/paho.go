package control

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Paho transport defaults.
const (
	DefaultPort           = 1883
	DefaultKeepAlive      = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultQoS            = 1

	publishTimeout    = 5 * time.Second
	subscribeTimeout  = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// PahoConfig holds the broker connection settings.
type PahoConfig struct {
	Host     string
	Port     int
	ClientID string
	Username string
	Password string
	// TLS enables ssl:// when non-nil.
	TLS            *tls.Config
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	QoS            byte
}

// BrokerURL returns the paho broker address.
func (c PahoConfig) BrokerURL() string {
	scheme := "tcp"
	if c.TLS != nil {
		scheme = "ssl"
	}
	port := c.Port
	if port <= 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, port)
}

// PahoTransport implements Transport on the Eclipse Paho client. Paho's own
// reconnect logic is disabled; Client drives retries.
type PahoTransport struct {
	cfg    PahoConfig
	logger *slog.Logger

	mu     sync.Mutex
	cb     Callbacks
	client mqtt.Client
}

// NewPahoTransport creates a transport for cfg.
func NewPahoTransport(cfg PahoConfig, logger *slog.Logger) *PahoTransport {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.QoS > 2 {
		cfg.QoS = DefaultQoS
	}
	t := &PahoTransport{cfg: cfg, logger: logger}
	t.client = mqtt.NewClient(t.clientOptions())
	return t
}

func (t *PahoTransport) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(t.cfg.BrokerURL())
	opts.SetClientID(t.cfg.ClientID)
	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}
	if t.cfg.TLS != nil {
		opts.SetTLSConfig(t.cfg.TLS)
	}
	opts.SetKeepAlive(t.cfg.KeepAlive)
	opts.SetConnectTimeout(t.cfg.ConnectTimeout)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	// Handlers publish state; ordered delivery would deadlock on that.
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		if cb := t.callbacks(); cb.OnConnect != nil {
			cb.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if cb := t.callbacks(); cb.OnDisconnect != nil {
			cb.OnDisconnect(err)
		}
	})
	return opts
}

func (t *PahoTransport) callbacks() Callbacks {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cb
}

// Bind sets the callbacks.
func (t *PahoTransport) Bind(cb Callbacks) {
	t.mu.Lock()
	t.cb = cb
	t.mu.Unlock()
}

// Connect makes one connection attempt.
func (t *PahoTransport) Connect(ctx context.Context) error {
	t.logger.Debug("Connecting", "broker", t.cfg.BrokerURL(), "client_id", t.cfg.ClientID)
	token := t.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", t.cfg.BrokerURL(), err)
	}
	return nil
}

// Subscribe subscribes to topics at the configured QoS.
func (t *PahoTransport) Subscribe(topics []string) error {
	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		filters[topic] = t.cfg.QoS
	}
	token := t.client.SubscribeMultiple(filters, func(_ mqtt.Client, m mqtt.Message) {
		if cb := t.callbacks(); cb.OnMessage != nil {
			cb.OnMessage(Message{Topic: m.Topic(), Payload: m.Payload()})
		}
	})
	return wait(token, subscribeTimeout, "subscribe")
}

// Publish sends payload on topic at the configured QoS.
func (t *PahoTransport) Publish(topic string, payload []byte, retained bool) error {
	return wait(t.client.Publish(topic, t.cfg.QoS, retained, payload), publishTimeout, "publish")
}

// Disconnect closes the connection if one is open.
func (t *PahoTransport) Disconnect() {
	if t.client.IsConnectionOpen() {
		t.client.Disconnect(disconnectQuiesce)
	}
}

func wait(token mqtt.Token, timeout time.Duration, op string) error {
	if !token.WaitTimeout(timeout) {
		return errors.New(op + " timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
