package control

import (
	"crypto/tls"
	"testing"
)

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  PahoConfig
		want string
	}{
		{"plain", PahoConfig{Host: "broker.local", Port: 1883}, "tcp://broker.local:1883"},
		{"default port", PahoConfig{Host: "broker.local"}, "tcp://broker.local:1883"},
		{"tls", PahoConfig{Host: "mqtt.example.com", Port: 8883, TLS: &tls.Config{}}, "ssl://mqtt.example.com:8883"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BrokerURL(); got != tt.want {
				t.Errorf("BrokerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewPahoTransportDefaults(t *testing.T) {
	tr := NewPahoTransport(PahoConfig{Host: "localhost", QoS: 9}, testLogger())
	if tr.cfg.KeepAlive != DefaultKeepAlive {
		t.Errorf("KeepAlive = %v, want %v", tr.cfg.KeepAlive, DefaultKeepAlive)
	}
	if tr.cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", tr.cfg.ConnectTimeout, DefaultConnectTimeout)
	}
	if tr.cfg.QoS != DefaultQoS {
		t.Errorf("QoS = %d, want %d", tr.cfg.QoS, DefaultQoS)
	}
	// Never dialled: Disconnect must be a no-op.
	tr.Disconnect()
}
