package control

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// LoadTLSConfig builds a client TLS config. ca adds a root pool; cert and
// key, when both set, add a client certificate. Empty paths are skipped.
func LoadTLSConfig(ca, cert, key string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if ca != "" {
		pem, err := os.ReadFile(ca)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", ca)
		}
		cfg.RootCAs = pool
	}

	switch {
	case cert != "" && key != "":
		pair, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	case cert != "" || key != "":
		return nil, errors.New("client certificate and key must be set together")
	}

	return cfg, nil
}

// DecodePassword decodes a base64 broker password. An empty string stays
// empty.
func DecodePassword(encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode password: %w", err)
	}
	return string(raw), nil
}

// DefaultClientID returns a random client id so two nodes never share a
// session.
func DefaultClientID() string {
	return "mjpegnode-" + uuid.NewString()[:8]
}
