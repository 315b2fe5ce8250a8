package control

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeSelfSigned writes a self-signed certificate and key as PEM files.
func writeSelfSigned(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "mjpegnode-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certPath = filepath.Join(dir, "client.crt")
	keyPath = filepath.Join(dir, "client.key")
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certPath, keyPath
}

func TestLoadTLSConfig(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeSelfSigned(t, dir)

	cfg, err := LoadTLSConfig(cert, cert, key)
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v", err)
	}
	if cfg.RootCAs == nil {
		t.Error("RootCAs not set")
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("Certificates = %d, want 1", len(cfg.Certificates))
	}
}

func TestLoadTLSConfigNoFiles(t *testing.T) {
	cfg, err := LoadTLSConfig("", "", "")
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v", err)
	}
	if cfg.RootCAs != nil || len(cfg.Certificates) != 0 {
		t.Error("expected system roots and no client certificate")
	}
}

func TestLoadTLSConfigErrors(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeSelfSigned(t, dir)
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		ca, cert, key string
	}{
		{"missing CA", filepath.Join(dir, "nope.pem"), "", ""},
		{"CA without certificates", garbage, "", ""},
		{"cert without key", "", cert, ""},
		{"key without cert", "", "", key},
		{"mismatched pair", "", garbage, key},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTLSConfig(tt.ca, tt.cert, tt.key); err == nil {
				t.Error("LoadTLSConfig() error = nil")
			}
		})
	}
}

func TestDecodePassword(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"c2VjcmV0", "secret", false},
		{" c2VjcmV0\n", "secret", false},
		{"", "", false},
		{"!!!", "", true},
	}
	for _, tt := range tests {
		got, err := DecodePassword(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("DecodePassword(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestDefaultClientID(t *testing.T) {
	a, b := DefaultClientID(), DefaultClientID()
	if !strings.HasPrefix(a, "mjpegnode-") || len(a) != len("mjpegnode-")+8 {
		t.Errorf("DefaultClientID() = %q", a)
	}
	if a == b {
		t.Error("client ids repeat")
	}
}
