package main

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/mjpegnode/internal/ffmpeg"
)

func validOptions() Options {
	return Options{
		StreamPort:            ":8000",
		CameraDevice:          "/dev/video0",
		CameraWidth:           640,
		CameraHeight:          480,
		CameraFrameRate:       30,
		CameraQuality:         5,
		CameraStopTimeout:     "5s",
		MQTTHost:              "broker.local",
		MQTTPort:              1883,
		MQTTTopic:             "cams/front",
		MQTTRetryInterval:     "5s",
		MQTTKeepalive:         "60s",
		MQTTHeartbeatInterval: "15s",
		StateFile:             "/tmp/state.json",
		LoggingLevel:          "info",
		LoggingFormat:         "text",
	}
}

func TestLoggingConfig(t *testing.T) {
	opts := validOptions()
	opts.LoggingControl = "debug"
	opts.LoggingFFmpeg = "warn"

	cfg := opts.loggingConfig()
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("global config = %+v", cfg)
	}
	if len(cfg.Modules) != 2 || cfg.Modules["control"] != "debug" || cfg.Modules["ffmpeg"] != "warn" {
		t.Errorf("Modules = %v, want only the configured overrides", cfg.Modules)
	}
}

func TestFFmpegParams(t *testing.T) {
	opts := validOptions()
	p, err := opts.ffmpegParams()
	if err != nil {
		t.Fatalf("ffmpegParams() error = %v", err)
	}
	if p.DevicePath != "/dev/video0" || p.Resolution() != "640x480" || p.FPS != 30 || p.Quality != 5 {
		t.Errorf("params = %+v", p)
	}
	if !slices.Equal(p.Options, ffmpeg.GetDefaultOptions()) {
		t.Errorf("Options = %v, want defaults", p.Options)
	}

	opts.CameraCaptureFlags = "low_latency, genpts"
	p, err = opts.ffmpegParams()
	if err != nil {
		t.Fatalf("ffmpegParams() with flags error = %v", err)
	}
	want := []ffmpeg.OptionType{ffmpeg.OptionLowLatency, ffmpeg.OptionGeneratePTS}
	if !slices.Equal(p.Options, want) {
		t.Errorf("Options = %v, want %v", p.Options, want)
	}
}

func TestFFmpegParamsErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		want   string
	}{
		{"quality too low", func(o *Options) { o.CameraQuality = 1 }, "camera.quality"},
		{"quality too high", func(o *Options) { o.CameraQuality = 32 }, "camera.quality"},
		{"unknown option", func(o *Options) { o.CameraCaptureFlags = "turbo" }, "camera.ffmpeg_options"},
		{"conflicting options", func(o *Options) { o.CameraCaptureFlags = "genpts,wallclock_ts" }, "camera.ffmpeg_options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.modify(&opts)
			_, err := opts.ffmpegParams()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ffmpegParams() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestPahoConfig(t *testing.T) {
	opts := validOptions()
	opts.MQTTUsername = "cam"
	opts.MQTTPassword = "c2VjcmV0" // "secret"

	cfg, err := opts.pahoConfig()
	if err != nil {
		t.Fatalf("pahoConfig() error = %v", err)
	}
	if cfg.BrokerURL() != "tcp://broker.local:1883" {
		t.Errorf("BrokerURL() = %q", cfg.BrokerURL())
	}
	if cfg.Username != "cam" || cfg.Password != "secret" {
		t.Errorf("credentials = %q/%q", cfg.Username, cfg.Password)
	}
	if cfg.KeepAlive != time.Minute {
		t.Errorf("KeepAlive = %v, want 1m", cfg.KeepAlive)
	}
	if !strings.HasPrefix(cfg.ClientID, "mjpegnode-") {
		t.Errorf("ClientID = %q, want generated id", cfg.ClientID)
	}

	opts.MQTTClientID = "front-door"
	if cfg, _ := opts.pahoConfig(); cfg.ClientID != "front-door" {
		t.Errorf("ClientID = %q, want configured id", cfg.ClientID)
	}
}

func TestPahoConfigTLS(t *testing.T) {
	opts := validOptions()
	opts.MQTTUseTLS = true
	opts.MQTTPort = 8883

	cfg, err := opts.pahoConfig()
	if err != nil {
		t.Fatalf("pahoConfig() error = %v", err)
	}
	if cfg.TLS == nil || cfg.TLS.ServerName != "broker.local" {
		t.Fatalf("TLS = %+v, want ServerName broker.local", cfg.TLS)
	}
	if cfg.BrokerURL() != "ssl://broker.local:8883" {
		t.Errorf("BrokerURL() = %q", cfg.BrokerURL())
	}
}

func TestPahoConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		want   string
	}{
		{"missing host", func(o *Options) { o.MQTTHost = "" }, "mqtt.host"},
		{"missing topic", func(o *Options) { o.MQTTTopic = "" }, "mqtt.topic"},
		{"slash-only topic", func(o *Options) { o.MQTTTopic = "//" }, "mqtt.topic"},
		{"bad password", func(o *Options) { o.MQTTPassword = "not base64!" }, "mqtt.password"},
		{"bad keepalive", func(o *Options) { o.MQTTKeepalive = "soon" }, "mqtt.keepalive"},
		{"zero keepalive", func(o *Options) { o.MQTTKeepalive = "0s" }, "mqtt.keepalive"},
		{"missing ca file", func(o *Options) {
			o.MQTTUseTLS = true
			o.MQTTRootCA = "/nonexistent/ca.pem"
		}, "mqtt tls"},
		{"cert without key", func(o *Options) {
			o.MQTTUseTLS = true
			o.MQTTCertFile = "/etc/cert.pem"
		}, "mqtt tls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.modify(&opts)
			_, err := opts.pahoConfig()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("pahoConfig() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"5s", 5 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"", 0, true},
		{"five", 0, true},
		{"0s", 0, true},
		{"-1s", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseDuration("x", tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
