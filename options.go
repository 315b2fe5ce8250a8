package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/mjpegnode/internal/control"
	"github.com/smazurov/mjpegnode/internal/ffmpeg"
	"github.com/smazurov/mjpegnode/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Stream settings
	StreamPort string `help:"MJPEG stream listen address" short:"p" default:":8000" toml:"stream.port" env:"STREAM_PORT"`

	// Camera settings
	CameraDevice         string `help:"V4L2 capture device" default:"/dev/video0" toml:"camera.device" env:"CAMERA_DEVICE"`
	CameraWidth          int    `help:"Capture width" default:"640" toml:"camera.width" env:"CAMERA_WIDTH"`
	CameraHeight         int    `help:"Capture height" default:"480" toml:"camera.height" env:"CAMERA_HEIGHT"`
	CameraFrameRate      int    `help:"Capture frame rate" default:"30" toml:"camera.frame_rate" env:"CAMERA_FRAME_RATE"`
	CameraQuality        int    `help:"JPEG quality, 2 (best) to 31" default:"5" toml:"camera.quality" env:"CAMERA_QUALITY"`
	CameraInputFormat    string `help:"V4L2 input pixel format (mjpeg, yuyv422)" default:"" toml:"camera.input_format" env:"CAMERA_INPUT_FORMAT"`
	CameraTestSource     bool   `help:"Encode a test pattern instead of the device" default:"false" toml:"camera.test_source" env:"CAMERA_TEST_SOURCE"`
	CameraOverlayText    string `help:"Text drawn over the test pattern" default:"" toml:"camera.overlay_text" env:"CAMERA_OVERLAY_TEXT"`
	CameraCommand        string `help:"Full capture command writing MJPEG to stdout; overrides ffmpeg" default:"" toml:"camera.command" env:"CAMERA_COMMAND"`
	CameraCaptureFlags   string `help:"Comma-separated ffmpeg input options (e.g. low_latency,genpts)" default:"" toml:"camera.ffmpeg_options" env:"CAMERA_FFMPEG_OPTIONS"`
	CameraProgressSocket string `help:"Unix socket for ffmpeg progress reports; empty disables" default:"" toml:"camera.progress_socket" env:"CAMERA_PROGRESS_SOCKET"`
	CameraStopTimeout    string `help:"Grace period before the encoder is killed" default:"5s" toml:"camera.stop_timeout" env:"CAMERA_STOP_TIMEOUT"`
	CameraHotplug        bool   `help:"Restart the encoder when the device is plugged back in" default:"true" toml:"camera.hotplug" env:"CAMERA_HOTPLUG"`

	// MQTT settings
	MQTTHost              string `help:"Broker host" default:"" toml:"mqtt.host" env:"MQTT_HOST"`
	MQTTPort              int    `help:"Broker port" default:"1883" toml:"mqtt.port" env:"MQTT_PORT"`
	MQTTTopic             string `help:"Control topic prefix" default:"" toml:"mqtt.topic" env:"MQTT_TOPIC"`
	MQTTClientID          string `help:"Client id; random when empty" default:"" toml:"mqtt.client_id" env:"MQTT_CLIENT_ID"`
	MQTTUsername          string `help:"Broker username" default:"" toml:"mqtt.username" env:"MQTT_USERNAME"`
	MQTTPassword          string `help:"Base64-encoded broker password" default:"" toml:"mqtt.password" env:"MQTT_PASSWORD"`
	MQTTUseTLS            bool   `help:"Connect over TLS" default:"false" toml:"mqtt.tls" env:"MQTT_TLS"`
	MQTTRootCA            string `help:"CA bundle for the broker certificate" default:"" toml:"mqtt.ca_file" env:"MQTT_CA_FILE"`
	MQTTCertFile          string `help:"Client certificate" default:"" toml:"mqtt.cert_file" env:"MQTT_CERT_FILE"`
	MQTTKeyFile           string `help:"Client key" default:"" toml:"mqtt.key_file" env:"MQTT_KEY_FILE"`
	MQTTRetryInterval     string `help:"Pause between connection attempts" default:"5s" toml:"mqtt.retry_interval" env:"MQTT_RETRY_INTERVAL"`
	MQTTKeepalive         string `help:"Keepalive period" default:"60s" toml:"mqtt.keepalive" env:"MQTT_KEEPALIVE"`
	MQTTHeartbeatInterval string `help:"Retained state refresh period" default:"15s" toml:"mqtt.heartbeat_interval" env:"MQTT_HEARTBEAT_INTERVAL"`

	// State settings
	StateFile string `help:"Persisted on/off state" default:"/var/lib/mjpegnode/state.json" toml:"state.file" env:"STATE_FILE"`

	// Admin API settings
	APIPort     string `help:"Admin API listen address; empty disables" default:"" toml:"api.port" env:"API_PORT"`
	APIUsername string `help:"Admin API basic auth username" default:"" toml:"api.username" env:"API_USERNAME"`
	APIPassword string `help:"Admin API basic auth password" default:"" toml:"api.password" env:"API_PASSWORD"`

	// Features settings
	FeaturesLEDControl bool `help:"Mirror the capture state on the board LED" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingFile    string `help:"Append logs to this file" default:"" toml:"logging.file" env:"LOGGING_FILE"`
	LoggingCapture string `help:"Capture logging level" default:"" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingFFmpeg  string `help:"Encoder output logging level" default:"" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingStream  string `help:"Stream server logging level" default:"" toml:"logging.stream" env:"LOGGING_STREAM"`
	LoggingControl string `help:"Control channel logging level" default:"" toml:"logging.control" env:"LOGGING_CONTROL"`
	LoggingAPI     string `help:"Admin API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

// loggingConfig maps the logging options; empty module levels inherit the
// global level.
func (o *Options) loggingConfig() logging.Config {
	modules := make(map[string]string)
	for module, level := range map[string]string{
		"capture": o.LoggingCapture,
		"ffmpeg":  o.LoggingFFmpeg,
		"stream":  o.LoggingStream,
		"control": o.LoggingControl,
		"api":     o.LoggingAPI,
	} {
		if level != "" {
			modules[module] = level
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		File:    o.LoggingFile,
		Modules: modules,
	}
}

// ffmpegParams builds the capture parameters.
func (o *Options) ffmpegParams() (ffmpeg.Params, error) {
	p := ffmpeg.Params{
		DevicePath:     o.CameraDevice,
		InputFormat:    o.CameraInputFormat,
		Width:          o.CameraWidth,
		Height:         o.CameraHeight,
		FPS:            o.CameraFrameRate,
		TestSource:     o.CameraTestSource,
		OverlayText:    o.CameraOverlayText,
		Quality:        o.CameraQuality,
		ProgressSocket: o.CameraProgressSocket,
	}
	if p.Quality < 2 || p.Quality > 31 {
		return p, fmt.Errorf("camera.quality %d out of range 2-31", p.Quality)
	}

	if strings.TrimSpace(o.CameraCaptureFlags) == "" {
		p.Options = ffmpeg.GetDefaultOptions()
		return p, nil
	}
	options, err := ffmpeg.ParseOptions(strings.Split(o.CameraCaptureFlags, ","))
	if err != nil {
		return p, fmt.Errorf("camera.ffmpeg_options: %w", err)
	}
	p.Options = options
	return p, nil
}

// pahoConfig builds the broker connection settings, loading credentials
// and TLS material.
func (o *Options) pahoConfig() (control.PahoConfig, error) {
	if o.MQTTHost == "" {
		return control.PahoConfig{}, errors.New("mqtt.host is required")
	}
	if strings.Trim(o.MQTTTopic, "/") == "" {
		return control.PahoConfig{}, errors.New("mqtt.topic is required")
	}

	password, err := control.DecodePassword(o.MQTTPassword)
	if err != nil {
		return control.PahoConfig{}, fmt.Errorf("mqtt.password: %w", err)
	}
	keepAlive, err := parseDuration("mqtt.keepalive", o.MQTTKeepalive)
	if err != nil {
		return control.PahoConfig{}, err
	}

	cfg := control.PahoConfig{
		Host:      o.MQTTHost,
		Port:      o.MQTTPort,
		ClientID:  o.MQTTClientID,
		Username:  o.MQTTUsername,
		Password:  password,
		KeepAlive: keepAlive,
		QoS:       control.DefaultQoS,
	}
	if cfg.ClientID == "" {
		cfg.ClientID = control.DefaultClientID()
	}
	if o.MQTTUseTLS {
		tlsConfig, err := control.LoadTLSConfig(o.MQTTRootCA, o.MQTTCertFile, o.MQTTKeyFile)
		if err != nil {
			return control.PahoConfig{}, fmt.Errorf("mqtt tls: %w", err)
		}
		tlsConfig.ServerName = o.MQTTHost
		cfg.TLS = tlsConfig
	}
	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
