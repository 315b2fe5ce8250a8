package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/mjpegnode/internal/api"
	"github.com/smazurov/mjpegnode/internal/capture"
	"github.com/smazurov/mjpegnode/internal/config"
	"github.com/smazurov/mjpegnode/internal/control"
	"github.com/smazurov/mjpegnode/internal/events"
	"github.com/smazurov/mjpegnode/internal/frames"
	"github.com/smazurov/mjpegnode/internal/hotplug"
	"github.com/smazurov/mjpegnode/internal/led"
	"github.com/smazurov/mjpegnode/internal/logging"
	"github.com/smazurov/mjpegnode/internal/metrics"
	"github.com/smazurov/mjpegnode/internal/metrics/collectors"
	"github.com/smazurov/mjpegnode/internal/metrics/exporters"
	"github.com/smazurov/mjpegnode/internal/state"
	"github.com/smazurov/mjpegnode/internal/stream"
	"github.com/smazurov/mjpegnode/internal/systemd"
	"github.com/smazurov/mjpegnode/internal/v4l2"
)

// shutdownTimeout bounds how long shutdown waits for background loops.
const shutdownTimeout = 5 * time.Second

// deviceSettleDelay is how long a re-plugged camera gets before the encoder
// reopens it.
const deviceSettleDelay = time.Second

// node owns every long-lived component of the daemon.
type node struct {
	opts   *Options
	logger *slog.Logger
	device string

	bus       *events.Bus
	frames    *frames.Broadcaster
	store     *state.Store
	pipeline  *capture.FFmpegPipeline
	camera    *capture.Controller
	stream    *stream.Server
	client    *control.Client
	heartbeat *control.Heartbeat
	progress  *collectors.ProgressCollector
	leds      *led.Manager
	api       *api.Server
	notifier  *systemd.Notifier
	watcher   *config.Watcher[logging.Config]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// newNode validates opts and builds the component graph. It performs no
// network I/O; configuration errors are returned for a non-zero exit.
func newNode(opts *Options) (*node, error) {
	params, err := opts.ffmpegParams()
	if err != nil {
		return nil, err
	}
	pahoConfig, err := opts.pahoConfig()
	if err != nil {
		return nil, err
	}
	retryInterval, err := parseDuration("mqtt.retry_interval", opts.MQTTRetryInterval)
	if err != nil {
		return nil, err
	}
	heartbeatInterval, err := parseDuration("mqtt.heartbeat_interval", opts.MQTTHeartbeatInterval)
	if err != nil {
		return nil, err
	}
	stopTimeout, err := parseDuration("camera.stop_timeout", opts.CameraStopTimeout)
	if err != nil {
		return nil, err
	}

	if usesDevice(opts) {
		device, err := v4l2.Resolve(opts.CameraDevice)
		if err != nil {
			logging.GetLogger("main").Warn("Capture device not found yet", "device", opts.CameraDevice, "error", err)
		} else {
			params.DevicePath = device
		}
	}

	n := &node{
		device:   params.DevicePath,
		opts:     opts,
		logger:   logging.GetLogger("main"),
		bus:      events.New(),
		frames:   frames.NewBroadcaster(),
		store:    state.NewStore(opts.StateFile, logging.GetLogger("state")),
		notifier: systemd.NewNotifier(logging.GetLogger("systemd")),
	}
	n.frames.OnPublish(metrics.AddFramePublished)

	pipelineOpts := []capture.FFmpegOption{
		capture.WithOutputLogger(logging.GetLogger("ffmpeg")),
		capture.WithGracefulTimeout(stopTimeout),
	}
	if opts.CameraCommand != "" {
		pipelineOpts = append(pipelineOpts, capture.WithCommand(opts.CameraCommand))
	}
	n.pipeline = capture.NewFFmpegPipeline(params, logging.GetLogger("capture"), pipelineOpts...)
	if err := n.pipeline.ConfigureVideo(opts.CameraWidth, opts.CameraHeight, opts.CameraFrameRate); err != nil {
		return nil, err
	}
	n.camera = capture.NewController(n.pipeline, n.frames, n.store, n.bus, logging.GetLogger("capture"))

	if params.ProgressSocket != "" && opts.CameraCommand == "" {
		n.progress = collectors.NewProgressCollector(params.ProgressSocket, logging.GetLogger("ffmpeg"))
	}

	n.stream = stream.NewServer(n.frames, logging.GetLogger("stream"))

	controlLogger := logging.GetLogger("control")
	transport := control.NewPahoTransport(pahoConfig, controlLogger)
	n.client = control.NewClient(transport, n.camera, opts.MQTTTopic, controlLogger,
		control.WithRetryPolicy(control.RetryPolicy{Interval: retryInterval}),
		control.WithEventBus(n.bus),
	)
	n.heartbeat = control.NewHeartbeat(n.client, heartbeatInterval, controlLogger)

	if opts.FeaturesLEDControl {
		ledLogger := logging.GetLogger("led")
		n.leds = led.NewManager(led.New(ledLogger), n.bus, ledLogger)
	}

	if opts.APIPort != "" {
		n.api = api.NewServer(&api.Options{
			AuthUsername:      opts.APIUsername,
			AuthPassword:      opts.APIPassword,
			Camera:            n.camera,
			Control:           n.client,
			Encoder:           n.pipeline,
			EventBus:          n.bus,
			PrometheusHandler: exporters.HTTPHandler(),
			Logger:            logging.GetLogger("api"),
		})
	}

	n.watcher = config.NewConfigWatcher(opts.Config, config.LoadLoggingConfig, n.logger)
	n.watcher.OnReload(func(cfg logging.Config) {
		logging.ApplyLevels(cfg.Level, cfg.Modules)
		n.logger.Info("Log levels reloaded", "level", cfg.Level)
	})

	n.logger.Info("Configured",
		"topic", opts.MQTTTopic,
		"broker", pahoConfig.BrokerURL(),
		"client_id", pahoConfig.ClientID,
		"command", n.pipeline.Command())
	return n, nil
}

// run binds the listeners, restores the persisted state and serves the
// stream until shutdown. Background loops share one context that lives
// as long as the process.
func (n *node) run() error {
	n.ctx, n.cancel = context.WithCancel(context.Background())

	// ffmpeg dials the progress socket on start and exits if it is missing.
	if n.progress != nil {
		if err := n.progress.Start(n.ctx); err != nil {
			return fmt.Errorf("progress socket %s: %w", n.progress.SocketPath(), err)
		}
	}

	n.checkCamera()
	if err := n.camera.Restore(); err != nil {
		n.logger.Error("Failed to restore camera state", "error", err)
	}

	if err := n.stream.Listen(n.opts.StreamPort); err != nil {
		return err
	}
	if n.api != nil {
		if err := n.api.Listen(n.opts.APIPort); err != nil {
			return err
		}
		n.spawn(func(context.Context) {
			if err := n.api.Serve(); err != nil {
				n.logger.Error("Admin API failed", "error", err)
			}
		})
	}

	if n.leds != nil {
		n.leds.Start(n.camera.IsOn())
	}
	n.bus.Subscribe(func(e events.CaptureStateChangedEvent) {
		n.notifier.Status(statusLine(e.On))
	})

	n.spawn(func(ctx context.Context) {
		if err := n.client.Run(ctx); err != nil {
			n.logger.Error("Control channel stopped", "error", err)
		}
	})
	n.spawn(n.heartbeat.Run)
	n.spawn(n.notifier.RunWatchdog)
	if n.opts.CameraHotplug && usesDevice(n.opts) {
		n.watchDevice()
	}

	if err := n.watcher.Start(); err != nil {
		n.logger.Warn("Config watcher disabled", "error", err)
	}

	n.notifier.Status(statusLine(n.camera.IsOn()))
	n.notifier.Ready()
	return n.stream.Serve()
}

// checkCamera warns when the device cannot deliver the configured mode.
// ffmpeg still gets the final say, since some drivers enumerate nothing.
func (n *node) checkCamera() {
	if !usesDevice(n.opts) {
		return
	}
	caps, err := v4l2.Probe(n.device)
	if err != nil {
		n.logger.Warn("Cannot probe capture device", "device", n.device, "error", err)
		return
	}
	err = caps.Supports(n.opts.CameraInputFormat, n.opts.CameraWidth, n.opts.CameraHeight, n.opts.CameraFrameRate)
	if err != nil {
		n.logger.Warn("Capture device may reject the configured mode", "error", err)
		return
	}
	n.logger.Info("Capture device ready", "device", caps.Path, "name", caps.Name, "driver", caps.Driver)
}

// watchDevice follows hotplug events for the capture device and restarts
// the encoder when the device comes back while the camera is on.
func (n *node) watchDevice() {
	monitor, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		n.logger.Warn("Device hotplug monitoring disabled", "error", err)
		return
	}
	// Stable ids are symlinks; uevents name the real node.
	device := n.device
	if target, err := filepath.EvalSymlinks(device); err == nil {
		device = target
	}
	uevents := make(chan hotplug.Event, 8)

	n.spawn(func(ctx context.Context) {
		defer monitor.Close()
		if err := monitor.Run(ctx, uevents); err != nil && ctx.Err() == nil {
			n.logger.Warn("Device hotplug monitor stopped", "error", err)
		}
	})
	n.spawn(func(ctx context.Context) {
		hotplug.Watch(ctx, uevents, device, func(present bool) {
			n.bus.Publish(events.DeviceChangedEvent{
				Device:    device,
				Present:   present,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			if present {
				// udev creates the node and fixes its permissions after the
				// kernel event.
				time.Sleep(deviceSettleDelay)
				if err := n.camera.Restart(); err != nil {
					n.logger.Error("Failed to resume capture after replug", "error", err)
				}
			}
		}, logging.GetLogger("capture"))
	})
}

func (n *node) spawn(fn func(ctx context.Context)) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		fn(n.ctx)
	}()
}

// shutdown stops every component. The persisted state is left untouched so
// the camera comes back in the same state after a restart.
func (n *node) shutdown() {
	n.logger.Info("Shutting down")
	n.notifier.Stopping()

	if n.cancel != nil {
		n.cancel()
	}
	if err := n.stream.Stop(); err != nil {
		n.logger.Warn("Error stopping stream server", "error", err)
	}
	if n.api != nil {
		if err := n.api.Stop(); err != nil {
			n.logger.Warn("Error stopping admin API", "error", err)
		}
	}
	if err := n.pipeline.StopEncoding(); err != nil {
		n.logger.Warn("Error stopping encoder", "error", err)
	}
	if n.leds != nil {
		n.leds.Stop()
	}
	if n.progress != nil {
		n.progress.Stop()
	}
	if err := n.watcher.Stop(); err != nil {
		n.logger.Debug("Error stopping config watcher", "error", err)
	}

	if err := n.waitLoops(shutdownTimeout); err != nil {
		n.logger.Warn("Background loops still running", "error", err)
	}
	n.logger.Info("Stopped")
	logging.Close()
}

func (n *node) waitLoops(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timed out after " + timeout.String())
	}
}

// usesDevice reports whether ffmpeg reads the configured V4L2 device.
func usesDevice(opts *Options) bool {
	return !opts.CameraTestSource && opts.CameraCommand == ""
}

func statusLine(on bool) string {
	if on {
		return "streaming on"
	}
	return "streaming off"
}
