// Package metrics provides Prometheus metrics for the camera node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mjpegnode"

var (
	framesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_published_total",
		Help:      "Frames handed to the broadcaster by the capture pipeline",
	})

	framesPublishedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_published_bytes_total",
		Help:      "Encoded bytes handed to the broadcaster",
	})

	streamViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "viewers",
		Help:      "Currently connected MJPEG clients",
	})

	streamFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_sent_total",
		Help:      "Multipart parts written to MJPEG clients",
	})

	captureOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "on",
		Help:      "1 while the camera is encoding",
	})

	captureTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "transitions_total",
		Help:      "Completed start/stop transitions",
	}, []string{"to"})

	mqttConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mqtt",
		Name:      "connected",
		Help:      "1 while the control channel is connected to the broker",
	})

	mqttConnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mqtt",
		Name:      "connect_attempts_total",
		Help:      "Broker connection attempts",
	})

	mqttStatePublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mqtt",
		Name:      "state_publishes_total",
		Help:      "State messages published, by reason",
	}, []string{"reason"})
)

// AddFramePublished counts one frame of the given size.
func AddFramePublished(size int) {
	framesPublished.Inc()
	framesPublishedBytes.Add(float64(size))
}

// IncViewers marks a client connected to the stream.
func IncViewers() { streamViewers.Inc() }

// DecViewers marks a client gone.
func DecViewers() { streamViewers.Dec() }

// AddFrameSent counts one multipart part written to a client.
func AddFrameSent() { streamFramesSent.Inc() }

// SetCaptureOn records a completed capture transition.
func SetCaptureOn(on bool) {
	if on {
		captureOn.Set(1)
		captureTransitions.WithLabelValues("on").Inc()
		return
	}
	captureOn.Set(0)
	captureTransitions.WithLabelValues("off").Inc()
}

// SetMQTTConnected sets the broker connection gauge.
func SetMQTTConnected(connected bool) {
	if connected {
		mqttConnected.Set(1)
	} else {
		mqttConnected.Set(0)
	}
}

// IncMQTTConnectAttempts counts one broker connection attempt.
func IncMQTTConnectAttempts() { mqttConnectAttempts.Inc() }

// IncMQTTStatePublish counts one successful state publish.
func IncMQTTStatePublish(reason string) {
	mqttStatePublishes.WithLabelValues(reason).Inc()
}
