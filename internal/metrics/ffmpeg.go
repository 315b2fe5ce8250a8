package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current FFmpeg encoding FPS",
	})

	ffmpegDroppedFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by FFmpeg since the encoder started",
	})

	ffmpegDuplicateFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames_total",
		Help:      "Frames duplicated by FFmpeg since the encoder started",
	})

	ffmpegSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "FFmpeg processing speed multiplier",
	})

	// Snapshot for the admin API.
	encoderCache   EncoderStats
	encoderCacheMu sync.RWMutex
)

// EncoderStats holds the last progress report of the encoder.
type EncoderStats struct {
	FPS             float64 `json:"fps"`
	DroppedFrames   float64 `json:"dropped_frames"`
	DuplicateFrames float64 `json:"duplicate_frames"`
	Speed           float64 `json:"speed"`
}

// SetEncoderStats publishes one progress report.
func SetEncoderStats(s EncoderStats) {
	ffmpegFPS.Set(s.FPS)
	ffmpegDroppedFrames.Set(s.DroppedFrames)
	ffmpegDuplicateFrames.Set(s.DuplicateFrames)
	ffmpegSpeed.Set(s.Speed)

	encoderCacheMu.Lock()
	encoderCache = s
	encoderCacheMu.Unlock()
}

// ResetEncoderStats zeroes the encoder gauges, typically when encoding stops.
func ResetEncoderStats() {
	SetEncoderStats(EncoderStats{})
}

// GetEncoderStats returns the last progress report.
func GetEncoderStats() EncoderStats {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	return encoderCache
}
