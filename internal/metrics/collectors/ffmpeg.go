// Package collectors feeds encoder progress reports into the node metrics.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/mjpegnode/internal/metrics"
)

// ProgressCollector receives FFmpeg `-progress unix://...` reports on a Unix
// socket. FFmpeg reconnects every time the encoder restarts, so the listener
// outlives individual encoder runs.
type ProgressCollector struct {
	logger     *slog.Logger
	socketPath string
	report     func(metrics.EncoderStats)

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewProgressCollector creates a collector listening on socketPath.
func NewProgressCollector(socketPath string, logger *slog.Logger) *ProgressCollector {
	return &ProgressCollector{
		logger:     logger.With("component", "progress_collector"),
		socketPath: socketPath,
		report:     metrics.SetEncoderStats,
		done:       make(chan struct{}),
	}
}

// SocketPath returns the path FFmpeg should report to.
func (c *ProgressCollector) SocketPath() string {
	return c.socketPath
}

// Start binds the socket and begins accepting FFmpeg connections.
func (c *ProgressCollector) Start(ctx context.Context) error {
	if err := os.Remove(c.socketPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to clean up old socket file", "error", err)
	}

	listener, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.listener = listener
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("Listening for encoder progress", "socket", c.socketPath)
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	go c.acceptLoop(ctx, listener)
	return nil
}

// Stop closes the socket, removes it and zeroes the encoder metrics.
func (c *ProgressCollector) Stop() error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cancel, started := c.cancel, c.listener != nil
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if started {
			<-c.done
		}
		os.Remove(c.socketPath)
		metrics.ResetEncoderStats()
	})
	return nil
}

func (c *ProgressCollector) acceptLoop(ctx context.Context, listener net.Listener) {
	defer close(c.done)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Warn("Error accepting connection", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		go func() {
			defer conn.Close()
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			ParseProgress(conn, c.report)
		}()
	}
}

// ParseProgress reads key=value progress blocks from r until EOF and calls
// report at the end of each block (the `progress=` line).
func ParseProgress(r io.Reader, report func(metrics.EncoderStats)) {
	scanner := bufio.NewScanner(r)
	block := make(map[string]string)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		block[key] = strings.TrimSpace(value)

		if key == "progress" {
			report(statsFrom(block))
			block = make(map[string]string)
		}
	}
}

func statsFrom(data map[string]string) metrics.EncoderStats {
	var s metrics.EncoderStats
	if fps, err := strconv.ParseFloat(data["fps"], 64); err == nil {
		s.FPS = fps
	}
	if dropped, err := strconv.ParseFloat(data["drop_frames"], 64); err == nil {
		s.DroppedFrames = dropped
	}
	if dup, err := strconv.ParseFloat(data["dup_frames"], 64); err == nil {
		s.DuplicateFrames = dup
	}
	speed := strings.TrimSuffix(data["speed"], "x")
	if v, err := strconv.ParseFloat(strings.TrimSpace(speed), 64); err == nil {
		s.Speed = v
	}
	return s
}
