package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/mjpegnode/internal/ffmpeg"
	"github.com/smazurov/mjpegnode/internal/metrics"
	"github.com/smazurov/mjpegnode/internal/process"
)

// FFmpegPipeline encodes MJPEG by running ffmpeg (or an override command
// that writes MJPEG to stdout) and splitting its output into frames.
type FFmpegPipeline struct {
	mu              sync.Mutex
	params          ffmpeg.Params
	override        string
	logger          *slog.Logger
	outputLogger    *slog.Logger
	gracefulTimeout time.Duration
	startupTimeout  time.Duration
	proc            *process.Process
	splitter        *JPEGSplitter
}

// FFmpegOption configures an FFmpegPipeline.
type FFmpegOption func(*FFmpegPipeline)

// WithCommand replaces the generated ffmpeg command, e.g. with
// "libcamera-vid -t 0 --codec mjpeg -o -".
func WithCommand(command string) FFmpegOption {
	return func(p *FFmpegPipeline) { p.override = command }
}

// WithOutputLogger routes encoder stderr to logger instead of the pipeline's.
func WithOutputLogger(logger *slog.Logger) FFmpegOption {
	return func(p *FFmpegPipeline) { p.outputLogger = logger }
}

// WithGracefulTimeout sets how long StopEncoding waits before killing.
func WithGracefulTimeout(d time.Duration) FFmpegOption {
	return func(p *FFmpegPipeline) { p.gracefulTimeout = d }
}

// WithStartupTimeout sets how long StartEncodingTo waits for the first frame.
// An encoder still alive after the window counts as started; zero skips the
// wait.
func WithStartupTimeout(d time.Duration) FFmpegOption {
	return func(p *FFmpegPipeline) { p.startupTimeout = d }
}

// NewFFmpegPipeline creates an idle pipeline.
func NewFFmpegPipeline(params ffmpeg.Params, logger *slog.Logger, opts ...FFmpegOption) *FFmpegPipeline {
	p := &FFmpegPipeline{
		params:          params,
		logger:          logger,
		outputLogger:    logger,
		gracefulTimeout: 5 * time.Second,
		startupTimeout:  3 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConfigureVideo sets the capture size and rate used by the next start.
func (p *FFmpegPipeline) ConfigureVideo(width, height, frameRate int) error {
	if width <= 0 || height <= 0 || frameRate <= 0 {
		return fmt.Errorf("invalid video mode %dx%d@%d", width, height, frameRate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running() {
		return ErrPipelineRunning
	}
	p.params.Width = width
	p.params.Height = height
	p.params.FPS = frameRate
	p.logger.Debug("Video configured", "width", width, "height", height, "fps", frameRate)
	return nil
}

// Command returns the command the next start will run.
func (p *FFmpegPipeline) Command() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.command()
}

func (p *FFmpegPipeline) command() string {
	if p.override != "" {
		return p.override
	}
	return ffmpeg.BuildMJPEGCommand(&p.params)
}

// StartEncodingTo launches the encoder and forwards every frame to sink. It
// returns once the first frame arrived or the startup window passed, and
// fails with ErrEncoderExited if the encoder dies before either.
func (p *FFmpegPipeline) StartEncodingTo(sink FrameSink) error {
	if sink == nil {
		return errors.New("nil frame sink")
	}

	p.mu.Lock()
	if p.running() {
		p.mu.Unlock()
		return ErrPipelineRunning
	}

	firstFrame := make(chan struct{})
	var once sync.Once
	splitter := NewJPEGSplitter(func(frame []byte) {
		once.Do(func() { close(firstFrame) })
		sink.WriteFrame(frame)
	})
	proc := process.NewProcess("encoder", p.command(), p.logger)
	proc.SetStdout(splitter)
	proc.SetLogParser(p.outputLogger, ffmpeg.ParseLogLevel)
	proc.SetGracefulTimeout(p.gracefulTimeout)
	proc.OnExit(func(code int, requested bool) {
		if !requested {
			// The controller still reports on; the next stop/start cycle
			// brings the encoder back.
			p.logger.Error("Encoder exited unexpectedly", "exit_code", code)
		}
		if n := splitter.Dropped(); n > 0 {
			p.logger.Warn("Discarded oversized frames", "count", n)
		}
	})

	if err := proc.Start(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.proc = proc
	p.splitter = splitter
	timeout := p.startupTimeout
	p.mu.Unlock()

	if err := p.awaitFirstFrame(proc, firstFrame, timeout); err != nil {
		p.mu.Lock()
		if p.proc == proc {
			p.proc = nil
			p.splitter = nil
		}
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *FFmpegPipeline) awaitFirstFrame(proc *process.Process, firstFrame <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-firstFrame:
		return nil
	case <-timer.C:
		p.logger.Warn("No frame from encoder yet", "waited", timeout)
		return nil
	case <-proc.Done():
		// stdout is drained before Done closes, so a frame written just
		// before exiting has been seen.
		select {
		case <-firstFrame:
			return nil
		default:
		}
		return fmt.Errorf("%w: exit code %d", ErrEncoderExited, proc.Wait())
	}
}

// StopEncoding stops the encoder. Stopping an idle or already exited
// pipeline succeeds.
func (p *FFmpegPipeline) StopEncoding() error {
	p.mu.Lock()
	proc := p.proc
	p.proc = nil
	p.splitter = nil
	p.mu.Unlock()

	if proc == nil {
		return nil
	}
	code := proc.Stop()
	metrics.ResetEncoderStats()
	p.logger.Debug("Encoder stopped", "exit_code", code)
	return nil
}

// Running reports whether the encoder process is alive.
func (p *FFmpegPipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running()
}

func (p *FFmpegPipeline) running() bool {
	return p.proc != nil && p.proc.Running()
}
