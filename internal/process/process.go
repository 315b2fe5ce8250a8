package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrAlreadyStarted is returned when Start is called a second time.
var ErrAlreadyStarted = errors.New("process already started")

// ExitKilled is the exit code reported when the process had to be killed.
const ExitKilled = 137

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, etc.)
type LogParser func(line string) (slog.Level, string)

// Process manages the lifecycle of a subprocess.
type Process struct {
	id              string
	command         string
	logger          *slog.Logger
	processLogger   *slog.Logger // logger for process output (nil = use logger)
	logParser       LogParser    // nil = everything at info
	stdout          io.Writer    // nil = log stdout lines
	gracefulTimeout time.Duration
	killTimeout     time.Duration

	mu       sync.Mutex
	cmd      *exec.Cmd
	started  bool
	stopping bool
	done     chan struct{}
	exitCode int
	onExit   func(code int, requested bool)
}

// NewProcess creates a new process. The command string is split with shell
// style quoting but not run through a shell.
func NewProcess(id, command string, logger *slog.Logger) *Process {
	return &Process{
		id:              id,
		command:         command,
		logger:          logger.With("process", id),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		done:            make(chan struct{}),
	}
}

// GetCommand returns the command string.
func (p *Process) GetCommand() string {
	return p.command
}

// SetLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="ffmpeg").
// The parser extracts log level from process-specific output formats.
func (p *Process) SetLogParser(logger *slog.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetStdout sends the raw stdout of the process to w instead of the log.
func (p *Process) SetStdout(w io.Writer) {
	p.stdout = w
}

// SetGracefulTimeout sets how long Stop waits after SIGINT before killing.
func (p *Process) SetGracefulTimeout(d time.Duration) {
	p.gracefulTimeout = d
}

// OnExit registers a callback run once the process has exited. requested is
// true when the exit followed a Stop call.
func (p *Process) OnExit(fn func(code int, requested bool)) {
	p.onExit = fn
}

// Start launches the subprocess and returns once it is running.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	args, err := parseCommand(p.command)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 {
		return errors.New("empty command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Children that inherited our pipes must not hold Wait forever.
	cmd.WaitDelay = p.killTimeout

	var outputs sync.WaitGroup
	var pipes []*io.PipeWriter

	if p.stdout != nil {
		cmd.Stdout = p.stdout
	} else {
		pr, pw := io.Pipe()
		cmd.Stdout = pw
		pipes = append(pipes, pw)
		outputs.Add(1)
		go func() {
			defer outputs.Done()
			p.streamOutput(pr, "stdout")
		}()
	}

	pr, pw := io.Pipe()
	cmd.Stderr = pw
	pipes = append(pipes, pw)
	outputs.Add(1)
	go func() {
		defer outputs.Done()
		p.streamOutput(pr, "stderr")
	}()

	if err := cmd.Start(); err != nil {
		for _, w := range pipes {
			w.Close()
		}
		outputs.Wait()
		return fmt.Errorf("start %s: %w", args[0], err)
	}

	p.cmd = cmd
	p.started = true
	p.logger.Info("Process started", "pid", cmd.Process.Pid, "command", p.command)

	go func() {
		waitErr := cmd.Wait()
		for _, w := range pipes {
			w.Close()
		}
		outputs.Wait()
		p.finish(waitErr)
	}()

	return nil
}

func (p *Process) finish(waitErr error) {
	p.mu.Lock()
	requested := p.stopping
	code := exitCodeFromError(waitErr)
	p.exitCode = code
	onExit := p.onExit
	p.mu.Unlock()

	if waitErr != nil && !requested {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			p.logger.Error("Process exited with error", "error", waitErr)
		}
	}
	p.logger.Info("Process exited", "exit_code", code, "requested", requested)

	close(p.done)
	if onExit != nil {
		onExit(code, requested)
	}
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Running reports whether the process was started and has not exited.
func (p *Process) Running() bool {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Stop sends SIGINT, waits for the graceful timeout, then kills the process
// group. Returns the exit code; ExitKilled if a kill was needed. Safe to call
// on a process that never started or already exited.
func (p *Process) Stop() int {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return 0
	}
	p.stopping = true
	p.mu.Unlock()

	select {
	case <-p.done:
		return p.Wait()
	default:
	}

	p.sendSignal(syscall.SIGINT)

	select {
	case <-p.done:
		return p.Wait()
	case <-time.After(p.gracefulTimeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
	p.sendSignal(syscall.SIGKILL)

	// Wait itself gives up on inherited pipes after WaitDelay.
	select {
	case <-p.done:
	case <-time.After(2 * p.killTimeout):
		p.logger.Error("Process did not exit after kill signal")
		return ExitKilled
	}
	return p.Wait()
}

// Run starts the process and blocks until it exits or ctx is cancelled, in
// which case it is stopped. Returns the exit code; 1 if it could not start.
func (p *Process) Run(ctx context.Context) int {
	if err := p.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err)
		return 1
	}

	select {
	case <-ctx.Done():
		p.logger.Info("Context cancelled, shutting down process")
		return p.Stop()
	case <-p.done:
		return p.Wait()
	}
}

// sendSignal signals the whole process group so pipelines started through
// sh -c stop together.
func (p *Process) sendSignal(sig syscall.Signal) {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}

	pid := cmd.Process.Pid
	p.logger.Debug("Signalling process group", "pid", pid, "signal", sig.String())
	if err := syscall.Kill(-pid, sig); err != nil {
		// Fall back to the leader alone.
		if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Warn("Failed to signal process", "signal", sig.String(), "error", err)
		}
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
	}
	return 1
}

// streamOutput logs each line from the subprocess using the configured
// parser to pick the level.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		level, msg := slog.LevelInfo, line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}
		logger.Log(context.Background(), level, msg, "source", source)
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
	// Keep draining so the child never blocks on a full pipe.
	io.Copy(io.Discard, reader)
}

// parseCommand parses a command string into arguments
// Handles quoted strings and basic escaping.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
