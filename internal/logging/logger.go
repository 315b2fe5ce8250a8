package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	logFile         io.WriteCloser
	mutex           sync.RWMutex
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	File    string            `toml:"file"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system. It may be called again to
// apply a changed configuration; existing module loggers are rebuilt.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	if config.File != globalConfig.File || !isInitialized {
		reopenLogFile(config.File)
	}

	globalConfig = config
	isInitialized = true

	globalLevel := parseLevel(config.Level)
	if globalLevel == nil {
		defaultLevel := slog.LevelInfo
		globalLevel = &defaultLevel
	}
	globalLevelVar.Set(*globalLevel)

	// Loggers handed out before Initialize() were built with the bootstrap
	// handler, so they get the full chain now.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module, *globalLevel))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// ApplyLevels changes log levels in place without rebuilding handlers.
// Loggers already held by components pick the change up immediately.
func ApplyLevels(level string, modules map[string]string) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig.Level = level
	globalConfig.Modules = modules

	globalLevel := slog.LevelInfo
	if parsed := parseLevel(level); parsed != nil {
		globalLevel = *parsed
	}
	globalLevelVar.Set(globalLevel)

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module, globalLevel))
	}
}

// Close releases the log file, if one is open.
func Close() error {
	mutex.Lock()
	defer mutex.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	// Double-check in case another goroutine created it
	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}

	format := "text"
	level := slog.LevelInfo
	if isInitialized {
		format = globalConfig.Format
		if parsed := parseLevel(globalConfig.Level); parsed != nil {
			level = *parsed
		}
		level = moduleLevel(module, level)
	}
	levelVar.Set(level)

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// moduleLevel returns the configured override for module, or fallback (must hold lock).
func moduleLevel(module string, fallback slog.Level) slog.Level {
	if levelStr, exists := globalConfig.Modules[module]; exists {
		if parsed := parseLevel(levelStr); parsed != nil {
			return *parsed
		}
	}
	return fallback
}

// reopenLogFile swaps the append-only log file (must hold lock).
func reopenLogFile(path string) {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Nothing to log to yet; stderr is the only sink left.
		_, _ = os.Stderr.WriteString("mjpegnode: cannot open log file " + path + ": " + err.Error() + "\n")
		return
	}
	logFile = f
}

// createHandler creates a slog handler with the specified format and level.
// Logs to stdout, journal (when available) and the log file (when configured).
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler

	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}

	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	if logFile != nil {
		// File output always carries timestamps, like the journal does.
		handlers = append(handlers, slog.NewTextHandler(logFile, opts))
	}

	switch len(handlers) {
	case 0:
		return stdoutHandler
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// Not available when pointed at /dev/null, which is a device
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
