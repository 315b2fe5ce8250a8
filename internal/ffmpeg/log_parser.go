package ffmpeg

import (
	"log/slog"
	"strings"
)

// ParseLogLevel extracts the log level from ffmpeg output.
// FFmpeg with -loglevel level+info outputs lines like "[info] message"
// or "[component @ 0x...] [level] message" for component-specific logs.
// Returns the level and the message with level stripped but component preserved.
func ParseLogLevel(line string) (slog.Level, string) {
	if len(line) < 3 || line[0] != '[' {
		return slog.LevelInfo, line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return slog.LevelInfo, line
	}

	bracket := line[1:end]

	if level, ok := toSlogLevel(bracket); ok {
		return level, line[end+2:]
	}

	// Check for component prefix: [component @ 0x...] [level] message
	// Keep the component, strip only the [level]
	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			if level, ok := toSlogLevel(rest[1:nextEnd]); ok {
				return level, component + rest[nextEnd+2:]
			}
		}
	}

	return slog.LevelInfo, line
}

func toSlogLevel(s string) (slog.Level, bool) {
	switch s {
	case "panic", "fatal", "error":
		return slog.LevelError, true
	case "warning":
		return slog.LevelWarn, true
	case "quiet", "info":
		return slog.LevelInfo, true
	case "verbose", "debug", "trace":
		return slog.LevelDebug, true
	}
	return 0, false
}
