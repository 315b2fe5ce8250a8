package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetState clears package globals so each test starts uninitialized.
func resetState(t *testing.T) {
	t.Helper()
	_ = Close()
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	mutex.Unlock()
	t.Cleanup(func() { _ = Close() })
}

func TestModuleLevelOverride(t *testing.T) {
	resetState(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"control": "debug",
			"stream":  "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"control", true, true, true},
		{"stream", false, false, true},
		{"capture", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState(t)

	before := GetLogger("control")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"control": "debug"}})

	// The old handle shares the module LevelVar, so it follows the new level.
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should follow the configured module level")
	}
}

func TestApplyLevels(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("capture")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}

	ApplyLevels("warn", map[string]string{"capture": "debug"})
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("capture module should be at debug after ApplyLevels")
	}

	other := GetLogger("state")
	if other.Handler().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("new module logger should use the global warn level")
	}

	ApplyLevels("info", nil)
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("capture module should drop back to info once the override is removed")
	}
}

func TestLogFileOutput(t *testing.T) {
	resetState(t)
	path := filepath.Join(t.TempDir(), "app.log")

	Initialize(Config{Level: "info", File: path})
	GetLogger("state").Info("state written", "on", true)

	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	for _, want := range []string{"state written", "module=state", "on=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("log file missing %q. Output: %s", want, out)
		}
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("info message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("expected 1 debug message, got %d. Output: %s", count, output)
	}
	if count := strings.Count(output, "info message"); count != 2 {
		t.Errorf("expected 2 info messages, got %d. Output: %s", count, output)
	}
	if count := strings.Count(output, "module=test"); count != 3 {
		t.Errorf("expected module attr on every record, got %d. Output: %s", count, output)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			switch {
			case tt.isNil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
			case !tt.isNil && got == nil:
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			case !tt.isNil && *got != tt.want:
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}
