package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry written by this process.
const SyslogIdentifier = "mjpegnode"

// JournalHandler is a slog.Handler that sends records to the systemd journal.
// Attributes become upper-cased journal fields, so entries can be filtered
// with e.g. `journalctl -t mjpegnode MODULE=control`.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := priorityFor(r.Level)

	fields := map[string]string{
		"PRIORITY":          strconv.Itoa(int(priority)),
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
	}
	for _, attr := range h.attrs {
		putField(fields, attr, h.groups)
	}
	r.Attrs(func(attr slog.Attr) bool {
		putField(fields, attr, h.groups)
		return true
	})

	if err := journal.Send(r.Message, priority, fields); err != nil {
		fmt.Fprintf(os.Stderr, "journal send failed: %v\n", err)
		return err
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{
		level:  h.level,
		attrs:  append(slices.Clip(h.attrs), attrs...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clip(h.groups), name),
	}
}

func priorityFor(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func putField(fields map[string]string, attr slog.Attr, groups []string) {
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	key = strings.ToUpper(key)

	v := attr.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		nested := append(slices.Clip(groups), key)
		for _, a := range v.Group() {
			putField(fields, a, nested)
		}
	case slog.KindTime:
		fields[key] = v.Time().Format(time.RFC3339Nano)
	default:
		fields[key] = v.String()
	}
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
