// Package hotplug watches kernel uevents so the daemon notices a camera
// being unplugged and plugged back in.
package hotplug

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
)

// Kernel actions the watcher reacts to.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// SubsystemVideo4Linux is the uevent subsystem of V4L2 device nodes.
const SubsystemVideo4Linux = "video4linux"

// Event is one kernel device event.
type Event struct {
	Action    string
	KObj      string
	Subsystem string
	DevName   string // relative to /dev, e.g. video0
	Env       map[string]string
}

// ParseUEvent decodes a netlink uevent of the form
// "ACTION@KOBJ\0KEY=VALUE\0...". It returns nil for anything else.
func ParseUEvent(data []byte) *Event {
	// udevd rebroadcasts with a binary header; the kernel message is the
	// first NUL-separated field holding an action@ token.
	if bytes.HasPrefix(data, []byte("libudev")) {
		for i := 0; i < len(data)-1; i++ {
			if data[i] != 0 {
				continue
			}
			rest := data[i+1:]
			field := rest
			if end := bytes.IndexByte(rest, 0); end >= 0 {
				field = rest[:end]
			}
			if at := bytes.IndexByte(field, '@'); at > 0 && at < 20 {
				data = rest
				break
			}
		}
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return nil
	}
	action, kobj, ok := strings.Cut(string(parts[0]), "@")
	if !ok || action == "" {
		return nil
	}

	ev := &Event{Action: action, KObj: kobj, Env: make(map[string]string)}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		}
	}
	return ev
}

// Watch forwards add and remove events for device to onChange until ctx is
// done or events is closed. device is a /dev path; symlinks are not
// resolved.
func Watch(ctx context.Context, events <-chan Event, device string, onChange func(present bool), logger *slog.Logger) {
	name := strings.TrimPrefix(filepath.Clean(device), "/dev/")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Subsystem != SubsystemVideo4Linux || ev.DevName != name {
				continue
			}
			switch ev.Action {
			case ActionAdd:
				logger.Info("Capture device added", "device", device)
				onChange(true)
			case ActionRemove:
				logger.Warn("Capture device removed", "device", device)
				onChange(false)
			}
		}
	}
}
