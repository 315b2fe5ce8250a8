// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (when attached to a terminal, pipe or file), to the
// systemd journal when journald is reachable, and to an optional append-only
// log file. Every logger carries a "module" attribute.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		File:   "/var/log/mjpegnode.log",
//		Modules: map[string]string{
//			"control": "debug",
//			"stream":  "warn",
//		},
//	})
//
// Then per component:
//
//	logger := logging.GetLogger("control")
//	logger.Info("Connected to broker", "host", host)
//
// Levels can be changed at runtime with ApplyLevels; loggers that were
// already handed out follow the change.
//
// Viewing journal output:
//
//	journalctl -t mjpegnode -f
//	journalctl -t mjpegnode MODULE=capture
package logging
