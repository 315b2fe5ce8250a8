// Package process runs one subprocess at a time for the capture pipeline.
//
// Process wraps os/exec:
//   - Graceful shutdown with SIGINT and configurable timeout
//   - Force kill with SIGKILL if graceful shutdown times out
//   - stdout either copied to a sink or logged line by line
//   - stderr logged with pluggable level parsing
//
// A Process is started once. Create a new one to run the command again.
package process
