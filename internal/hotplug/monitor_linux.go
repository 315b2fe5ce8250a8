//go:build linux

package hotplug

import (
	"context"
	"errors"
	"syscall"
)

// netlinkKobjectUEvent is the netlink protocol carrying kernel uevents.
const netlinkKobjectUEvent = 15

// Monitor reads kernel uevents from a netlink socket.
type Monitor struct {
	fd        int
	subsystem string
}

// NewMonitor opens a netlink socket on the kernel broadcast group. An empty
// subsystem passes every event.
func NewMonitor(subsystem string) (*Monitor, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}
	addr := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: 1}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	// A receive timeout lets Run notice cancellation.
	tv := syscall.Timeval{Sec: 1}
	if err := syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return &Monitor{fd: fd, subsystem: subsystem}, nil
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return syscall.Close(m.fd)
}

// Run sends matching events until ctx is done or the socket fails. events
// is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := syscall.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}

		ev := ParseUEvent(buf[:n])
		if ev == nil || (m.subsystem != "" && ev.Subsystem != m.subsystem) {
			continue
		}
		select {
		case events <- *ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
