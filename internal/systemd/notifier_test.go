package systemd

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// listenNotify binds a NOTIFY_SOCKET for the test and returns received
// datagrams.
func listenNotify(t *testing.T) <-chan string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)

	out := make(chan string, 16)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			out <- string(buf[:n])
		}
	}()
	return out
}

func expect(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func TestNotifierLifecycle(t *testing.T) {
	msgs := listenNotify(t)
	n := NewNotifier(testLogger())

	n.Ready()
	expect(t, msgs, "READY=1")
	n.Status("streaming off")
	expect(t, msgs, "STATUS=streaming off")
	n.Stopping()
	expect(t, msgs, "STOPPING=1")
}

func TestNotifierWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewNotifier(testLogger())
	n.Ready() // must not panic or block
}

func TestRunWatchdog(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	n := &Notifier{
		logger: testLogger(),
		notify: func(state string) (bool, error) {
			mu.Lock()
			sent = append(sent, state)
			mu.Unlock()
			return true, nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	n.runWatchdog(ctx, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(sent) < 3 {
		t.Errorf("watchdog pings = %d, want several", len(sent))
	}
	for _, s := range sent {
		if !strings.HasPrefix(s, "WATCHDOG=1") {
			t.Errorf("unexpected message %q", s)
		}
	}
}

func TestRunWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	n := NewNotifier(testLogger())

	done := make(chan struct{})
	go func() {
		n.RunWatchdog(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog blocked without WATCHDOG_USEC")
	}
}
