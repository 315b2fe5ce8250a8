package collectors

import (
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/mjpegnode/internal/metrics"
)

func skipOnMacOS(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("Unix socket path too long on macOS")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseProgress(t *testing.T) {
	input := `frame=120
fps=29.97
drop_frames=3
dup_frames=1
speed=1.25x
progress=continue
fps=30.00
speed= 1.0x
progress=end
`
	var got []metrics.EncoderStats
	ParseProgress(strings.NewReader(input), func(s metrics.EncoderStats) {
		got = append(got, s)
	})

	if len(got) != 2 {
		t.Fatalf("got %d reports, want 2", len(got))
	}
	want := metrics.EncoderStats{FPS: 29.97, DroppedFrames: 3, DuplicateFrames: 1, Speed: 1.25}
	if got[0] != want {
		t.Errorf("first report = %+v, want %+v", got[0], want)
	}
	// Fields absent from a block are zero, not carried over.
	if got[1].FPS != 30 || got[1].Speed != 1 || got[1].DroppedFrames != 0 {
		t.Errorf("second report = %+v", got[1])
	}
}

func TestParseProgressIgnoresGarbage(t *testing.T) {
	var calls int
	ParseProgress(strings.NewReader("hello\nfps=abc\n\nprogress=continue\n"), func(s metrics.EncoderStats) {
		calls++
		if s.FPS != 0 {
			t.Errorf("FPS = %v, want 0 for unparsable value", s.FPS)
		}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func dial(t *testing.T, socketPath string) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for range 50 {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("failed to connect to socket: %v", err)
	return nil
}

func TestProgressCollectorSocket(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "ffmpeg.sock")

	reports := make(chan metrics.EncoderStats, 4)
	collector := NewProgressCollector(socketPath, testLogger())
	collector.report = func(s metrics.EncoderStats) { reports <- s }

	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("failed to start collector: %v", err)
	}
	defer collector.Stop()

	conn := dial(t, socketPath)
	defer conn.Close()

	if _, err := conn.Write([]byte("fps=30\nprogress=continue\nfps=60\nprogress=continue\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, want := range []float64{30, 60} {
		select {
		case s := <-reports:
			if s.FPS != want {
				t.Errorf("FPS = %v, want %v", s.FPS, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for progress report")
		}
	}
}

func TestProgressCollectorReconnect(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "ffmpeg2.sock")

	reports := make(chan metrics.EncoderStats, 4)
	collector := NewProgressCollector(socketPath, testLogger())
	collector.report = func(s metrics.EncoderStats) { reports <- s }

	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("failed to start collector: %v", err)
	}
	defer collector.Stop()

	// One connection per encoder run.
	for _, fps := range []string{"15", "25"} {
		conn := dial(t, socketPath)
		conn.Write([]byte("fps=" + fps + "\nprogress=end\n"))
		conn.Close()

		select {
		case s := <-reports:
			if want := map[string]float64{"15": 15, "25": 25}[fps]; s.FPS != want {
				t.Errorf("FPS = %v, want %v", s.FPS, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for progress report")
		}
	}
}

func TestProgressCollectorStop(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "ffmpeg3.sock")

	collector := NewProgressCollector(socketPath, testLogger())
	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("failed to start collector: %v", err)
	}

	metrics.SetEncoderStats(metrics.EncoderStats{FPS: 30})

	if err := collector.Stop(); err != nil {
		t.Errorf("stop returned error: %v", err)
	}
	if err := collector.Stop(); err != nil {
		t.Errorf("second stop returned error: %v", err)
	}

	if s := metrics.GetEncoderStats(); s.FPS != 0 {
		t.Errorf("FPS = %v after stop, want 0", s.FPS)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("expected socket file to be removed")
	}
}

func TestProgressCollectorCleanupOldSocket(t *testing.T) {
	skipOnMacOS(t)
	socketPath := filepath.Join(t.TempDir(), "ffmpeg4.sock")

	f, err := os.Create(socketPath)
	if err != nil {
		t.Fatalf("failed to create stale socket: %v", err)
	}
	f.Close()

	collector := NewProgressCollector(socketPath, testLogger())
	if err := collector.Start(t.Context()); err != nil {
		t.Fatalf("start over stale socket file: %v", err)
	}
	defer collector.Stop()

	conn := dial(t, socketPath)
	conn.Close()
}
