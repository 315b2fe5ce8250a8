package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/mjpegnode/internal/capture"
	"github.com/smazurov/mjpegnode/internal/ffmpeg"
)

func TestTakeSnapshot(t *testing.T) {
	output := filepath.Join(t.TempDir(), "snap.jpg")
	opts := snapshotOptions{
		params:  ffmpeg.Params{Width: 640, Height: 480, FPS: 30},
		command: `sh -c "printf '\\377\\330one\\377\\331\\377\\330two\\377\\331'; sleep 10"`,
		output:  output,
		skip:    1,
		timeout: 2 * time.Second,
	}

	size, err := takeSnapshot(context.Background(), opts)
	if err != nil {
		t.Fatalf("takeSnapshot() error = %v", err)
	}

	want := []byte("\xff\xd8two\xff\xd9")
	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !bytes.Equal(got, want) || size != len(want) {
		t.Errorf("snapshot = %q (%d bytes), want %q", got, size, want)
	}
}

func TestTakeSnapshotTimeout(t *testing.T) {
	output := filepath.Join(t.TempDir(), "snap.jpg")
	opts := snapshotOptions{
		params:  ffmpeg.Params{Width: 640, Height: 480, FPS: 30},
		command: "sleep 10",
		output:  output,
		timeout: 100 * time.Millisecond,
	}

	_, err := takeSnapshot(context.Background(), opts)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("takeSnapshot() error = %v, want deadline exceeded", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("snapshot written without a frame")
	}
}

func TestTakeSnapshotInvalidMode(t *testing.T) {
	opts := snapshotOptions{
		params:  ffmpeg.Params{Width: 0, Height: 480, FPS: 30},
		command: "sleep 10",
		output:  filepath.Join(t.TempDir(), "snap.jpg"),
		timeout: time.Second,
	}
	if _, err := takeSnapshot(context.Background(), opts); err == nil {
		t.Error("takeSnapshot() accepted zero width")
	}
}

func TestTakeSnapshotEncoderExits(t *testing.T) {
	opts := snapshotOptions{
		params:  ffmpeg.Params{Width: 640, Height: 480, FPS: 30},
		command: `sh -c "exit 2"`,
		output:  filepath.Join(t.TempDir(), "snap.jpg"),
		timeout: 5 * time.Second,
	}
	if _, err := takeSnapshot(context.Background(), opts); !errors.Is(err, capture.ErrEncoderExited) {
		t.Errorf("takeSnapshot() error = %v, want ErrEncoderExited", err)
	}
}
