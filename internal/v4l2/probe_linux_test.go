//go:build linux

package v4l2

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListSkipsUnopenableNodes(t *testing.T) {
	class := t.TempDir()
	for _, name := range []string{"video0", "video1", "v4l-subdev0"} {
		if err := os.MkdirAll(filepath.Join(class, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	devices, err := list(class, t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("list() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("list() = %v, want none", devices)
	}
}

func TestListMissingClass(t *testing.T) {
	devices, err := list(filepath.Join(t.TempDir(), "missing"), "/dev", "/dev/v4l/by-id")
	if err != nil || devices != nil {
		t.Errorf("list() = %v, %v, want nil, nil", devices, err)
	}
}

func TestStableID(t *testing.T) {
	idDir := t.TempDir()
	link := filepath.Join(idDir, "usb-Logitech_C920-video-index0")
	if err := os.Symlink("../../video2", link); err != nil {
		t.Fatal(err)
	}

	if got := stableID(idDir, "video2", 0, "usb-0000:01:00.0-1"); got != "usb-Logitech_C920-video-index0" {
		t.Errorf("stableID() = %q, want by-id link", got)
	}
	if got := stableID(idDir, "video3", 0, "usb-0000:01:00.0-2"); got != "usb-0000:01:00.0-2-video-index0" {
		t.Errorf("stableID() = %q, want synthesized usb id", got)
	}
	if got := stableID(idDir, "video0", 1, "fe2e0000.csi"); got != "platform-fe2e0000.csi-video-index1" {
		t.Errorf("stableID() = %q, want synthesized platform id", got)
	}
}

func TestReadIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	if err := os.WriteFile(path, []byte("3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := readIndex(path); got != 3 {
		t.Errorf("readIndex() = %d, want 3", got)
	}
	if got := readIndex(path + ".missing"); got != 0 {
		t.Errorf("readIndex(missing) = %d, want 0", got)
	}
}

func TestCstr(t *testing.T) {
	if got := cstr([]byte("uvcvideo\x00\x00\x00")); got != "uvcvideo" {
		t.Errorf("cstr() = %q", got)
	}
	if got := cstr([]byte("full")); got != "full" {
		t.Errorf("cstr() = %q", got)
	}
}

func TestProbeMissingDevice(t *testing.T) {
	if _, err := Probe(filepath.Join(t.TempDir(), "video9")); err == nil {
		t.Error("Probe() of missing node succeeded")
	}
}
