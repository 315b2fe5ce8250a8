package v4l2

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		format uint32
		want   string
	}{
		{0x56595559, "YUYV"},
		{0x47504A4D, "MJPG"},
		{0x34363248, "H264"},
		{0x3231564E, "NV12"},
		{0x01020304, "\x04\x03\x02\x01"},
	}

	for _, tt := range tests {
		if got := FormatFourCC(tt.format); got != tt.want {
			t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFourCCForInputFormat(t *testing.T) {
	for name, want := range map[string]string{"mjpeg": "MJPG", "YUYV422": "YUYV", "nv12": "NV12"} {
		if got, ok := FourCCForInputFormat(name); !ok || got != want {
			t.Errorf("FourCCForInputFormat(%q) = %q, %v", name, got, ok)
		}
	}
	if _, ok := FourCCForInputFormat("bayer_rggb8"); ok {
		t.Error("unknown format mapped")
	}
}

func webcam() Capabilities {
	return Capabilities{
		Device: Device{Path: "/dev/video0", Name: "USB Camera"},
		Formats: []Format{
			{FourCC: "MJPG", Modes: []Mode{
				{Size: Size{1280, 720}, Rates: []float64{30, 15}},
				{Size: Size{640, 480}, Rates: []float64{30, 15}},
			}},
			{FourCC: "YUYV", Modes: []Mode{
				{Size: Size{640, 480}, Rates: []float64{29.97}},
			}},
		},
	}
}

func TestSupports(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		w, h    int
		fps     int
		wantErr string
	}{
		{"any format", "", 1280, 720, 30, ""},
		{"mjpeg", "mjpeg", 640, 480, 15, ""},
		{"rounded rate", "yuyv422", 640, 480, 30, ""},
		{"size only in other format", "yuyv422", 1280, 720, 30, "cannot capture 1280x720"},
		{"unsupported rate", "mjpeg", 640, 480, 60, "at 60 fps"},
		{"unsupported size", "", 1920, 1080, 30, "cannot capture"},
		{"format not offered", "h264", 640, 480, 30, "does not offer h264"},
		{"unknown format", "bayer", 640, 480, 30, "unknown input format"},
	}

	caps := webcam()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := caps.Supports(tt.format, tt.w, tt.h, tt.fps)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Supports() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Supports() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSupportsWithoutEnumeration(t *testing.T) {
	caps := Capabilities{Formats: []Format{{FourCC: "MJPG"}}}
	if err := caps.Supports("mjpeg", 4000, 3000, 7); err != nil {
		t.Errorf("format without sizes rejected mode: %v", err)
	}

	caps = Capabilities{Formats: []Format{{FourCC: "MJPG", Modes: []Mode{{Size: Size{640, 480}}}}}}
	if err := caps.Supports("", 640, 480, 7); err != nil {
		t.Errorf("size without rates rejected rate: %v", err)
	}

	if err := (Capabilities{}).Supports("", 640, 480, 30); err == nil {
		t.Error("device without formats accepted")
	}
}

func TestSizesWithin(t *testing.T) {
	got := sizesWithin(320, 1280, 240, 720)
	want := []Size{{320, 240}, {640, 480}, {800, 600}, {1024, 768}, {1280, 720}}
	if !slices.Equal(got, want) {
		t.Errorf("sizesWithin() = %v, want %v", got, want)
	}
}

func TestRatesWithin(t *testing.T) {
	// Intervals from 1/30 s (fastest) to 1/10 s (slowest).
	got := ratesWithin(1, 30, 1, 10)
	want := []float64{30, 25, 20, 15, 10}
	if !slices.Equal(got, want) {
		t.Errorf("ratesWithin() = %v, want %v", got, want)
	}
	if fps(0, 30) != 0 {
		t.Error("zero numerator should give 0 fps")
	}
	if fps(1001, 30000) < 29.9 {
		t.Errorf("fps(1001, 30000) = %v", fps(1001, 30000))
	}
}

func TestResolve(t *testing.T) {
	byID, byPath := t.TempDir(), t.TempDir()
	for _, p := range []string{filepath.Join(byID, "usb-cam-video-index0"), filepath.Join(byPath, "platform-csi-video-index0")} {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		device  string
		want    string
		wantErr bool
	}{
		{"/dev/video0", "/dev/video0", false},
		{"usb-cam-video-index0", filepath.Join(byID, "usb-cam-video-index0"), false},
		{"platform-csi-video-index0", filepath.Join(byPath, "platform-csi-video-index0"), false},
		{"usb-missing-video-index0", "", true},
	}
	for _, tt := range tests {
		got, err := resolve(tt.device, byID, byPath)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("resolve(%q) = %q, %v; want %q", tt.device, got, err, tt.want)
		}
	}
}
