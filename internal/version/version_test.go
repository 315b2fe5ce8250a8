package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version || info.GoVersion != runtime.Version() {
		t.Errorf("Get() = %+v", info)
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "1.2.0",
		GitCommit: "0123456789abcdef",
		BuildDate: "2025-01-27",
		GoVersion: "go1.24.11",
		Platform:  "linux/arm64",
	}
	want := "mjpegnode 1.2.0 (0123456, built 2025-01-27, go1.24.11 linux/arm64)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if s := (Info{GitCommit: "abc"}).String(); !strings.Contains(s, "(abc,") {
		t.Errorf("short commit mangled: %q", s)
	}
}
