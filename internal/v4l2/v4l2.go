// Package v4l2 queries Video4Linux2 capture devices without cgo: which
// devices exist, which pixel formats they offer and at what sizes and
// rates. The daemon uses it to check the configured camera mode before
// ffmpeg opens the device.
package v4l2

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupported is returned on platforms without V4L2.
var ErrUnsupported = errors.New("v4l2 not supported on this platform")

// Device is one video capture node.
type Device struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Driver  string `json:"driver"`
	BusInfo string `json:"bus_info"`
	// ID is stable across reboots: the /dev/v4l/by-id link name, or one
	// synthesized from the bus info.
	ID string `json:"id"`
}

// Size is a frame size in pixels.
type Size struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Mode is one frame size with the rates the device offers for it.
type Mode struct {
	Size
	Rates []float64 `json:"rates,omitempty"`
}

// Format is a pixel format with its frame sizes.
type Format struct {
	FourCC      string `json:"fourcc"`
	Description string `json:"description"`
	// Emulated formats are converted in software by libv4l.
	Emulated bool   `json:"emulated,omitempty"`
	Modes    []Mode `json:"modes"`

	pixelFormat uint32
}

// Capabilities is everything Probe learned about a device.
type Capabilities struct {
	Device
	Formats []Format `json:"formats"`
}

// inputFormats maps ffmpeg's v4l2 -input_format names to fourcc codes.
var inputFormats = map[string]string{
	"mjpeg":   "MJPG",
	"yuyv422": "YUYV",
	"nv12":    "NV12",
	"h264":    "H264",
	"hevc":    "HEVC",
	"rgb24":   "RGB3",
}

// FourCCForInputFormat returns the fourcc code for an ffmpeg input format
// name. The second result is false for names it does not know.
func FourCCForInputFormat(name string) (string, bool) {
	code, ok := inputFormats[strings.ToLower(name)]
	return code, ok
}

// FormatFourCC converts a little-endian pixel format code to its four
// character name.
func FormatFourCC(format uint32) string {
	return string([]byte{
		byte(format),
		byte(format >> 8),
		byte(format >> 16),
		byte(format >> 24),
	})
}

// Supports reports whether the device can capture width x height at fps.
// inputFormat restricts the check to one ffmpeg input format; empty
// accepts any. A format that lists no sizes, or a size that lists no
// rates, is treated as accepting anything.
func (c Capabilities) Supports(inputFormat string, width, height, fps int) error {
	formats := c.Formats
	if inputFormat != "" {
		code, ok := FourCCForInputFormat(inputFormat)
		if !ok {
			return fmt.Errorf("unknown input format %q", inputFormat)
		}
		i := slices.IndexFunc(formats, func(f Format) bool { return f.FourCC == code })
		if i < 0 {
			return fmt.Errorf("%s does not offer %s (%s)", c.Path, inputFormat, code)
		}
		formats = formats[i : i+1]
	}
	if len(formats) == 0 {
		return fmt.Errorf("%s offers no capture formats", c.Path)
	}

	want := Size{Width: uint32(width), Height: uint32(height)}
	for _, f := range formats {
		if len(f.Modes) == 0 {
			return nil
		}
		for _, m := range f.Modes {
			if m.Size != want {
				continue
			}
			if len(m.Rates) == 0 || slices.ContainsFunc(m.Rates, func(r float64) bool { return int(r+0.5) == fps }) {
				return nil
			}
		}
	}
	return fmt.Errorf("%s cannot capture %s at %d fps", c.Path, want, fps)
}

// commonSizes are offered for devices that report a continuous or
// stepwise size range instead of discrete sizes.
var commonSizes = []Size{
	{320, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 960},
	{1920, 1080},
	{2560, 1440},
	{3840, 2160},
}

// commonRates are offered for continuous or stepwise interval ranges.
var commonRates = []float64{60, 50, 30, 25, 20, 15, 10, 5}

func sizesWithin(minW, maxW, minH, maxH uint32) []Size {
	var sizes []Size
	for _, s := range commonSizes {
		if s.Width >= minW && s.Width <= maxW && s.Height >= minH && s.Height <= maxH {
			sizes = append(sizes, s)
		}
	}
	return sizes
}

// ratesWithin returns the common rates between the interval bounds, given
// as fractions of a second.
func ratesWithin(minNum, minDen, maxNum, maxDen uint32) []float64 {
	fastest, slowest := fps(minNum, minDen), fps(maxNum, maxDen)
	var rates []float64
	for _, r := range commonRates {
		if r <= fastest && r >= slowest {
			rates = append(rates, r)
		}
	}
	return rates
}

// fps converts a frame interval to frames per second.
func fps(num, den uint32) float64 {
	if num == 0 {
		return 0
	}
	return float64(den) / float64(num)
}

// Resolve turns a configured device into a path ffmpeg can open. Paths
// under /dev are returned as is; anything else is looked up as a stable
// id in /dev/v4l/by-id and then /dev/v4l/by-path.
func Resolve(device string) (string, error) {
	return resolve(device, "/dev/v4l/by-id", "/dev/v4l/by-path")
}

func resolve(device string, dirs ...string) (string, error) {
	if strings.HasPrefix(device, "/dev/") {
		return device, nil
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, device)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no device node for id %q", device)
}
