package ffmpeg

import "fmt"

// Params represents everything needed to generate the MJPEG capture command.
type Params struct {
	// Input
	DevicePath  string // /dev/video0
	InputFormat string // mjpeg, yuyv422; empty lets v4l2 pick
	Width       int
	Height      int
	FPS         int
	TestSource  bool   // lavfi test pattern instead of the device
	OverlayText string // drawn over the test pattern

	// Encoder
	Quality int // mjpeg -q:v, 2 (best) to 31

	// Monitoring
	ProgressSocket string // /run/mjpegnode/ffmpeg.sock

	// Behavior flags applied before the input
	Options []OptionType
}

// Resolution formats the frame size as WxH.
func (p *Params) Resolution() string {
	if p.Width <= 0 || p.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}
