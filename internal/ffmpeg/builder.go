package ffmpeg

import (
	"fmt"
	"strings"
)

// DefaultQuality is the mjpeg quantizer used when Params.Quality is unset.
const DefaultQuality = 5

// Base returns the ffmpeg invocation shared by every command. The level+info
// loglevel prefixes each stderr line with its level so ParseLogLevel can map
// it back onto our logger.
func Base() string {
	return "ffmpeg -hide_banner -nostats -loglevel level+info"
}

// BuildMJPEGCommand builds an ffmpeg command that captures from the camera
// (or a test pattern) and writes a raw MJPEG stream, one JPEG per frame, to
// stdout.
func BuildMJPEGCommand(p *Params) string {
	var cmd strings.Builder

	cmd.WriteString(Base())

	if p.TestSource {
		// -re keeps lavfi at native frame rate
		cmd.WriteString(" -re -f lavfi")

		size := p.Resolution()
		if size == "" {
			size = "640x480"
		}
		rate := p.FPS
		if rate <= 0 {
			rate = 30
		}
		cmd.WriteString(fmt.Sprintf(" -i \"testsrc2=size=%s:rate=%d\"", size, rate))
	} else {
		cmd.WriteString(" -f v4l2")
		ApplyOptionsToCommand(p.Options, &cmd)

		if p.InputFormat != "" {
			cmd.WriteString(" -input_format " + p.InputFormat)
		}
		if size := p.Resolution(); size != "" {
			cmd.WriteString(" -video_size " + size)
		}
		if p.FPS > 0 {
			cmd.WriteString(fmt.Sprintf(" -framerate %d", p.FPS))
		}
		cmd.WriteString(" -i " + p.DevicePath)
	}

	cmd.WriteString(" -an")

	if p.TestSource && p.OverlayText != "" {
		cmd.WriteString(fmt.Sprintf(" -vf \"drawtext=text='%s':x=(w-text_w)/2:y=(h-text_h)/2:fontsize=48:fontcolor=white:box=1:boxcolor=black@0.5:boxborderw=5\"", p.OverlayText))
	}

	q := p.Quality
	if q <= 0 {
		q = DefaultQuality
	}
	cmd.WriteString(fmt.Sprintf(" -c:v mjpeg -q:v %d -pix_fmt yuvj420p", q))

	if p.ProgressSocket != "" {
		cmd.WriteString(" -progress unix://" + p.ProgressSocket)
	}

	cmd.WriteString(" -flush_packets 1 -f mjpeg pipe:1")

	return cmd.String()
}
