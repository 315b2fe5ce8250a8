// Package capture owns the camera on/off lifecycle and the encoder that feeds
// frames to the broadcaster.
package capture

import "errors"

// ErrPipelineRunning is returned when the pipeline is reconfigured or started
// while already encoding.
var ErrPipelineRunning = errors.New("capture pipeline already running")

// ErrEncoderExited is returned when the encoder dies before its first frame.
var ErrEncoderExited = errors.New("encoder exited during startup")

// FrameSink receives complete encoded frames. Implementations must not keep
// a reference to data beyond what they document; the pipeline hands over a
// fresh slice per frame.
type FrameSink interface {
	WriteFrame(data []byte)
}

// Pipeline is the camera capability the controller drives.
type Pipeline interface {
	ConfigureVideo(width, height, frameRate int) error
	StartEncodingTo(sink FrameSink) error
	StopEncoding() error
}
