//go:build linux

package v4l2

import "unsafe"

// The structures below only hold 32-bit fields, so their layout is the same
// on arm, arm64 and amd64. A size mismatch with the kernel headers fails
// the build.
var (
	_ [104]byte = [unsafe.Sizeof(capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(fmtDesc{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(frmSizeEnum{})]byte{}
	_ [52]byte  = [unsafe.Sizeof(frmIvalEnum{})]byte{}
)

const (
	vidiocQuerycap           = 0x80685600
	vidiocEnumFmt            = 0xc0405602
	vidiocEnumFramesizes     = 0xc02c564a
	vidiocEnumFrameintervals = 0xc034564b
)

const (
	capVideoCapture = 0x00000001
	capDeviceCaps   = 0x80000000

	fmtFlagEmulated = 0x0002

	bufTypeVideoCapture = 1

	frmTypeDiscrete = 1
)

type capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

// effective returns the capabilities of this node rather than the whole
// physical device.
func (c *capability) effective() uint32 {
	if c.capabilities&capDeviceCaps != 0 {
		return c.deviceCaps
	}
	return c.capabilities
}

type fmtDesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelFormat uint32
	mbusCode    uint32
	reserved    [3]uint32
}

// frmSizeEnum holds a union: one discrete size, or a stepwise range of six
// fields starting at the same offset.
type frmSizeEnum struct {
	index       uint32
	pixelFormat uint32
	typ         uint32
	union       [6]uint32
	reserved    [2]uint32
}

// frmIvalEnum holds a union: one discrete interval, or a stepwise range of
// min, max and step fractions.
type frmIvalEnum struct {
	index       uint32
	pixelFormat uint32
	width       uint32
	height      uint32
	typ         uint32
	union       [6]uint32
	reserved    [2]uint32
}
