//go:build !linux

package v4l2

// ErrNotCapture is returned by Probe for nodes that cannot capture video.
var ErrNotCapture = ErrUnsupported

// List returns no devices outside Linux.
func List() ([]Device, error) {
	return nil, ErrUnsupported
}

// Probe always fails outside Linux.
func Probe(string) (Capabilities, error) {
	return Capabilities{}, ErrUnsupported
}
