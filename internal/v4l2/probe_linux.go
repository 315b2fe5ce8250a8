//go:build linux

package v4l2

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"unsafe"
)

const (
	sysfsClass = "/sys/class/video4linux"
	byIDDir    = "/dev/v4l/by-id"
)

// ErrNotCapture is returned by Probe for nodes that cannot capture video,
// such as metadata or output nodes.
var ErrNotCapture = errors.New("not a video capture device")

// List returns every video capture node, sorted by path.
func List() ([]Device, error) {
	return list(sysfsClass, "/dev", byIDDir)
}

func list(class, devDir, idDir string) ([]Device, error) {
	entries, err := os.ReadDir(class)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", class, err)
	}

	var devices []Device
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		dev, err := queryDevice(filepath.Join(devDir, name))
		if err != nil {
			continue
		}
		index := readIndex(filepath.Join(class, name, "index"))
		dev.ID = stableID(idDir, name, index, dev.BusInfo)
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// Probe opens path and enumerates its formats, sizes and rates.
func Probe(path string) (Capabilities, error) {
	dev, err := queryDevice(path)
	if err != nil {
		return Capabilities{}, err
	}
	caps := Capabilities{Device: dev}

	fd, err := open(path)
	if err != nil {
		return caps, err
	}
	defer syscall.Close(fd)

	formats, err := enumFormats(fd)
	if err != nil {
		return caps, err
	}
	for i := range formats {
		sizes, err := enumSizes(fd, formats[i].pixelFormat)
		if err != nil {
			return caps, err
		}
		for _, s := range sizes {
			rates, err := enumRates(fd, formats[i].pixelFormat, s)
			if err != nil {
				return caps, err
			}
			formats[i].Modes = append(formats[i].Modes, Mode{Size: s, Rates: rates})
		}
	}
	caps.Formats = formats
	return caps, nil
}

func queryDevice(path string) (Device, error) {
	fd, err := open(path)
	if err != nil {
		return Device{}, err
	}
	defer syscall.Close(fd)

	var c capability
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return Device{}, fmt.Errorf("query %s: %w", path, err)
	}
	if c.effective()&capVideoCapture == 0 {
		return Device{}, fmt.Errorf("%s: %w", path, ErrNotCapture)
	}
	return Device{
		Path:    path,
		Name:    cstr(c.card[:]),
		Driver:  cstr(c.driver[:]),
		BusInfo: cstr(c.busInfo[:]),
	}, nil
}

func enumFormats(fd int) ([]Format, error) {
	var formats []Format
	for i := uint32(0); ; i++ {
		desc := fmtDesc{index: i, typ: bufTypeVideoCapture}
		if err := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&desc)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				return formats, nil
			}
			return nil, fmt.Errorf("enumerate format %d: %w", i, err)
		}
		formats = append(formats, Format{
			FourCC:      FormatFourCC(desc.pixelFormat),
			Description: cstr(desc.description[:]),
			Emulated:    desc.flags&fmtFlagEmulated != 0,
			pixelFormat: desc.pixelFormat,
		})
	}
}

func enumSizes(fd int, pixelFormat uint32) ([]Size, error) {
	var sizes []Size
	for i := uint32(0); ; i++ {
		e := frmSizeEnum{index: i, pixelFormat: pixelFormat}
		if err := ioctl(fd, vidiocEnumFramesizes, unsafe.Pointer(&e)); err != nil {
			if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
				return sizes, nil
			}
			return nil, fmt.Errorf("enumerate frame size %d: %w", i, err)
		}
		if e.typ != frmTypeDiscrete {
			// min_width, max_width, step_width, min_height, max_height, step_height
			return sizesWithin(e.union[0], e.union[1], e.union[3], e.union[4]), nil
		}
		sizes = append(sizes, Size{Width: e.union[0], Height: e.union[1]})
	}
}

func enumRates(fd int, pixelFormat uint32, s Size) ([]float64, error) {
	var rates []float64
	for i := uint32(0); ; i++ {
		e := frmIvalEnum{index: i, pixelFormat: pixelFormat, width: s.Width, height: s.Height}
		if err := ioctl(fd, vidiocEnumFrameintervals, unsafe.Pointer(&e)); err != nil {
			if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
				return rates, nil
			}
			return nil, fmt.Errorf("enumerate frame interval %d: %w", i, err)
		}
		if e.typ != frmTypeDiscrete {
			// min {num, den}, max {num, den}, step {num, den}
			return ratesWithin(e.union[0], e.union[1], e.union[2], e.union[3]), nil
		}
		rates = append(rates, fps(e.union[0], e.union[1]))
	}
}

// stableID prefers the udev by-id link for the node and otherwise builds
// an id from the bus info.
func stableID(idDir, node string, index int, busInfo string) string {
	suffix := fmt.Sprintf("-video-index%d", index)
	if entries, err := os.ReadDir(idDir); err == nil {
		for _, entry := range entries {
			if !strings.HasSuffix(entry.Name(), suffix) {
				continue
			}
			target, err := os.Readlink(filepath.Join(idDir, entry.Name()))
			if err == nil && filepath.Base(target) == node {
				return entry.Name()
			}
		}
	}
	if strings.HasPrefix(busInfo, "usb-") {
		return busInfo + suffix
	}
	return "platform-" + busInfo + suffix
}

func readIndex(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return n
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func open(path string) (int, error) {
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}
