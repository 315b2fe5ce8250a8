package capture

import "bytes"

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// DefaultMaxFrameSize bounds how much the splitter buffers while looking for
// the end of a frame.
const DefaultMaxFrameSize = 8 << 20

// JPEGSplitter cuts a raw MJPEG byte stream into individual JPEG images at
// the SOI and EOI markers. Bytes outside a SOI..EOI span are discarded.
//
// Encoders that embed thumbnails (EXIF APP1) would produce nested markers;
// ffmpeg's mjpeg encoder does not.
type JPEGSplitter struct {
	emit    func([]byte)
	buf     []byte
	scanned int // bytes after SOI already searched for EOI
	max     int
	dropped int
}

// NewJPEGSplitter creates a splitter calling emit once per complete frame.
// Each frame passed to emit is a fresh slice owned by the receiver.
func NewJPEGSplitter(emit func([]byte)) *JPEGSplitter {
	return &JPEGSplitter{emit: emit, max: DefaultMaxFrameSize}
}

// Write implements io.Writer. It never fails.
func (s *JPEGSplitter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)

	for {
		start := bytes.Index(s.buf, jpegSOI)
		if start < 0 {
			// Keep a trailing 0xFF that may begin the next SOI.
			if n := len(s.buf); n > 0 && s.buf[n-1] == 0xFF {
				s.buf = append(s.buf[:0], 0xFF)
			} else {
				s.buf = s.buf[:0]
			}
			s.scanned = 0
			break
		}
		if start > 0 {
			s.buf = s.buf[start:]
			s.scanned = 0
		}

		from := 2 + s.scanned
		end := bytes.Index(s.buf[from:], jpegEOI)
		if end < 0 {
			// Next search resumes one byte early in case 0xFF is the last byte.
			s.scanned = max(len(s.buf)-2-1, 0)
			if len(s.buf) > s.max {
				s.dropped++
				s.buf = s.buf[:0]
				s.scanned = 0
			}
			break
		}

		frameLen := from + end + 2
		frame := make([]byte, frameLen)
		copy(frame, s.buf[:frameLen])
		s.buf = s.buf[frameLen:]
		s.scanned = 0
		s.emit(frame)
	}

	// Compact so the backing array does not grow without bound.
	if cap(s.buf) > 2*s.max {
		s.buf = append([]byte(nil), s.buf...)
	}
	return len(p), nil
}

// Dropped returns how many oversized partial frames were discarded.
func (s *JPEGSplitter) Dropped() int {
	return s.dropped
}
