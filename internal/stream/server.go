// Package stream serves the camera as an HTTP multipart MJPEG stream.
package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/smazurov/mjpegnode/internal/frames"
	"github.com/smazurov/mjpegnode/internal/metrics"
)

const (
	// Path is the only route the stream listener answers.
	Path = "/stream"
	// Boundary separates parts of the multipart body.
	Boundary = "FRAME"
)

// Server writes every frame published on the broadcaster to each connected
// client. There is no viewer limit; a slow client skips frames.
type Server struct {
	frames     *frames.Broadcaster
	logger     *slog.Logger
	mux        *http.ServeMux
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a stream server reading from b.
func NewServer(b *frames.Broadcaster, logger *slog.Logger) *Server {
	s := &Server{
		frames: b,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET "+Path, s.serveStream)
	s.mux.HandleFunc("/", http.NotFound)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen binds addr. Call Serve afterwards; the split lets the caller
// report readiness once the port is actually open.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.mux}
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until Stop. It returns nil after a clean stop.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln, srv := s.listener, s.httpServer
	s.mu.Unlock()
	if ln == nil {
		return errors.New("stream server: Listen not called")
	}

	s.logger.Info("Serving MJPEG stream", "addr", ln.Addr().String(), "path", Path)
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start is Listen followed by Serve in the background.
func (s *Server) Start(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	go func() {
		if err := s.Serve(); err != nil {
			s.logger.Error("Stream server failed", "error", err)
		}
	}()
	return nil
}

// Stop closes the listener and every open stream.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping stream server")
	// Streams never finish on their own, so a graceful Shutdown would only
	// wait for its deadline.
	return srv.Close()
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the headers go out so a client that saw them cannot
	// miss the next frame.
	sub := s.frames.Subscribe()

	h := w.Header()
	h.Set("Age", "0")
	h.Set("Cache-Control", "no-cache, private")
	h.Set("Pragma", "no-cache")
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		s.logger.Debug("Client gone before first frame", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	metrics.IncViewers()
	defer metrics.DecViewers()

	logger := s.logger.With("remote_addr", r.RemoteAddr)
	logger.Info("Stream client connected")

	sent := 0
	for {
		frame, err := sub.Next(r.Context())
		if err != nil {
			logger.Debug("Stream client disconnected", "frames", sent, "reason", err)
			return
		}

		if err := writePart(w, frame.Data); err != nil {
			logger.Debug("Stream client disconnected", "frames", sent, "error", err)
			return
		}
		if err := rc.Flush(); err != nil {
			logger.Debug("Stream client disconnected", "frames", sent, "error", err)
			return
		}
		sent++
		metrics.AddFrameSent()
	}
}

// writePart writes one multipart part: boundary line, headers, blank line,
// the JPEG and a trailing CRLF.
func writePart(w io.Writer, data []byte) error {
	header := "--" + Boundary + "\r\n" +
		"Content-Type: image/jpeg\r\n" +
		"Content-Length: " + strconv.Itoa(len(data)) + "\r\n\r\n"
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
