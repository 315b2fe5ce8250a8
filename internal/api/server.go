// Package api serves the optional admin API: health, state, encoder stats,
// an SSE event feed and Prometheus metrics.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/mjpegnode/internal/api/models"
	"github.com/smazurov/mjpegnode/internal/control"
	"github.com/smazurov/mjpegnode/internal/events"
	"github.com/smazurov/mjpegnode/internal/metrics"
	"github.com/smazurov/mjpegnode/internal/version"
)

// Camera reports the capture state.
type Camera interface {
	IsOn() bool
}

// Control applies transitions and reports the broker connection.
type Control interface {
	Apply(on bool) (bool, error)
	State() control.ConnectionState
}

// Encoder reports whether the capture subprocess is running.
type Encoder interface {
	Running() bool
}

// Options wires the admin API to the rest of the node.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Camera            Camera
	Control           Control
	Encoder           Encoder // optional
	EventBus          *events.Bus
	PrometheusHandler http.Handler // optional
	Logger            *slog.Logger
}

// Server represents the Huma v2 admin API server
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
	options    *Options
	logger     *slog.Logger
}

const authRealm = `Basic realm="mjpegnode"`

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded, ok := strings.CutPrefix(ctx.Header("Authorization"), "Basic ")
		if !ok {
			// EventSource cannot set headers; accept ?auth=base64(user:pass).
			encoded = ctx.Query("auth")
		}

		if !credentialsMatch(encoded, username, password) {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}
		next(ctx)
	}
}

// requireBasicAuth guards handlers mounted outside huma, such as /metrics.
func requireBasicAuth(username, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoded, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Basic ")
		if !ok {
			encoded = r.URL.Query().Get("auth")
		}
		if !credentialsMatch(encoded, username, password) {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// credentialsMatch compares in constant time; both fields are always checked.
func credentialsMatch(encoded, username, password string) bool {
	user, pass, ok := decodeCredentials(encoded)
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password))
	return userOK&passOK == 1
}

func decodeCredentials(encoded string) (string, string, bool) {
	if encoded == "" {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("mjpegnode API", version.Get().Version)
	config.Info.Description = "Administration API for a single-camera MJPEG node"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		logger:  logger,
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(NewHTTPLoggingMiddleware(logger))
	auth := opts.AuthUsername != "" && opts.AuthPassword != ""
	if auth {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		metricsHandler := opts.PrometheusHandler
		if auth {
			metricsHandler = requireBasicAuth(opts.AuthUsername, opts.AuthPassword, metricsHandler)
		}
		mux.Handle("GET /metrics", metricsHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen binds addr without serving yet.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Admin API listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve blocks until Stop.
func (s *Server) Serve() error {
	if s.httpServer == nil {
		return errors.New("api server not listening")
	}
	if err := s.httpServer.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and every open connection, SSE feeds included.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping admin API")
	return s.httpServer.Close()
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-encoder",
		Method:      http.MethodGet,
		Path:        "/api/encoder",
		Summary:     "Encoder Stats",
		Description: "Latest FFmpeg progress report",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.EncoderResponse, error) {
		data := models.EncoderData{EncoderStats: metrics.GetEncoderStats()}
		if s.options.Encoder != nil {
			data.Running = s.options.Encoder.Running()
		}
		return &models.EncoderResponse{Body: data}, nil
	})

	s.registerStateRoutes()
	s.registerSSERoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
