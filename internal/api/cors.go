package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig allows any origin to read and toggle the camera, so a
// dashboard on another host can drive the node.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Authorization", "Accept", "Origin", "Last-Event-ID"},
		MaxAge:       86400,
	}
}

// headers returns the precomputed response headers.
func (c CORSConfig) headers() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  c.AllowOrigin,
		"Access-Control-Allow-Methods": strings.Join(c.AllowMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(c.AllowHeaders, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(c.MaxAge),
	}
}

// NewCORSMiddleware creates CORS middleware with the given configuration
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	headers := config.headers()

	return func(ctx huma.Context, next func(huma.Context)) {
		for k, v := range headers {
			ctx.SetHeader(k, v)
		}

		// Handle preflight OPTIONS requests
		if ctx.Method() == http.MethodOptions {
			// For OPTIONS, we just return 204 No Content with headers
			ctx.SetStatus(http.StatusNoContent)
			return
		}

		// Continue to next middleware/handler
		next(ctx)
	}
}

// AddCORSHandler adds a CORS preflight handler to the mux for OPTIONS requests
// This is needed because Huma middleware doesn't intercept OPTIONS before routing
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	headers := config.headers()

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
