package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// NewHTTPLoggingMiddleware logs each request at a level chosen by status:
// preflights at DEBUG, 5xx at ERROR, 4xx at WARN, the rest at INFO. SSE
// requests are logged when the feed closes.
func NewHTTPLoggingMiddleware(logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		method := ctx.Method()

		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", ctx.URL().Path),
			slog.String("remote_addr", ctx.RemoteAddr()),
		}
		if ua := ctx.Header("User-Agent"); ua != "" {
			attrs = append(attrs, slog.String("user_agent", ua))
		}

		next(ctx)

		status := ctx.Status()
		attrs = append(attrs,
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		)

		level := slog.LevelInfo
		switch {
		case method == http.MethodOptions:
			level = slog.LevelDebug
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
	}
}
