package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"
)

// LoggingMiddleware returns a middleware that logs HTTP requests. The request
// context carries the server logger with the request ID attached.
func LoggingMiddleware(ctx context.Context) func(next http.Handler) http.Handler {
	base := ctxlog.From(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With("request_id", middleware.GetReqID(r.Context()))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctxlog.With(r.Context(), logger)))
		})
	}
}

// writeJSON writes v as a JSON response
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.From(ctx).Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func writeError(ctx context.Context, w http.ResponseWriter, err error, status int) {
	writeJSON(ctx, w, status, map[string]string{
		"error": err.Error(),
	})
}
