package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lorrc/support-chat-gateway/internal/infrastructure/logging"
)

// wrap captures the status and size of a response. It keeps Flusher and
// Hijacker working, which the /ws upgrade needs.
func wrap(w http.ResponseWriter, r *http.Request) chimw.WrapResponseWriter {
	return chimw.NewWrapResponseWriter(w, r.ProtoMajor)
}

// statusOf reports the written status, treating an implicit write as 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// RequestLogger returns a middleware that logs every served request.
// Request and user IDs come from the context via the log handler.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w, r)

			next.ServeHTTP(wrapped, r)

			logging.LogRequest(r.Context(), logger, logging.RequestEntry{
				Method:       r.Method,
				Path:         r.URL.Path,
				Status:       statusOf(wrapped),
				Duration:     time.Since(start),
				BytesWritten: int64(wrapped.BytesWritten()),
				ClientIP:     ClientIP(r),
				UserAgent:    r.UserAgent(),
			})
		})
	}
}

// RecoveryLogger returns a middleware that recovers from panics and logs them
func RecoveryLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logging.LogPanic(
						logging.LoggerFromContext(r.Context(), logger).With("method", r.Method, "path", r.URL.Path),
						err,
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal server error","code":"INTERNAL_ERROR"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
