package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// responseWriter and accessLog are adapted from the pack's chi access-log
// middleware (Leavend-umkm_saas/server/internal/middleware/logger.go): one
// structured one-line-per-request log, distinct from the slog JSON lines the
// rest of the service emits for lifecycle events.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func accessLog(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
