package middleware

import (
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	pkglogger "github.com/BradenHooton/taskdesk/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// SecureLogger logs one line per request. Query strings naming a sensitive
// parameter (codes, tokens, OAuth state) are redacted.
func SecureLogger(logger *slog.Logger, ips *pkghttp.IPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if r.URL.RawQuery != "" {
				if pkglogger.IsSensitiveQuery(r.URL.RawQuery) {
					path += "?[REDACTED]"
				} else {
					path += "?" + r.URL.RawQuery
				}
			}

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			logger.LogAttrs(r.Context(), level, "http_request",
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("client_ip", ips.ClientIP(r)),
			)
		})
	}
}
