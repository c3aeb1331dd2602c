package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit is used when no limit is configured
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
	}
}

// RateLimitByIP limits requests per client address as resolved by ips, so
// forwarding headers only count when they come from a trusted proxy.
func RateLimitByIP(config RateLimitConfig, ips *pkghttp.IPResolver) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		config = DefaultAuthRateLimit()
	}
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return ips.ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		}),
	)
}
