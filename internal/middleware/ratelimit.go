// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/ratelimit"
)

// Limiter counts requests per key.
type Limiter interface {
	Allow(key string) ratelimit.Info
}

// RateLimitMiddleware limits requests per clinician, falling back to the
// client IP for unauthenticated requests. It must run after the JWT
// middleware to see the clinician.
func RateLimitMiddleware(limiter Limiter, name string, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := ClinicianID(r.Context())
			if !ok {
				key = "ip:" + ratelimit.GetClientIP(r)
			}

			info := limiter.Allow(key)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))

			if !info.Allowed {
				logger.Warn("rate limited", "limiter", name, "key", key, "retry_after", info.RetryAfter)
				if info.RetryAfter > 0 {
					w.Header().Set("Retry-After", fmt.Sprintf("%.0f", info.RetryAfter.Seconds()))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "Too many requests. Please try again later.",
					"retryAfter": int(info.RetryAfter.Seconds()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
