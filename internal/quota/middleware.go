package quota

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// KeyFunc derives the rate limit key for a request: the user id for
// authenticated calls, the client address otherwise.
type KeyFunc func(r *http.Request) string

// ClientKey falls back to the remote address when no user is attached.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware returns middleware enforcing rpm requests per minute per
// caller. rpm=0 disables limiting.
func Middleware(limiter *RateLimiter, rpm int, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !limiter.Allow(k, rpm) {
				metrics.RecordRateLimitHit()
				retryAfter := limiter.RetryAfter(k, rpm)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(protocol.ErrorResponse{
					Error: "rate limit exceeded",
					Code:  http.StatusTooManyRequests,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
