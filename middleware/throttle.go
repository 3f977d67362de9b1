package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/otpAuth/ratelimit"
	"go.uber.org/zap"
)

// KeyFunc extracts the limiter identifier from a request. An empty key skips
// the limiter.
type KeyFunc func(*http.Request) string

// ByClientIP keys requests on ClientIP.
func ByClientIP(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		return ClientIP(r, trustProxy)
	}
}

// Throttle rejects requests beyond the window's limit with 429 and a
// Retry-After header. Counter failures are logged and the request passes.
func Throttle(window *ratelimit.Window, key KeyFunc, now func() time.Time, logger *zap.Logger) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := key(r)
			if window == nil || id == "" {
				next.ServeHTTP(w, r)
				return
			}

			d, err := window.Allow(r.Context(), id)
			if err != nil {
				logger.Warn("throttle counter unavailable", zap.String("window", window.Name()), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter(now()).Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
