package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/getmockd/htmlshot/pkg/httputil"
)

// MiddlewareOption configures the rate limiting middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	onLimited func(r *http.Request, ip string)
}

// WithOnLimited registers a callback invoked for every refused request.
func WithOnLimited(fn func(r *http.Request, ip string)) MiddlewareOption {
	return func(c *middlewareConfig) { c.onLimited = fn }
}

// Middleware returns an HTTP middleware that enforces per-IP rate limiting.
// A nil limiter passes every request through.
func Middleware(limiter *PerIPLimiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{}
	for _, o := range opts {
		o(cfg)
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := limiter.ClientIP(r)
			allowed, remaining, reset := limiter.Allow(ip)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Retry-After", strconv.FormatInt(reset, 10))
			if cfg.onLimited != nil {
				cfg.onLimited(r, ip)
			}
			httputil.WriteTooManyRequests(w, "Too many requests. Please slow down.")
		})
	}
}
