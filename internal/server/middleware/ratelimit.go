package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit bounds the inbound request rate for this instance. Requests
// over the limit get a 429 with the standard envelope.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeErrorResponse(w, r, http.StatusTooManyRequests,
					"RATE_LIMITED", "request rate limit exceeded, retry later", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
