// Package middleware provides the HTTP middleware chain for the gateway
// server: request IDs, panic recovery, request logging, inbound auth and
// rate limiting.
package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader is the inbound and outbound correlation header.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to the context and echoes it in the
// response. An inbound X-Request-ID is honored; otherwise a UUID is
// generated. The ID is stored under chi's request ID key so chained
// handlers can read it with chi's GetReqID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by RequestID, or empty.
func GetRequestID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}
