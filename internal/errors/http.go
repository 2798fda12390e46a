// Package errors maps the gateway's error taxonomy onto HTTP responses.
// Every error leaving a handler goes through RespondWithError so clients
// always see the same envelope shape.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/3leaps/issgate/internal/observability"
	"github.com/3leaps/issgate/pkg/artifacts"
	"github.com/3leaps/issgate/pkg/iss"
	"github.com/3leaps/issgate/pkg/secrets"
)

// HTTPErrorResponse is the JSON envelope returned for every error.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail carries the machine-readable code and human message.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// RespondWithError classifies err and writes the matching envelope. Internal
// details never reach the client on 5xx responses; they are logged instead.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)

	if status >= http.StatusInternalServerError {
		observability.CLILogger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	WriteError(w, r, status, code, message, nil)
}

// WriteError writes an explicit envelope without classification.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	resp := HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	if r != nil {
		resp.Error.RequestID = middleware.GetReqID(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func classify(err error) (status int, code, message string) {
	switch {
	case iss.IsValidation(err):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error()
	case iss.IsNotFound(err) || errors.Is(err, artifacts.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case iss.IsAuthentication(err) || errors.Is(err, artifacts.ErrAuthentication) || errors.Is(err, secrets.ErrAuthentication):
		return http.StatusUnauthorized, "UNAUTHORIZED", "authentication with the scheduler failed"
	case errors.Is(err, artifacts.ErrAccessDenied):
		return http.StatusForbidden, "FORBIDDEN", "access to the requested file was denied"
	case iss.IsRateLimited(err):
		return http.StatusTooManyRequests, "RATE_LIMITED", "the scheduler is rate limiting requests, retry later"
	case iss.IsTimeout(err):
		return http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "the scheduler did not respond in time"
	case iss.IsConfiguration(err):
		return http.StatusInternalServerError, "INTERNAL_ERROR", "the gateway is misconfigured"
	case errors.Is(err, artifacts.ErrBadArchive):
		return http.StatusBadGateway, "UPSTREAM_ERROR", "the scheduler returned a corrupt archive"
	case isUpstream(err):
		return http.StatusBadGateway, "UPSTREAM_ERROR", "the scheduler returned an unexpected response"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

func isUpstream(err error) bool {
	var ce *iss.ClientError
	if errors.As(err, &ce) {
		return true
	}
	var se *artifacts.ServiceError
	return errors.As(err, &se)
}
