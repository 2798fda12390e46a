package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/issgate/pkg/artifacts"
	"github.com/3leaps/issgate/pkg/iss"
	"github.com/3leaps/issgate/pkg/secrets"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) HTTPErrorResponse {
	t.Helper()
	var resp HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRespondWithError_Classification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: limit must be a number", iss.ErrValidation), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"scheduler not found", fmt.Errorf("job: %w", iss.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"file not found", fmt.Errorf("file: %w", artifacts.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"scheduler auth", fmt.Errorf("%w", iss.ErrAuthentication), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"file auth", &artifacts.ServiceError{Op: "ListFiles", Err: artifacts.ErrAuthentication}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"credential store auth", fmt.Errorf("%w: secret store error ResourceNotFoundException", secrets.ErrAuthentication), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"access denied", &artifacts.ServiceError{Op: "DownloadFile", Err: artifacts.ErrAccessDenied}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", fmt.Errorf("%w", iss.ErrRateLimited), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"timeout", fmt.Errorf("%w", iss.ErrTimeout), http.StatusGatewayTimeout, "GATEWAY_TIMEOUT"},
		{"configuration", fmt.Errorf("%w", iss.ErrConfiguration), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"bad archive", fmt.Errorf("%w: not a zip", artifacts.ErrBadArchive), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"client error", &iss.ClientError{Op: "ListJobs", Status: 500}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"service error", &artifacts.ServiceError{Op: "ListFiles", Status: 500, Err: stderrors.New("boom")}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unknown", stderrors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
			RespondWithError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			resp := decodeEnvelope(t, rec)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestRespondWithError_NoInternalDetailLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
	RespondWithError(rec, req, stderrors.New("dial tcp 10.0.0.5:5432: connection refused"))

	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
	ctx := context.WithValue(req.Context(), chimw.RequestIDKey, "req-abc123")
	req = req.WithContext(ctx)

	WriteError(rec, req, http.StatusNotFound, "NOT_FOUND", "no such job", map[string]interface{}{"job_id": "j-1"})

	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "req-abc123", resp.Error.RequestID)
	assert.Equal(t, "no such job", resp.Error.Message)
	assert.Equal(t, "j-1", resp.Error.Details["job_id"])
}

func TestWriteError_NilRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, nil, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "not ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Empty(t, resp.Error.RequestID)
}
