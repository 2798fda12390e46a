package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/issgate/internal/errors"
	"github.com/3leaps/issgate/internal/server/handlers"
	"github.com/3leaps/issgate/pkg/iss"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port)
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_Handler(t *testing.T) {
	srv := New("127.0.0.1", 8080)
	handler := srv.Handler()
	assert.NotNil(t, handler)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	// POST to a GET-only endpoint should return 405
	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&body)
	require.NoError(t, err)

	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	// Initialize health manager for health endpoint tests
	handlers.InitHealthManager("test")

	srv := New("127.0.0.1", 0)

	endpoints := []struct {
		method string
		path   string
		want   int // expected status (200 or other success code)
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/health/startup", http.StatusOK},
		{"GET", "/version", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			// Just verify route is registered and returns expected status
			assert.Equal(t, ep.want, rec.Code, "endpoint %s %s should return %d", ep.method, ep.path, ep.want)
		})
	}
}

type stubScheduler struct {
	page *iss.JobPage
}

func (s stubScheduler) ListJobs(ctx context.Context, filters iss.JobFilters) (*iss.JobPage, error) {
	return s.page, nil
}

func (s stubScheduler) GetJob(ctx context.Context, jobID string) (*iss.JobDetail, error) {
	return &iss.JobDetail{JobSummary: iss.JobSummary{ID: jobID, Name: "job", Type: iss.JobTypeIWPS}}, nil
}

func (s stubScheduler) ListPlatforms(ctx context.Context, filters iss.PlatformFilters) ([]iss.Platform, error) {
	return nil, nil
}

func (s stubScheduler) GetPlatform(ctx context.Context, platformID string) (*iss.Platform, error) {
	return &iss.Platform{ID: platformID}, nil
}

func (s stubScheduler) ListInstances(ctx context.Context, filters iss.InstanceFilters) ([]iss.Instance, error) {
	return nil, nil
}

func (s stubScheduler) GetInstance(ctx context.Context, instanceID string) (*iss.Instance, error) {
	return &iss.Instance{ID: instanceID}, nil
}

func TestServer_APIRoutesMounted(t *testing.T) {
	scheduler := stubScheduler{page: &iss.JobPage{Jobs: []iss.JobSummary{}, Count: 0}}

	srv := New("127.0.0.1", 0,
		WithJobs(handlers.NewJobsHandler(scheduler, nil)),
		WithPlatforms(handlers.NewPlatformsHandler(scheduler, nil)),
		WithInstances(handlers.NewInstancesHandler(scheduler, nil)),
	)

	endpoints := []string{
		"/api/v1/jobs",
		"/api/v1/jobs/stats",
		"/api/v1/jobs/abc123",
		"/api/v1/platforms",
		"/api/v1/platforms/p1",
		"/api/v1/instances",
		"/api/v1/instances/i1",
	}

	for _, path := range endpoints {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestServer_APIRoutesNotMountedWithoutHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AuthTokenGatesAPI(t *testing.T) {
	scheduler := stubScheduler{page: &iss.JobPage{}}
	srv := New("127.0.0.1", 0,
		WithJobs(handlers.NewJobsHandler(scheduler, nil)),
		WithAuthToken("secret"),
	)

	t.Run("no token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		handlers.InitHealthManager("test")
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("valid token accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
