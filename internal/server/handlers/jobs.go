package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/issgate/pkg/insights"
	"github.com/3leaps/issgate/pkg/iss"
	"github.com/3leaps/issgate/pkg/summarize"
)

// Scheduler is the subset of the upstream client the handlers call.
type Scheduler interface {
	ListJobs(ctx context.Context, filters iss.JobFilters) (*iss.JobPage, error)
	GetJob(ctx context.Context, jobID string) (*iss.JobDetail, error)
	ListPlatforms(ctx context.Context, filters iss.PlatformFilters) ([]iss.Platform, error)
	GetPlatform(ctx context.Context, platformID string) (*iss.Platform, error)
	ListInstances(ctx context.Context, filters iss.InstanceFilters) ([]iss.Instance, error)
	GetInstance(ctx context.Context, instanceID string) (*iss.Instance, error)
}

// statsMaxPages bounds how many listing pages the stats endpoint walks.
const statsMaxPages = 10

// JobsHandler serves the /api/v1/jobs routes.
type JobsHandler struct {
	scheduler Scheduler
	logger    *zap.Logger
}

// NewJobsHandler wires the jobs routes to the upstream client.
func NewJobsHandler(scheduler Scheduler, logger *zap.Logger) *JobsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsHandler{scheduler: scheduler, logger: logger}
}

// SummarizedJobsResponse is the body for the condensed listing variant.
type SummarizedJobsResponse struct {
	Jobs              []summarize.JobDigest `json:"jobs"`
	Summary           summarize.Result      `json:"summary"`
	ContinuationToken string                `json:"continuation_token,omitempty"`
}

// List serves GET /api/v1/jobs. With summarize=true the jobs are projected
// down to their digest form under a response size budget.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := jobFiltersFromQuery(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	maxItems, err := intQuery(r, "max_items", summarize.DefaultMaxItems)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	maxChars, err := intQuery(r, "max_chars", summarize.DefaultMaxTotalChars)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	page, err := h.scheduler.ListJobs(r.Context(), filters)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if r.URL.Query().Get("summarize") != "true" {
		writeJSON(w, http.StatusOK, page)
		return
	}

	digests, result := summarize.Jobs(page.Jobs, maxItems, maxChars)
	writeJSON(w, http.StatusOK, SummarizedJobsResponse{
		Jobs:              digests,
		Summary:           result,
		ContinuationToken: page.ContinuationToken,
	})
}

// JobResponse is the body for a single-job fetch.
type JobResponse struct {
	Job *iss.JobDetail `json:"job"`
}

// Get serves GET /api/v1/jobs/{jobID}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		respondWithError(w, r, fmt.Errorf("job id is required: %w", iss.ErrValidation))
		return
	}

	job, err := h.scheduler.GetJob(r.Context(), jobID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JobResponse{Job: job})
}

// StatsResponse is the body for GET /api/v1/jobs/stats.
type StatsResponse struct {
	Summary insights.Summary `json:"summary"`

	// Sampled reports how many jobs the summary covers. The walk stops
	// after a bounded number of pages, so this can undercount very large
	// tenants.
	Sampled int `json:"sampled"`
}

// Stats serves GET /api/v1/jobs/stats. It walks up to statsMaxPages of the
// listing applying the same filters as List, then aggregates.
func (h *JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	filters, err := jobFiltersFromQuery(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	filters.Limit = iss.MaxLimit

	var jobs []iss.JobSummary
	for page := 0; page < statsMaxPages; page++ {
		result, err := h.scheduler.ListJobs(r.Context(), filters)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		jobs = append(jobs, result.Jobs...)
		if result.ContinuationToken == "" {
			break
		}
		filters.ContinuationToken = result.ContinuationToken
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Summary: insights.Summarize(jobs),
		Sampled: len(jobs),
	})
}

func jobFiltersFromQuery(r *http.Request) (iss.JobFilters, error) {
	q := r.URL.Query()

	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		return iss.JobFilters{}, err
	}

	filters := iss.JobFilters{
		Limit:             limit,
		Status:            iss.JobStatus(q.Get("status")),
		JobRequestID:      q.Get("job_request_id"),
		JobType:           q.Get("job_type"),
		Queue:             q.Get("queue"),
		RequestedBy:       q.Get("requested_by"),
		ParentInstanceID:  q.Get("parent_instance_id"),
		WorkloadJobROIID:  q.Get("workload_job_roi_id"),
		ContinuationToken: q.Get("continuation_token"),
	}
	if err := filters.Validate(); err != nil {
		return iss.JobFilters{}, err
	}
	return filters, nil
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, iss.ErrValidation)
	}
	return v, nil
}
