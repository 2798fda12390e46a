package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/issgate/pkg/iss"
)

// InstancesHandler serves the /api/v1/instances routes.
type InstancesHandler struct {
	scheduler Scheduler
	logger    *zap.Logger
}

// NewInstancesHandler wires the instance routes to the upstream client.
func NewInstancesHandler(scheduler Scheduler, logger *zap.Logger) *InstancesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstancesHandler{scheduler: scheduler, logger: logger}
}

// InstancesResponse is the body for the instances listing.
type InstancesResponse struct {
	Instances []iss.Instance `json:"instances"`
	Count     int            `json:"count"`
}

// List serves GET /api/v1/instances.
func (h *InstancesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	filters := iss.InstanceFilters{
		Limit:      limit,
		Offset:     offset,
		PlatformID: q.Get("platform_id"),
	}
	if avail, ok, err := boolQuery(r, "available"); err != nil {
		respondWithError(w, r, err)
		return
	} else if ok {
		filters.IsAvailable = &avail
	}

	instances, err := h.scheduler.ListInstances(r.Context(), filters)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InstancesResponse{Instances: instances, Count: len(instances)})
}

// Get serves GET /api/v1/instances/{instanceID}.
func (h *InstancesHandler) Get(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	if instanceID == "" {
		respondWithError(w, r, fmt.Errorf("instance id is required: %w", iss.ErrValidation))
		return
	}

	instance, err := h.scheduler.GetInstance(r.Context(), instanceID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}
