package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/3leaps/issgate/pkg/iss"
)

// PlatformsHandler serves the /api/v1/platforms routes.
type PlatformsHandler struct {
	scheduler Scheduler
	logger    *zap.Logger
}

// NewPlatformsHandler wires the platform routes to the upstream client.
func NewPlatformsHandler(scheduler Scheduler, logger *zap.Logger) *PlatformsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlatformsHandler{scheduler: scheduler, logger: logger}
}

// PlatformsResponse is the body for the platforms listing.
type PlatformsResponse struct {
	Platforms []iss.Platform `json:"platforms"`
	Count     int            `json:"count"`
}

// List serves GET /api/v1/platforms.
func (h *PlatformsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	filters := iss.PlatformFilters{
		Limit:        limit,
		PlatformType: q.Get("platform_type"),
	}
	if filters.PlatformType != "" {
		if _, err := iss.ParsePlatformType(filters.PlatformType); err != nil {
			respondWithError(w, r, err)
			return
		}
	}
	if avail, ok, err := boolQuery(r, "available"); err != nil {
		respondWithError(w, r, err)
		return
	} else if ok {
		filters.IsAvailable = &avail
	}

	platforms, err := h.scheduler.ListPlatforms(r.Context(), filters)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PlatformsResponse{Platforms: platforms, Count: len(platforms)})
}

// Get serves GET /api/v1/platforms/{platformID}.
func (h *PlatformsHandler) Get(w http.ResponseWriter, r *http.Request) {
	platformID := chi.URLParam(r, "platformID")
	if platformID == "" {
		respondWithError(w, r, fmt.Errorf("platform id is required: %w", iss.ErrValidation))
		return
	}

	platform, err := h.scheduler.GetPlatform(r.Context(), platformID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, platform)
}

func boolQuery(r *http.Request, name string) (value, present bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s must be a boolean: %w", name, iss.ErrValidation)
	}
	return v, true, nil
}
