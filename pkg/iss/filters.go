package iss

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Pagination limits enforced by the ISS API.
const (
	MinLimit = 1
	MaxLimit = 100
)

// JobFilters are the typed filter parameters for ListJobs. Limit is clamped
// into [MinLimit, MaxLimit] before the request is sent.
type JobFilters struct {
	Limit             int
	Status            JobStatus
	JobRequestID      string
	JobType           string // comma-separated for multiple types
	Queue             string
	RequestedBy       string
	ParentInstanceID  string
	WorkloadJobROIID  string
	ContinuationToken string
}

// Validate rejects filter values the ISS API would refuse. JobType accepts a
// comma-separated list; every element must be a known type.
func (f JobFilters) Validate() error {
	if f.Status != "" {
		if _, err := ParseJobStatus(string(f.Status)); err != nil {
			return err
		}
	}
	if f.JobType != "" {
		for _, part := range strings.Split(f.JobType, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, err := ParseJobType(part); err != nil {
				return err
			}
		}
	}
	return nil
}

// queryParams maps the internal filter fields to the ISS API's own
// query-parameter names. The mapping is a fixed, explicit table; the remote
// casing differs from the internal model and is never inferred.
func (f JobFilters) queryParams() url.Values {
	params := url.Values{}
	params.Set("Limit", strconv.Itoa(clampLimit(f.Limit)))

	if f.Status != "" {
		params.Set("JobRequestStatus", string(f.Status))
	}
	if f.JobRequestID != "" {
		params.Set("JobRequestID", f.JobRequestID)
	}
	if f.JobType != "" {
		params.Set("Type", f.JobType)
	}
	if f.Queue != "" {
		params.Set("Queue", f.Queue)
	}
	if f.RequestedBy != "" {
		params.Set("RequestedBy", f.RequestedBy)
	}
	if f.ParentInstanceID != "" {
		params.Set("ParentInstanceID", f.ParentInstanceID)
	}
	if f.WorkloadJobROIID != "" {
		params.Set("WorkloadJobROIID", f.WorkloadJobROIID)
	}
	if f.ContinuationToken != "" {
		params.Set("ContinuationToken", f.ContinuationToken)
	}
	return params
}

// PlatformFilters are passed through to the ISS platforms listing.
type PlatformFilters struct {
	Limit        int
	PlatformType string
	IsAvailable  *bool
}

func (f PlatformFilters) queryParams() url.Values {
	params := url.Values{}
	params.Set("Limit", strconv.Itoa(clampLimit(f.Limit)))

	if f.PlatformType != "" {
		params.Set("PlatformType", f.PlatformType)
	}
	if f.IsAvailable != nil {
		params.Set("IsAvailable", strconv.FormatBool(*f.IsAvailable))
	}
	return params
}

// InstanceFilters select instances by platform and availability.
type InstanceFilters struct {
	Limit       int
	Offset      int
	PlatformID  string
	IsAvailable *bool
}

func (f InstanceFilters) queryParams() url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(clampLimit(f.Limit)))
	params.Set("offset", strconv.Itoa(maxInt(f.Offset, 0)))

	if f.PlatformID != "" {
		params.Set("platform_id", f.PlatformID)
	}
	if f.IsAvailable != nil {
		params.Set("available", strconv.FormatBool(*f.IsAvailable))
	}
	return params
}

// clampLimit forces a caller-supplied limit into [MinLimit, MaxLimit].
func clampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// String renders the filters for log lines.
func (f JobFilters) String() string {
	return fmt.Sprintf("limit=%d status=%s type=%s queue=%s", clampLimit(f.Limit), f.Status, f.JobType, f.Queue)
}
