// Package summarize shrinks large listing responses into compact payloads
// bounded by item count and total character budget, so downstream consumers
// stay within practical payload limits.
package summarize

import (
	"encoding/json"
	"time"

	"github.com/3leaps/issgate/pkg/iss"
)

// Defaults applied when a caller passes a non-positive budget.
const (
	DefaultMaxItems      = 50
	DefaultMaxTotalChars = 50000
)

// JobDigest is the fixed essential-field projection of one job. Deeply
// nested sub-structures are dropped.
type JobDigest struct {
	ID          string        `json:"job_id"`
	Name        string        `json:"name"`
	Type        iss.JobType   `json:"job_type"`
	Status      iss.JobStatus `json:"status,omitempty"`
	Queue       string        `json:"queue,omitempty"`
	TenantID    string        `json:"tenant_id,omitempty"`
	RequestedBy string        `json:"requested_by,omitempty"`
	RequestedOn time.Time     `json:"requested_on,omitempty"`
}

// Result reports how the budget was spent.
type Result struct {
	// Included is the number of items kept.
	Included int `json:"included"`

	// Available is the number of items offered.
	Available int `json:"available"`

	// Truncated is true iff Included < Available.
	Truncated bool `json:"truncated"`
}

// Jobs projects each job down to its digest and accumulates digests until
// maxItems is reached or adding the next digest's serialized size would
// exceed maxTotalChars. Input order is preserved; truncation only drops a
// contiguous suffix. Pure function, no I/O.
func Jobs(items []iss.JobSummary, maxItems, maxTotalChars int) ([]JobDigest, Result) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if maxTotalChars <= 0 {
		maxTotalChars = DefaultMaxTotalChars
	}

	digests := make([]JobDigest, 0, minInt(len(items), maxItems))
	totalChars := 0

	for _, job := range items {
		if len(digests) >= maxItems {
			break
		}
		d := digest(job)

		encoded, err := json.Marshal(d)
		if err != nil {
			// Digest fields are all plain marshalable types; treat a
			// failure as an oversized item and stop.
			break
		}
		if totalChars+len(encoded) > maxTotalChars {
			break
		}

		digests = append(digests, d)
		totalChars += len(encoded)
	}

	return digests, Result{
		Included:  len(digests),
		Available: len(items),
		Truncated: len(digests) < len(items),
	}
}

func digest(job iss.JobSummary) JobDigest {
	return JobDigest{
		ID:          job.ID,
		Name:        job.Name,
		Type:        job.Type,
		Status:      job.Status,
		Queue:       job.Queue,
		TenantID:    job.TenantID,
		RequestedBy: job.RequestedBy,
		RequestedOn: job.RequestedOn,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
