// Package output provides JSONL output for CLI job queries.
//
// Output is structured as typed record envelopes containing jobs,
// errors, and a final summary. Each line is a self-contained JSON
// object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/issgate/pkg/iss"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: issgate.<type>.v<version>
const (
	// TypeJob identifies job records.
	TypeJob = "issgate.job.v1"

	// TypeError identifies error records.
	TypeError = "issgate.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "issgate.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "issgate.job.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this query run.
	RunID string `json:"run_id"`

	// Source identifies the scheduler endpoint the records came from.
	Source string `json:"source"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// JobRecord is the data payload for job listings.
type JobRecord struct {
	// JobID is the scheduler's identifier for the job.
	JobID string `json:"job_id"`

	// Name is the human-assigned job name.
	Name string `json:"name"`

	// Type is the job type tag (IWPS, ISIM, ...).
	Type iss.JobType `json:"job_type"`

	// Status is the lifecycle state at listing time.
	Status iss.JobStatus `json:"status,omitempty"`

	Queue       string    `json:"queue,omitempty"`
	TenantID    string    `json:"tenant_id,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedOn time.Time `json:"requested_on,omitempty"`
}

// JobRecordFrom projects one listed job into its output record.
func JobRecordFrom(job iss.JobSummary) *JobRecord {
	return &JobRecord{
		JobID:       job.ID,
		Name:        job.Name,
		Type:        job.Type,
		Status:      job.Status,
		Queue:       job.Queue,
		TenantID:    job.TenantID,
		RequestedBy: job.RequestedBy,
		RequestedOn: job.RequestedOn,
	}
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than aborting the run, allowing
// partial results when a later page fails.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Page is the listing page being fetched when the error occurred.
	Page int `json:"page,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeAuth indicates an authentication failure.
	ErrCodeAuth = "AUTHENTICATION"

	// ErrCodeNotFound indicates the resource was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeThrottled indicates rate limiting.
	ErrCodeThrottled = "THROTTLED"

	// ErrCodeUpstream indicates an unexpected scheduler response.
	ErrCodeUpstream = "UPSTREAM"
)

// SummaryRecord is the data payload for final summaries.
//
// A summary record is emitted at the end of a run with aggregate
// statistics.
type SummaryRecord struct {
	// JobsListed is the number of job records emitted.
	JobsListed int `json:"jobs_listed"`

	// Pages is the number of listing pages fetched.
	Pages int `json:"pages"`

	// ByStatus counts listed jobs per lifecycle state.
	ByStatus map[string]int `json:"by_status,omitempty"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// Errors is the count of errors encountered.
	Errors int `json:"errors"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
