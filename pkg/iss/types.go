package iss

import (
	"fmt"
	"time"
)

// JobType is the job classification used by ISS.
//
// NOTE: These values are part of the ISS wire contract. Unknown values are
// rejected at parse time rather than coerced.
type JobType string

const (
	JobTypeIWPS           JobType = "IWPS"
	JobTypeISIM           JobType = "ISIM"
	JobTypeCoho           JobType = "Coho"
	JobTypeNovaCoho       JobType = "NovaCoho"
	JobTypeInstance       JobType = "Instance"
	JobTypeWorkloadJob    JobType = "WorkloadJob"
	JobTypeWorkloadJobROI JobType = "WorkloadJobROI"
	JobTypeCustom         JobType = "Custom"
)

// ParseJobType validates a wire value against the fixed enumeration.
func ParseJobType(s string) (JobType, error) {
	switch JobType(s) {
	case JobTypeIWPS, JobTypeISIM, JobTypeCoho, JobTypeNovaCoho,
		JobTypeInstance, JobTypeWorkloadJob, JobTypeWorkloadJobROI, JobTypeCustom:
		return JobType(s), nil
	}
	return "", fmt.Errorf("%w: unknown job type %q", ErrValidation, s)
}

// JobStatus is the job request lifecycle status as defined by the ISS API.
type JobStatus string

const (
	JobStatusRequested     JobStatus = "requested"
	JobStatusQueued        JobStatus = "queued"
	JobStatusAllocating    JobStatus = "allocating"
	JobStatusAllocated     JobStatus = "allocated"
	JobStatusBooting       JobStatus = "booting"
	JobStatusInProgress    JobStatus = "inprogress"
	JobStatusCheckpointing JobStatus = "checkpointing"
	JobStatusDone          JobStatus = "done"
	JobStatusError         JobStatus = "error"
	JobStatusReleasing     JobStatus = "releasing"
	JobStatusReleased      JobStatus = "released"
	JobStatusComplete      JobStatus = "complete"
)

// ParseJobStatus validates a wire value against the fixed enumeration.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobStatusRequested, JobStatusQueued, JobStatusAllocating,
		JobStatusAllocated, JobStatusBooting, JobStatusInProgress,
		JobStatusCheckpointing, JobStatusDone, JobStatusError,
		JobStatusReleasing, JobStatusReleased, JobStatusComplete:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown job status %q", ErrValidation, s)
}

// PlatformType classifies an execution platform.
type PlatformType string

const (
	PlatformSimulation PlatformType = "Simulation"
	PlatformEmulation  PlatformType = "Emulation"
	PlatformHardware   PlatformType = "Hardware"
	PlatformVirtual    PlatformType = "Virtual"
	PlatformHybrid     PlatformType = "Hybrid"
)

// ParsePlatformType validates a wire value against the fixed enumeration.
func ParsePlatformType(s string) (PlatformType, error) {
	switch PlatformType(s) {
	case PlatformSimulation, PlatformEmulation, PlatformHardware,
		PlatformVirtual, PlatformHybrid:
		return PlatformType(s), nil
	}
	return "", fmt.Errorf("%w: unknown platform type %q", ErrValidation, s)
}

// Tag limits enforced at construction time.
const (
	MaxTags        = 20
	MaxTagKeyLen   = 50
	MaxTagValueLen = 200
)

// ValidateTags enforces the tag mapping limits: at most MaxTags entries,
// key length <= MaxTagKeyLen, value length <= MaxTagValueLen.
func ValidateTags(tags map[string]string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("%w: %d tags exceeds maximum of %d", ErrValidation, len(tags), MaxTags)
	}
	for k, v := range tags {
		if len(k) > MaxTagKeyLen {
			return fmt.Errorf("%w: tag key %q exceeds %d chars", ErrValidation, k, MaxTagKeyLen)
		}
		if len(v) > MaxTagValueLen {
			return fmt.Errorf("%w: tag value for %q exceeds %d chars", ErrValidation, k, MaxTagValueLen)
		}
	}
	return nil
}

// JobSummary is an immutable snapshot of one job from a listing call.
type JobSummary struct {
	ID          string            `json:"job_id"`
	Name        string            `json:"name"`
	Type        JobType           `json:"job_type"`
	Status      JobStatus         `json:"status,omitempty"`
	PlatformID  string            `json:"platform_id,omitempty"`
	Queue       string            `json:"queue,omitempty"`
	TenantID    string            `json:"tenant_id,omitempty"`
	RequestedBy string            `json:"requested_by,omitempty"`
	RequestedOn time.Time         `json:"requested_on,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Allocation is the resource allocation actually granted to a job.
type Allocation struct {
	CPUCount  int     `json:"cpu_count,omitempty"`
	MemoryGB  float64 `json:"memory_gb,omitempty"`
	DiskGB    float64 `json:"disk_gb,omitempty"`
	GPUCount  int     `json:"gpu_count,omitempty"`
	NodeCount int     `json:"node_count,omitempty"`
}

// SubStates carries detailed sub-state progress for a job.
type SubStates struct {
	State              string  `json:"state,omitempty"`
	SubState           string  `json:"sub_state,omitempty"`
	DetailedState      string  `json:"detailed_state,omitempty"`
	ProgressPercentage float64 `json:"progress_percentage,omitempty"`
}

// JobDetail is the full snapshot returned by a single-job fetch.
// A fresh fetch replaces it wholesale; it is never partially updated.
type JobDetail struct {
	JobSummary

	StatusDetails string     `json:"status_details,omitempty"`
	SubStates     *SubStates `json:"sub_states,omitempty"`

	LastUpdatedOn time.Time `json:"last_updated_on,omitempty"`
	LastUpdatedBy string    `json:"last_updated_by,omitempty"`

	RuntimeMinutes     float64 `json:"runtime_minutes,omitempty"`
	ExitCode           *int    `json:"exit_code,omitempty"`
	PeakCPUPercent     float64 `json:"peak_cpu_percent,omitempty"`
	PeakMemoryUsageGB  float64 `json:"peak_memory_usage_gb,omitempty"`

	Allocation *Allocation `json:"allocation,omitempty"`

	InputFiles  []string `json:"input_files,omitempty"`
	OutputFiles []string `json:"output_files,omitempty"`
	LogFiles    []string `json:"log_files,omitempty"`

	PlatformName string `json:"platform_name,omitempty"`
}

// PlatformFeatures describes platform capabilities.
type PlatformFeatures struct {
	SupportsCheckpoint bool `json:"supports_checkpoint,omitempty"`
	SupportsSnapshots  bool `json:"supports_snapshots,omitempty"`
	SupportsGPU        bool `json:"supports_gpu,omitempty"`
	SupportsTracing    bool `json:"supports_tracing,omitempty"`
	IWPSEnabled        bool `json:"iwps_enabled,omitempty"`
}

// Platform is a read-only projection of an ISS execution platform.
type Platform struct {
	ID          string       `json:"platform_id"`
	Name        string       `json:"name"`
	Type        PlatformType `json:"platform_type"`
	Description string       `json:"description,omitempty"`
	Version     string       `json:"version,omitempty"`

	IsActive        bool `json:"is_active"`
	IsAvailable     bool `json:"is_available"`
	MaintenanceMode bool `json:"maintenance_mode"`

	MaxCPUCount       int     `json:"max_cpu_count,omitempty"`
	MaxMemoryGB       float64 `json:"max_memory_gb,omitempty"`
	MaxDiskGB         float64 `json:"max_disk_gb,omitempty"`
	MaxGPUCount       int     `json:"max_gpu_count,omitempty"`
	MaxConcurrentJobs int     `json:"max_concurrent_jobs,omitempty"`

	Features *PlatformFeatures `json:"features,omitempty"`

	Tags map[string]string `json:"tags,omitempty"`
}

// Instance is a read-only projection of a platform's running unit.
type Instance struct {
	ID           string `json:"instance_id"`
	Name         string `json:"name"`
	PlatformID   string `json:"platform_id"`
	PlatformName string `json:"platform_name,omitempty"`

	Status      string `json:"status"`
	IsAvailable bool   `json:"is_available"`
	InUse       bool   `json:"in_use"`

	AllocatedCPUCount int     `json:"allocated_cpu_count,omitempty"`
	AllocatedMemoryGB float64 `json:"allocated_memory_gb,omitempty"`
	AllocatedDiskGB   float64 `json:"allocated_disk_gb,omitempty"`
	AllocatedGPUCount int     `json:"allocated_gpu_count,omitempty"`

	CurrentCPUPercent  float64 `json:"current_cpu_percent,omitempty"`
	CurrentMemoryGB    float64 `json:"current_memory_gb,omitempty"`
	CurrentDiskUsageGB float64 `json:"current_disk_usage_gb,omitempty"`

	CurrentJobID   string `json:"current_job_id,omitempty"`
	CurrentJobName string `json:"current_job_name,omitempty"`

	HealthStatus string            `json:"health_status,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// JobPage is one page of a jobs listing. ContinuationToken is an opaque,
// server-issued string; the client never parses or constructs it.
type JobPage struct {
	Jobs              []JobSummary `json:"jobs"`
	Count             int          `json:"count"`
	ContinuationToken string       `json:"continuation_token,omitempty"`
}
