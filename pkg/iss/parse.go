package iss

import (
	"fmt"
	"time"
)

// Wire-format records as returned by the ISS API. Field names follow the
// remote contract, not the internal model; normalization into typed records
// happens here and nowhere else downstream.

type wireJobMetadata struct {
	RequestedOn   string `json:"RequestedOn"`
	LastUpdatedOn string `json:"LastUpdatedOn"`
	RequestedBy   string `json:"RequestedBy"`
	LastUpdatedBy string `json:"LastUpdatedBy"`
}

type wireJob struct {
	JobRequestID     string            `json:"JobRequestID"`
	Name             string            `json:"Name"`
	Type             string            `json:"Type"`
	JobRequestStatus string            `json:"JobRequestStatus"`
	PlatformID       string            `json:"PlatformID"`
	Queue            string            `json:"Queue"`
	TenantID         string            `json:"TenantID"`
	Tags             map[string]string `json:"Tags"`
	Metadata         *wireJobMetadata  `json:"Metadata"`
}

type wireJobsResponse struct {
	Jobs              []wireJob `json:"Jobs"`
	Count             int       `json:"Count"`
	ContinuationToken string    `json:"ContinuationToken"`
}

type wireSubStates struct {
	State              string  `json:"State"`
	SubState           string  `json:"SubState"`
	DetailedState      string  `json:"DetailedState"`
	ProgressPercentage float64 `json:"ProgressPercentage"`
}

type wireAllocation struct {
	CPUCount  int     `json:"CPUCount"`
	MemoryGB  float64 `json:"MemoryGB"`
	DiskGB    float64 `json:"DiskGB"`
	GPUCount  int     `json:"GPUCount"`
	NodeCount int     `json:"NodeCount"`
}

type wireJobDetail struct {
	wireJob

	JobRequestStatusDetails string          `json:"JobRequestStatusDetails"`
	SubStates               *wireSubStates  `json:"SubStates"`
	Allocation              *wireAllocation `json:"Allocation"`
	PlatformName            string          `json:"PlatformName"`

	ActualRuntimeMinutes float64  `json:"ActualRuntimeMinutes"`
	ExitCode             *int     `json:"ExitCode"`
	PeakCPUPercent       float64  `json:"PeakCPUUsagePercent"`
	PeakMemoryUsageGB    float64  `json:"PeakMemoryUsageGB"`
	InputFiles           []string `json:"InputFiles"`
	OutputFiles          []string `json:"OutputFiles"`
	LogFiles             []string `json:"LogFiles"`
}

type wirePlatformFeatures struct {
	SupportsCheckpoint bool `json:"SupportsCheckpoint"`
	SupportsSnapshots  bool `json:"SupportsSnapshots"`
	SupportsGPU        bool `json:"SupportsGPU"`
	SupportsTracing    bool `json:"SupportsTracing"`
	IWPSEnabled        bool `json:"iwps_enabled"`
}

type wirePlatform struct {
	PlatformID             string                `json:"PlatformID"`
	PlatformName           string                `json:"PlatformName"`
	PlatformType           string                `json:"PlatformType"`
	Description            string                `json:"Description"`
	SimicsPlatformVersion  string                `json:"SimicsPlatformVersion"`
	SimicsPlatformRelease  string                `json:"SimicsPlatformRelease"`
	PlatformMemorySize     float64               `json:"PlatformMemorySize"`
	PlatformCPUCount       int                   `json:"PlatformCPUCount"`
	PlatformDiskSize       float64               `json:"PlatformDiskSize"`
	PlatformGPUCount       int                   `json:"PlatformGPUCount"`
	MaxConcurrentJobs      int                   `json:"MaxConcurrentJobs"`
	IsActive               *bool                 `json:"IsActive"`
	IsAvailable            *bool                 `json:"IsAvailable"`
	MaintenanceMode        bool                  `json:"MaintenanceMode"`
	Features               *wirePlatformFeatures `json:"Features"`
	Tags                   map[string]string     `json:"Tags"`
}

type wirePlatformsResponse struct {
	Platforms []wirePlatform `json:"Platforms"`
	Count     int            `json:"Count"`
}

type wireInstance struct {
	InstanceID        string            `json:"instance_id"`
	Name              string            `json:"name"`
	PlatformID        string            `json:"platform_id"`
	PlatformName      string            `json:"platform_name"`
	Status            string            `json:"status"`
	Available         *bool             `json:"available"`
	InUse             bool              `json:"in_use"`
	AllocatedCPUCount int               `json:"allocated_cpu_count"`
	AllocatedMemoryGB float64           `json:"allocated_memory_gb"`
	AllocatedDiskGB   float64           `json:"allocated_disk_gb"`
	AllocatedGPUCount int               `json:"allocated_gpu_count"`
	CurrentCPUPercent float64           `json:"current_cpu_percent"`
	CurrentMemoryGB   float64           `json:"current_memory_gb"`
	CurrentDiskGB     float64           `json:"current_disk_usage_gb"`
	CurrentJobID      string            `json:"current_job_id"`
	CurrentJobName    string            `json:"current_job_name"`
	HealthStatus      string            `json:"health_status"`
	Tags              map[string]string `json:"tags"`
}

type wireInstancesResponse struct {
	Instances []wireInstance `json:"instances"`
	Count     int            `json:"count"`
}

// parseTime accepts the timestamp shapes ISS emits. A missing or
// unparseable timestamp yields the zero time, not a validation failure.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// jobSummaryFromWire normalizes one listing record. Name and Type are
// required; the status, when present, must be a known enumeration value.
func jobSummaryFromWire(w wireJob) (JobSummary, error) {
	if w.Name == "" {
		return JobSummary{}, fmt.Errorf("%w: job record missing Name", ErrValidation)
	}
	if w.Type == "" {
		return JobSummary{}, fmt.Errorf("%w: job record missing Type", ErrValidation)
	}
	jobType, err := ParseJobType(w.Type)
	if err != nil {
		return JobSummary{}, err
	}
	var status JobStatus
	if w.JobRequestStatus != "" {
		status, err = ParseJobStatus(w.JobRequestStatus)
		if err != nil {
			return JobSummary{}, err
		}
	}
	if err := ValidateTags(w.Tags); err != nil {
		return JobSummary{}, err
	}

	s := JobSummary{
		ID:         w.JobRequestID,
		Name:       w.Name,
		Type:       jobType,
		Status:     status,
		PlatformID: w.PlatformID,
		Queue:      w.Queue,
		TenantID:   w.TenantID,
		Tags:       w.Tags,
	}
	if w.Metadata != nil {
		s.RequestedBy = w.Metadata.RequestedBy
		s.RequestedOn = parseTime(w.Metadata.RequestedOn)
	}
	return s, nil
}

// jobDetailFromWire normalizes a single-job fetch. Unlike listing records,
// the status is required here.
func jobDetailFromWire(w wireJobDetail) (*JobDetail, error) {
	summary, err := jobSummaryFromWire(w.wireJob)
	if err != nil {
		return nil, err
	}
	if w.JobRequestStatus == "" {
		return nil, fmt.Errorf("%w: job detail missing JobRequestStatus", ErrValidation)
	}

	d := &JobDetail{
		JobSummary:        summary,
		StatusDetails:     w.JobRequestStatusDetails,
		PlatformName:      w.PlatformName,
		RuntimeMinutes:    w.ActualRuntimeMinutes,
		ExitCode:          w.ExitCode,
		PeakCPUPercent:    w.PeakCPUPercent,
		PeakMemoryUsageGB: w.PeakMemoryUsageGB,
		InputFiles:        w.InputFiles,
		OutputFiles:       w.OutputFiles,
		LogFiles:          w.LogFiles,
	}
	if w.Metadata != nil {
		d.LastUpdatedOn = parseTime(w.Metadata.LastUpdatedOn)
		d.LastUpdatedBy = w.Metadata.LastUpdatedBy
	}
	if w.SubStates != nil {
		d.SubStates = &SubStates{
			State:              w.SubStates.State,
			SubState:           w.SubStates.SubState,
			DetailedState:      w.SubStates.DetailedState,
			ProgressPercentage: w.SubStates.ProgressPercentage,
		}
	}
	if w.Allocation != nil {
		d.Allocation = &Allocation{
			CPUCount:  w.Allocation.CPUCount,
			MemoryGB:  w.Allocation.MemoryGB,
			DiskGB:    w.Allocation.DiskGB,
			GPUCount:  w.Allocation.GPUCount,
			NodeCount: w.Allocation.NodeCount,
		}
	}
	return d, nil
}

// platformFromWire normalizes an ISS platform record. ISS reports Simics
// platforms with their own type tag; everything else maps to Virtual.
func platformFromWire(w wirePlatform) (Platform, error) {
	if w.PlatformID == "" {
		return Platform{}, fmt.Errorf("%w: platform record missing PlatformID", ErrValidation)
	}
	if w.PlatformName == "" {
		return Platform{}, fmt.Errorf("%w: platform record missing PlatformName", ErrValidation)
	}
	if err := ValidateTags(w.Tags); err != nil {
		return Platform{}, err
	}

	platformType := PlatformVirtual
	if w.PlatformType == "Simics" {
		platformType = PlatformSimulation
	} else if w.PlatformType != "" {
		if t, err := ParsePlatformType(w.PlatformType); err == nil {
			platformType = t
		}
	}

	version := w.SimicsPlatformVersion
	if version == "" {
		version = w.SimicsPlatformRelease
	}

	p := Platform{
		ID:                w.PlatformID,
		Name:              w.PlatformName,
		Type:              platformType,
		Description:       w.Description,
		Version:           version,
		IsActive:          true,
		IsAvailable:       true,
		MaintenanceMode:   w.MaintenanceMode,
		MaxCPUCount:       w.PlatformCPUCount,
		MaxMemoryGB:       w.PlatformMemorySize,
		MaxDiskGB:         w.PlatformDiskSize,
		MaxGPUCount:       w.PlatformGPUCount,
		MaxConcurrentJobs: w.MaxConcurrentJobs,
		Tags:              w.Tags,
	}
	if w.IsActive != nil {
		p.IsActive = *w.IsActive
	}
	if w.IsAvailable != nil {
		p.IsAvailable = *w.IsAvailable
	}
	if w.Features != nil {
		p.Features = &PlatformFeatures{
			SupportsCheckpoint: w.Features.SupportsCheckpoint,
			SupportsSnapshots:  w.Features.SupportsSnapshots,
			SupportsGPU:        w.Features.SupportsGPU,
			SupportsTracing:    w.Features.SupportsTracing,
			IWPSEnabled:        w.Features.IWPSEnabled,
		}
	}
	return p, nil
}

func instanceFromWire(w wireInstance) (Instance, error) {
	if w.InstanceID == "" {
		return Instance{}, fmt.Errorf("%w: instance record missing instance_id", ErrValidation)
	}
	if w.PlatformID == "" {
		return Instance{}, fmt.Errorf("%w: instance record missing platform_id", ErrValidation)
	}
	if err := ValidateTags(w.Tags); err != nil {
		return Instance{}, err
	}

	inst := Instance{
		ID:                 w.InstanceID,
		Name:               w.Name,
		PlatformID:         w.PlatformID,
		PlatformName:       w.PlatformName,
		Status:             w.Status,
		IsAvailable:        true,
		InUse:              w.InUse,
		AllocatedCPUCount:  w.AllocatedCPUCount,
		AllocatedMemoryGB:  w.AllocatedMemoryGB,
		AllocatedDiskGB:    w.AllocatedDiskGB,
		AllocatedGPUCount:  w.AllocatedGPUCount,
		CurrentCPUPercent:  w.CurrentCPUPercent,
		CurrentMemoryGB:    w.CurrentMemoryGB,
		CurrentDiskUsageGB: w.CurrentDiskGB,
		CurrentJobID:       w.CurrentJobID,
		CurrentJobName:     w.CurrentJobName,
		HealthStatus:       w.HealthStatus,
		Tags:               w.Tags,
	}
	if inst.Status == "" {
		inst.Status = "Unknown"
	}
	if w.Available != nil {
		inst.IsAvailable = *w.Available
	}
	return inst, nil
}
