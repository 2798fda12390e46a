// Package insights computes aggregate statistics over job listings. All
// functions are pure; callers fetch the data and decide what to do with the
// numbers.
package insights

import (
	"math"
	"sort"

	"github.com/3leaps/issgate/pkg/iss"
)

// Summary aggregates one job listing.
type Summary struct {
	Total      int                   `json:"total"`
	ByStatus   map[iss.JobStatus]int `json:"by_status"`
	ByType     map[iss.JobType]int   `json:"by_type"`
	ByQueue    map[string]int        `json:"by_queue,omitempty"`
	ByPlatform map[string]int        `json:"by_platform,omitempty"`

	// ErrorRate is the fraction of jobs in the error status, in [0, 1].
	ErrorRate float64 `json:"error_rate"`

	// CompletionRate is the fraction of jobs that reached a terminal
	// success status (done or complete), in [0, 1].
	CompletionRate float64 `json:"completion_rate"`
}

// Summarize counts jobs by status, type, queue and platform.
func Summarize(jobs []iss.JobSummary) Summary {
	s := Summary{
		Total:      len(jobs),
		ByStatus:   make(map[iss.JobStatus]int),
		ByType:     make(map[iss.JobType]int),
		ByQueue:    make(map[string]int),
		ByPlatform: make(map[string]int),
	}

	var errored, completed int
	for _, job := range jobs {
		if job.Status != "" {
			s.ByStatus[job.Status]++
		}
		s.ByType[job.Type]++
		if job.Queue != "" {
			s.ByQueue[job.Queue]++
		}
		if job.PlatformID != "" {
			s.ByPlatform[job.PlatformID]++
		}

		switch job.Status {
		case iss.JobStatusError:
			errored++
		case iss.JobStatusDone, iss.JobStatusComplete:
			completed++
		}
	}

	if len(jobs) > 0 {
		s.ErrorRate = float64(errored) / float64(len(jobs))
		s.CompletionRate = float64(completed) / float64(len(jobs))
	}
	return s
}

// RuntimeStats describes the distribution of a runtime sample.
type RuntimeStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Runtimes computes distribution statistics over runtime samples in
// minutes. Non-positive samples are excluded; an empty sample yields the
// zero value.
func Runtimes(minutes []float64) RuntimeStats {
	values := make([]float64, 0, len(minutes))
	for _, v := range minutes {
		if v > 0 {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return RuntimeStats{}
	}

	sort.Float64s(values)

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return RuntimeStats{
		Count:  len(values),
		Mean:   mean,
		Median: median(values),
		StdDev: math.Sqrt(variance),
		Min:    values[0],
		Max:    values[len(values)-1],
	}
}

// median expects a sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// DetailRuntimes extracts the runtime sample from job details.
func DetailRuntimes(details []iss.JobDetail) []float64 {
	minutes := make([]float64, 0, len(details))
	for _, d := range details {
		minutes = append(minutes, d.RuntimeMinutes)
	}
	return minutes
}
