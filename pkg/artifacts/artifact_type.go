package artifacts

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/issgate/pkg/iss"
)

// Type selects the file-service path template for a job's output files.
type Type string

const (
	TypeIWPS           Type = "iwps"
	TypeISIM           Type = "isim"
	TypeCoho           Type = "coho"
	TypeWorkloadJob    Type = "workloadjob"
	TypeWorkloadJobROI Type = "workloadjobroi"

	// DefaultType is the fallback for unrecognized job types. File access
	// degrades gracefully rather than blocking on an unknown type.
	DefaultType = TypeIWPS
)

// bundled reports whether this artifact category serves logs as a single
// zip archive instead of individual files.
func (t Type) bundled() bool {
	return t == TypeWorkloadJob || t == TypeWorkloadJobROI
}

// TypeForJobType maps a job's type tag to its artifact type. Unknown types
// map to DefaultType.
func TypeForJobType(jt iss.JobType) Type {
	switch jt {
	case iss.JobTypeISIM:
		return TypeISIM
	case iss.JobTypeNovaCoho:
		return TypeCoho
	case iss.JobTypeIWPS:
		return TypeIWPS
	case iss.JobTypeWorkloadJob:
		return TypeWorkloadJob
	case iss.JobTypeWorkloadJobROI:
		return TypeWorkloadJobROI
	default:
		return DefaultType
	}
}

// JobTypeLookup resolves a job's type tag. iss.Client satisfies this.
type JobTypeLookup interface {
	GetJob(ctx context.Context, jobID string) (*iss.JobDetail, error)
}

// resolveJob determines the artifact type and owning tenant for a job,
// falling back to DefaultType and an empty tenant when the lookup fails or
// no lookup is configured.
func (c *Client) resolveJob(ctx context.Context, jobID string) (Type, string) {
	if c.jobs == nil {
		c.logger.Warn("no job lookup configured, defaulting artifact type",
			zap.String("job_id", jobID),
			zap.String("artifact_type", string(DefaultType)))
		return DefaultType, ""
	}

	job, err := c.jobs.GetJob(ctx, jobID)
	if err != nil {
		c.logger.Warn("failed to resolve job type, defaulting artifact type",
			zap.String("job_id", jobID),
			zap.Error(err))
		return DefaultType, ""
	}

	t := TypeForJobType(job.Type)
	c.logger.Debug("resolved artifact type",
		zap.String("job_id", jobID),
		zap.String("job_type", string(job.Type)),
		zap.String("artifact_type", string(t)))
	return t, job.TenantID
}
