package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/issgate/internal/config"
	"github.com/3leaps/issgate/internal/observability"
	"github.com/3leaps/issgate/pkg/iss"
	"github.com/3leaps/issgate/pkg/output"
	"github.com/3leaps/issgate/pkg/secrets"
)

var (
	flagJobsStatus      string
	flagJobsQueue       string
	flagJobsType        string
	flagJobsRequestedBy string
	flagJobsLimit       int
	flagJobsPages       int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List scheduler jobs as JSONL",
	Long: `Query the scheduler's job listing and emit one JSONL record per job
to stdout, followed by a summary record.

Examples:
  issgate jobs
  issgate jobs --status inprogress --queue fastlane
  issgate jobs --pages 5 --limit 100 > jobs.jsonl`,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&flagJobsStatus, "status", "", "Filter by job status (e.g. inprogress, complete)")
	jobsCmd.Flags().StringVar(&flagJobsQueue, "queue", "", "Filter by queue name")
	jobsCmd.Flags().StringVar(&flagJobsType, "job-type", "", "Filter by job type, comma-separated for multiple")
	jobsCmd.Flags().StringVar(&flagJobsRequestedBy, "requested-by", "", "Filter by requesting user")
	jobsCmd.Flags().IntVar(&flagJobsLimit, "limit", iss.MaxLimit, "Page size, clamped to the scheduler's maximum")
	jobsCmd.Flags().IntVar(&flagJobsPages, "pages", 1, "Maximum number of listing pages to fetch")

	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.CLILogger

	cfg, err := config.Load(flagConfig)
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	filters := iss.JobFilters{
		Limit:       flagJobsLimit,
		Status:      iss.JobStatus(flagJobsStatus),
		JobType:     flagJobsType,
		Queue:       flagJobsQueue,
		RequestedBy: flagJobsRequestedBy,
	}
	if err := filters.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filter", err)
	}
	if flagJobsPages < 1 {
		return exitError(foundry.ExitInvalidArgument, "Invalid page count",
			fmt.Errorf("pages must be at least 1, got %d", flagJobsPages))
	}

	provider, err := secrets.New(ctx, secrets.Config{
		SecretName:      cfg.Secrets.SecretName,
		Region:          cfg.Secrets.Region,
		AccessKeyID:     cfg.Secrets.AccessKeyID,
		SecretAccessKey: cfg.Secrets.SecretAccessKey,
	}, logger)
	if err != nil {
		logger.Error("Failed to create secrets provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to create secrets provider", err)
	}

	scheduler, err := iss.New(iss.Config{
		BaseURL:  cfg.Scheduler.BaseURL,
		TokenURL: cfg.Scheduler.TokenURL,
		Timeout:  cfg.Scheduler.Timeout,
	}, provider, logger)
	if err != nil {
		logger.Error("Failed to create scheduler client", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid scheduler configuration", err)
	}

	writer := output.NewJSONLWriter(os.Stdout, uuid.NewString(), sourceHost(cfg.Scheduler.BaseURL))
	defer func() { _ = writer.Close() }()

	sum, err := streamJobs(ctx, scheduler, writer, filters, flagJobsPages)
	if werr := writer.WriteSummary(ctx, sum); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		logger.Error("Job listing failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Job listing failed", err)
	}

	logger.Info("Job listing complete",
		zap.Int("jobs", sum.JobsListed),
		zap.Int("pages", sum.Pages))
	return nil
}

// jobLister is the slice of the scheduler client the jobs command uses.
type jobLister interface {
	ListJobs(ctx context.Context, filters iss.JobFilters) (*iss.JobPage, error)
}

// streamJobs walks up to maxPages of the listing, emitting one record per
// job. A page failure after the first page is reported as an error record
// and ends the walk with the partial results already written.
func streamJobs(ctx context.Context, scheduler jobLister, writer output.Writer, filters iss.JobFilters, maxPages int) (*output.SummaryRecord, error) {
	start := time.Now()
	sum := &output.SummaryRecord{ByStatus: map[string]int{}}

	for page := 1; page <= maxPages; page++ {
		result, err := scheduler.ListJobs(ctx, filters)
		if err != nil {
			if page == 1 {
				return finishSummary(sum, start), err
			}
			sum.Errors++
			_ = writer.WriteError(ctx, &output.ErrorRecord{
				Code:    errorCode(err),
				Message: err.Error(),
				Page:    page,
			})
			break
		}
		sum.Pages++

		for _, job := range result.Jobs {
			if err := writer.WriteJob(ctx, output.JobRecordFrom(job)); err != nil {
				return finishSummary(sum, start), err
			}
			sum.JobsListed++
			if job.Status != "" {
				sum.ByStatus[string(job.Status)]++
			}
		}

		if result.ContinuationToken == "" {
			break
		}
		filters.ContinuationToken = result.ContinuationToken
	}

	return finishSummary(sum, start), nil
}

func finishSummary(sum *output.SummaryRecord, start time.Time) *output.SummaryRecord {
	sum.Duration = time.Since(start)
	sum.DurationHuman = sum.Duration.Round(time.Millisecond).String()
	if len(sum.ByStatus) == 0 {
		sum.ByStatus = nil
	}
	return sum
}

func errorCode(err error) string {
	switch {
	case iss.IsAuthentication(err):
		return output.ErrCodeAuth
	case iss.IsNotFound(err):
		return output.ErrCodeNotFound
	case iss.IsRateLimited(err):
		return output.ErrCodeThrottled
	default:
		return output.ErrCodeUpstream
	}
}

func sourceHost(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}
