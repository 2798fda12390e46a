package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/issgate/internal/config"
	"github.com/3leaps/issgate/internal/observability"
	"github.com/3leaps/issgate/internal/server"
	"github.com/3leaps/issgate/internal/server/handlers"
	"github.com/3leaps/issgate/pkg/artifacts"
	"github.com/3leaps/issgate/pkg/iss"
	"github.com/3leaps/issgate/pkg/secrets"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	Long: `Start the HTTP server and serve the scheduler proxy API.

Examples:
  issgate serve
  issgate serve --config /etc/issgate/issgate.yaml
  ISSGATE_SERVER_PORT=9000 issgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type schedulerHealthChecker struct {
	client *iss.Client
}

func (c schedulerHealthChecker) CheckHealth(ctx context.Context) error {
	return c.client.CheckHealth(ctx)
}

type credentialsHealthChecker struct {
	provider *secrets.Provider
}

func (c credentialsHealthChecker) CheckHealth(ctx context.Context) error {
	_, err := c.provider.GetCredentials(ctx, false)
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		observability.CLILogger.Error("Failed to load config", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	logger := observability.CLILogger

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

	collector := observability.NewCollector()

	issOpts := []iss.Option{}
	if cfg.Metrics.Enabled {
		issOpts = append(issOpts, iss.WithObserver(collector))
	}

	scheduler, err := iss.New(iss.Config{
		BaseURL:  cfg.Scheduler.BaseURL,
		TokenURL: cfg.Scheduler.TokenURL,
		Timeout:  cfg.Scheduler.Timeout,
	}, provider, logger, issOpts...)
	if err != nil {
		logger.Error("Failed to create scheduler client", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid scheduler configuration", err)
	}

	filesBase := cfg.Files.BaseURL
	if filesBase == "" {
		filesBase = cfg.Scheduler.BaseURL
	}
	fileClient, err := artifacts.New(artifacts.Config{
		BaseURL:    filesBase,
		TenantURLs: cfg.Files.TenantURLs,
		Timeout:    cfg.Files.Timeout,
	}, scheduler, scheduler, logger)
	if err != nil {
		logger.Error("Failed to create file access client", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid file service configuration", err)
	}

	handlers.InitHealthManager(versionInfo.Version)
	manager := handlers.GetHealthManager()
	manager.RegisterChecker("scheduler", schedulerHealthChecker{client: scheduler})
	manager.RegisterChecker("credentials", credentialsHealthChecker{provider: provider})

	if cfg.Auth.Token == "" {
		logger.Warn("No API auth token configured, /api routes are open")
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		server.WithJobs(handlers.NewJobsHandler(scheduler, logger)),
		server.WithPlatforms(handlers.NewPlatformsHandler(scheduler, logger)),
		server.WithInstances(handlers.NewInstancesHandler(scheduler, logger)),
		server.WithFiles(handlers.NewFilesHandler(fileClient, logger)),
		server.WithAuthToken(cfg.Auth.Token),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(collector))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, server.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return exitError(foundry.ExitSignalInt, "Graceful shutdown failed", err)
	}

	logger.Info("Server stopped")
	return nil
}
