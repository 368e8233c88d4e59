package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sift/internal/config"
	"sift/internal/daemon"
	"sift/internal/logging"
	"sift/internal/organizer"
	"sift/internal/preflight"
	"sift/internal/remote"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "siftd",
		Short:         "Run scheduled sift passes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	stack, err := organizer.Build(ctx, cfg, logger, organizer.BuildOptions{DryRun: cfg.Daemon.DryRun})
	if err != nil {
		return fmt.Errorf("build organizer: %w", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Warn("close organizer", logging.Error(err))
		}
	}()

	resetStaleRuns(ctx, stack, logger)
	reportPreflight(ctx, cfg, logger)

	opts := daemon.OptionsFromConfig(cfg)
	opts.Logger = logger
	d, err := daemon.New(opts, stack.Organizer)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("siftd shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	d.Stop()
	return nil
}

// resetStaleRuns closes out journal rows left running by a crash.
func resetStaleRuns(ctx context.Context, stack *organizer.Stack, logger *slog.Logger) {
	if stack.Journal == nil {
		return
	}
	n, err := stack.Journal.ResetStaleRuns(ctx)
	if err != nil {
		logger.Warn("reset stale runs failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "journal_reset_failed"),
			logging.String(logging.FieldErrorHint, "check the data directory is writable"),
		)
		return
	}
	if n > 0 {
		logger.Info("marked interrupted runs as failed", logging.Int64("runs", n))
	}
}

// reportPreflight logs failing readiness checks. They are warnings: a root
// that is missing now may be mounted before the next pass.
func reportPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	var adapter remote.Adapter
	if cfg.Remote.Enabled {
		if s3, err := remote.NewS3Adapter(remote.S3ConfigFromConfig(cfg.Remote), logger); err == nil {
			adapter = s3
		}
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg, adapter)) {
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "run sift doctor for details"),
		)
	}
}
