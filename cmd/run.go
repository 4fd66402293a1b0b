package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/auditpump/auditpump/internal/auth"
	"github.com/auditpump/auditpump/internal/config"
	"github.com/auditpump/auditpump/internal/processor"
	"github.com/auditpump/auditpump/internal/runner"
	"github.com/auditpump/auditpump/internal/sink"
	"github.com/auditpump/auditpump/internal/source"
	"github.com/auditpump/auditpump/internal/storage"
	"github.com/auditpump/auditpump/internal/utils/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the audit-log poller",
	Long: `Run the polling loop: fetch audit-log pages, deduplicate against the
persisted resume marker, and forward new events to the configured sink.
The loop runs until interrupted.

Examples:
  # Poll with settings from environment / config file
  auditpump run

  # Override the sink selection
  AUDITPUMP_SINK=syslog auditpump run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Load(viper.GetViper())
		if err := settings.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := storage.NewBoltStore(&storage.BoltOptions{Path: settings.StatePath})
		if err := store.Open(); err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer store.Close()

		authClient, err := auth.New(ctx, settings, store)
		if err != nil {
			return fmt.Errorf("failed to create auth client: %w", err)
		}

		snk, err := sink.New(settings)
		if err != nil {
			return fmt.Errorf("failed to create sink: %w", err)
		}
		defer snk.Close()

		proc, err := processor.New(ctx, store, snk)
		if err != nil {
			return fmt.Errorf("failed to create processor: %w", err)
		}

		srcClient := source.NewClient(settings, authClient)
		poller := runner.New(settings, authClient, srcClient, proc)

		logger.Info("auditpump starting",
			zap.String("run_id", uuid.NewString()),
			zap.String("sink", settings.SinkType),
			zap.Duration("poll_interval", settings.PollInterval))
		logger.Info("Press Ctrl+C to gracefully shutdown")

		err = poller.Run(ctx)

		logger.Info("Graceful shutdown completed",
			zap.Uint64("iterations", poller.Iterations()))
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
