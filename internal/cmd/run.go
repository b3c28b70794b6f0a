package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/store"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process all pending files once",
		Long: `Process every pending file through the transcription pipeline and exit.

This is the batch dispatch strategy: suitable for cron. Files claimed by
another dispatcher in the meantime are skipped, so overlapping
invocations are safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			repo, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer repo.Close()

			logger, err := newLogger(cfg, "dispatch", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			runner := buildRunner(cfg, repo, logger)
			dispatcher := pipeline.NewDispatcher(repo, runner, logger,
				time.Duration(cfg.PollIntervalMs)*time.Millisecond, cfg.Workers)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return dispatcher.RunOnce(ctx)
		},
	}
}
