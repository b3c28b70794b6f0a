package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/pidfile"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/store"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatcher in foreground mode",
		Long: `Run the transcription dispatcher in foreground mode.

The dispatcher polls the store for pending files and processes each one
through the pipeline. Configuration is read from the config file.

The service runs until interrupted with Ctrl+C or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			pidPath, err := pidfile.DefaultPath()
			if err != nil {
				return err
			}

			if running, pid, err := pidfile.IsRunning(pidPath); err != nil {
				return err
			} else if running {
				return fmt.Errorf("already running with PID %d", pid)
			}

			if err := pidfile.Write(pidPath, os.Getpid()); err != nil {
				return fmt.Errorf("write PID file: %w", err)
			}
			defer pidfile.Remove(pidPath)

			repo, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer repo.Close()

			logger, err := newLogger(cfg, "dispatch", cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer logger.Close()

			runner := buildRunner(cfg, repo, logger)
			dispatcher := pipeline.NewDispatcher(repo, runner, logger,
				time.Duration(cfg.PollIntervalMs)*time.Millisecond, cfg.Workers)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(cmd.OutOrStdout(), "Starting transcription dispatcher...")
			fmt.Fprintf(cmd.OutOrStdout(), "Store:   %s\n", cfg.DBPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Backend: %s\n", cfg.ASRURL)
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
			fmt.Fprintln(cmd.OutOrStdout())

			return dispatcher.Run(ctx)
		},
	}
}
