package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/store"
)

// NewRequeueCmd creates the requeue command
func NewRequeueCmd() *cobra.Command {
	var staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Move failed files back to pending",
		Long: `Move all failed files back to pending so the next dispatch retries them.

With --stale, files stuck in progress for longer than the given duration
are also reset to pending. Only use --stale when no dispatcher that
could still own those runs is alive.`,
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

			out := cmd.OutOrStdout()

			n, err := repo.Requeue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "re-queued %d failed file(s)\n", n)

			if staleAfter > 0 {
				swept, err := repo.SweepStale(cmd.Context(), staleAfter)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "reset %d stale in-progress file(s)\n", swept)
			}

			return nil
		},
	}

	cmd.Flags().DurationVar(&staleAfter, "stale", 0, "also reset in-progress files older than this duration (e.g. 30m)")

	return cmd
}
