package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/store"
)

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file-id>",
		Short: "Print a file's transcript segments and summary",
		Args:  cobra.ExactArgs(1),
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

			rec, err := repo.GetFile(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no file with id %s", args[0])
			}
			if err != nil {
				return err
			}

			segments, err := repo.ListSegments(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", rec.Name, rec.Status)
			if rec.LastError != "" {
				fmt.Fprintf(out, "last error: %s\n", rec.LastError)
			}
			fmt.Fprintln(out)

			for _, seg := range segments {
				fmt.Fprintf(out, "[%s] %s\n", formatOffset(seg.StartMs), seg.Text)
			}

			if rec.Summary != "" {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Summary: %s\n", rec.Summary)
			}

			return nil
		},
	}
}

// formatOffset renders a millisecond offset as mm:ss.
func formatOffset(ms int64) string {
	totalSec := ms / 1000
	return fmt.Sprintf("%02d:%02d", totalSec/60, totalSec%60)
}
