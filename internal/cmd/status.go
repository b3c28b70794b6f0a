package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/store"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the processing status of all files",
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

			files, err := repo.ListFiles(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No files registered")
				return nil
			}

			counts := map[pipeline.Status]int{}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tREGISTERED\tDETAIL")
			for _, f := range files {
				counts[f.Status]++
				detail := ""
				if f.Status == pipeline.StatusFailed {
					detail = f.LastError
				} else if f.Summary != "" {
					detail = truncate(f.Summary, 60)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					f.ID, f.Name, f.Status, f.CreatedAt.Local().Format("2006-01-02 15:04"), detail)
			}
			w.Flush()

			fmt.Fprintf(out, "\n%d pending, %d in progress, %d done, %d failed\n",
				counts[pipeline.StatusPending],
				counts[pipeline.StatusInProgress],
				counts[pipeline.StatusDone],
				counts[pipeline.StatusFailed],
			)

			return nil
		},
	}
}

// truncate shortens s to at most n runes, appending an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
