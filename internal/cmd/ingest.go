package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/ingest"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/store"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Register audio files for transcription",
		Long: `Register one or more local audio files for transcription.

Each file is copied into the media directory and recorded in pending
state. Files whose content was already registered are skipped. Run
"spoken run" or "spoken serve" to process the queue.`,
		Args: cobra.MinimumNArgs(1),
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

			logger, err := newLogger(cfg, "ingest", nil)
			if err != nil {
				return err
			}
			defer logger.Close()

			out := cmd.OutOrStdout()
			svc := ingest.New(repo, cfg.MediaDir, cfg.MaxFileSizeMB, logger)

			for _, path := range args {
				rec, created, err := svc.Register(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				if created {
					fmt.Fprintf(out, "registered %s as %s\n", path, rec.ID)
				} else {
					fmt.Fprintf(out, "skipped %s (already registered as %s, status %s)\n", path, rec.ID, rec.Status)
				}
			}

			return nil
		},
	}
}
