// Package cmd implements the spoken CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the spoken CLI
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spoken",
		Short: "Segmented audio transcription pipeline",
		Long:  "Spoken Material - registers audio files, transcribes them window by window through a speech-to-text backend, and summarizes the result",
	}

	rootCmd.PersistentFlags().String("config", "", "path to the config file (default ~/.spoken/config.json)")

	rootCmd.AddCommand(NewConfigCmd(nil))
	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewStopCmd())
	rootCmd.AddCommand(NewRequeueCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewShowCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
