package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
)

// Prompter defines the interface for reading user input
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// StdinPrompter reads from stdin
type StdinPrompter struct {
	reader *bufio.Reader
}

// NewStdinPrompter creates a prompter that reads from stdin
func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{reader: bufio.NewReader(os.Stdin)}
}

// Prompt displays a prompt and reads user input
func (p *StdinPrompter) Prompt(prompt string) (string, error) {
	fmt.Print(prompt)
	input, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReaderPrompter reads from a provided reader (for testing)
type ReaderPrompter struct {
	reader *bufio.Reader
}

// NewReaderPrompter creates a prompter that reads from the provided reader
func NewReaderPrompter(r io.Reader) *ReaderPrompter {
	return &ReaderPrompter{reader: bufio.NewReader(r)}
}

// Prompt reads input from the reader
func (p *ReaderPrompter) Prompt(prompt string) (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// NewConfigCmd creates the config command
func NewConfigCmd(prompter Prompter) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Configure the transcription pipeline",
		Long:  "Interactive configuration for the transcription pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := prompter
			if p == nil {
				p = NewStdinPrompter()
			}
			return runConfig(cmd, p)
		},
	}
}

func runConfig(cmd *cobra.Command, prompter Prompter) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Transcription Pipeline Configuration")
	fmt.Fprintln(out, "====================================")
	fmt.Fprintln(out, "")

	mediaDir, err := promptRequired(prompter, "Media directory [required]: ")
	if err != nil {
		return err
	}

	dbPath, err := promptRequired(prompter, "Database path [required]: ")
	if err != nil {
		return err
	}

	asrURL, err := promptRequired(prompter, "Transcription API URL [required]: ")
	if err != nil {
		return err
	}

	summaryURL, err := prompter.Prompt("Summarization API URL [optional, Enter for OpenAI default]: ")
	if err != nil {
		return err
	}

	summaryKey, err := prompter.Prompt("Summarization API key [optional, Enter to skip]: ")
	if err != nil {
		return err
	}

	cfg := &pipeline.Config{
		MediaDir:      mediaDir,
		DBPath:        dbPath,
		ASRURL:        asrURL,
		SummaryURL:    summaryURL,
		SummaryAPIKey: summaryKey,
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "Configuration saved to %s\n", path)

	return nil
}

// promptRequired prompts for a required field, returning an error if empty
func promptRequired(prompter Prompter, prompt string) (string, error) {
	value, err := prompter.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("value is required")
	}
	return value, nil
}
