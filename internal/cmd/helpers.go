package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/backend"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/logging"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/segment"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/store"
)

// configPath resolves the --config flag, falling back to the default location.
func configPath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	return pipeline.DefaultConfigPath()
}

// loadConfig reads, defaults and validates the configuration.
func loadConfig(cmd *cobra.Command) (*pipeline.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := pipeline.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger creates the pipeline file logger, optionally echoing every
// line to echo for foreground runs.
func newLogger(cfg *pipeline.Config, component string, echo io.Writer) (*logging.FileLogger, error) {
	logCfg := logging.DefaultConfig()
	if cfg.LogDir != "" {
		logCfg.LogDir = cfg.LogDir
	}
	logCfg.Component = component
	logCfg.Echo = echo

	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// buildRunner wires the segmenter and both backends into a runner. The
// backends are constructed once here and reused across every file the
// runner processes.
func buildRunner(cfg *pipeline.Config, repo *store.SQLiteRepository, logger *logging.FileLogger) *pipeline.Runner {
	segmenter := segment.New(cfg.WindowDurationMs, cfg.AllowedFormats)

	transcriber := backend.NewWhisperClient(cfg.ASRURL,
		backend.WithLanguage(cfg.Language),
		backend.WithRateLimitDelay(time.Duration(cfg.RateLimitDelayMs)*time.Millisecond),
	)

	summarizer := backend.NewChatSummarizer(backend.SummarizerConfig{
		BaseURL: cfg.SummaryURL,
		APIKey:  cfg.SummaryAPIKey,
		Model:   cfg.SummaryModel,
	})

	return pipeline.NewRunner(repo, segmenter, transcriber, summarizer, logger.WithComponent("runner"),
		pipeline.WithRetryAttempts(cfg.RetryAttempts),
		pipeline.WithRetryBackoff(time.Duration(cfg.RetryBackoffMs)*time.Millisecond),
	)
}
