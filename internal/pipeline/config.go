package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default values for optional configuration fields
const (
	DefaultWindowDurationMs = 15000
	DefaultRetryAttempts    = 3
	DefaultRetryBackoffMs   = 1000
	DefaultRateLimitDelayMs = 700
	DefaultPollIntervalMs   = 5000
	DefaultWorkers          = 2
	DefaultMaxFileSizeMB    = 100
	DefaultSummaryModel     = "gpt-4o-mini"
)

// DefaultAllowedFormats is the container/codec allow-list applied by the
// segmenter before any window is produced.
var DefaultAllowedFormats = []string{"wav", "mp3", "m4a", "mp4"}

// Config holds everything the pipeline needs: store location, backend
// endpoints, and the window/retry/rate-limit knobs.
type Config struct {
	MediaDir         string   `json:"media_dir"`
	DBPath           string   `json:"db_path"`
	ASRURL           string   `json:"asr_url"`
	Language         string   `json:"language"`
	SummaryURL       string   `json:"summary_url"`
	SummaryAPIKey    string   `json:"summary_api_key"`
	SummaryModel     string   `json:"summary_model"`
	WindowDurationMs int      `json:"window_duration_ms"`
	RetryAttempts    int      `json:"retry_attempts"`
	RetryBackoffMs   int      `json:"retry_backoff_ms"`
	RateLimitDelayMs int      `json:"rate_limit_delay_ms"`
	PollIntervalMs   int      `json:"poll_interval_ms"`
	Workers          int      `json:"workers"`
	MaxFileSizeMB    int      `json:"max_file_size_mb"`
	AllowedFormats   []string `json:"allowed_formats"`
	LogDir           string   `json:"log_dir"`
}

// Validation errors
var (
	ErrMediaDirRequired = errors.New("media_dir is required")
	ErrDBPathRequired   = errors.New("db_path is required")
	ErrASRURLRequired   = errors.New("asr_url is required")
)

// DefaultConfigPath returns ~/.spoken/config.json.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".spoken", "config.json"), nil
}

// LoadConfig reads and parses the configuration file at path. Paths
// containing ~ are expanded to the user's home directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.expandPaths()
	return &cfg, nil
}

// Save writes the configuration to path with 0644 permissions, creating
// parent directories if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks that all required fields are present.
func (c *Config) Validate() error {
	if c.MediaDir == "" {
		return ErrMediaDirRequired
	}
	if c.DBPath == "" {
		return ErrDBPathRequired
	}
	if c.ASRURL == "" {
		return ErrASRURLRequired
	}
	return nil
}

// ApplyDefaults sets default values for optional fields that are empty
// or zero. Call after loading so every knob has a sensible value.
func (c *Config) ApplyDefaults() {
	if c.WindowDurationMs == 0 {
		c.WindowDurationMs = DefaultWindowDurationMs
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryBackoffMs == 0 {
		c.RetryBackoffMs = DefaultRetryBackoffMs
	}
	if c.RateLimitDelayMs == 0 {
		c.RateLimitDelayMs = DefaultRateLimitDelayMs
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxFileSizeMB == 0 {
		c.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if len(c.AllowedFormats) == 0 {
		c.AllowedFormats = append([]string(nil), DefaultAllowedFormats...)
	}
	if c.SummaryModel == "" {
		c.SummaryModel = DefaultSummaryModel
	}
}

// expandPaths expands ~ to the user's home directory in path fields.
func (c *Config) expandPaths() {
	c.MediaDir = expandTilde(c.MediaDir)
	c.DBPath = expandTilde(c.DBPath)
	c.LogDir = expandTilde(c.LogDir)
}

// expandTilde expands ~ at the beginning of a path to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
