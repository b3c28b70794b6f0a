package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{
  "media_dir": "/var/spoken/media",
  "db_path": "/var/spoken/spoken.db",
  "asr_url": "http://localhost:9000",
  "language": "ja",
  "window_duration_ms": 10000
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.MediaDir != "/var/spoken/media" {
		t.Errorf("MediaDir = %q", cfg.MediaDir)
	}
	if cfg.ASRURL != "http://localhost:9000" {
		t.Errorf("ASRURL = %q", cfg.ASRURL)
	}
	if cfg.Language != "ja" {
		t.Errorf("Language = %q", cfg.Language)
	}
	if cfg.WindowDurationMs != 10000 {
		t.Errorf("WindowDurationMs = %d", cfg.WindowDurationMs)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "missing media dir",
			cfg:     Config{DBPath: "/db", ASRURL: "http://a"},
			wantErr: ErrMediaDirRequired,
		},
		{
			name:    "missing db path",
			cfg:     Config{MediaDir: "/m", ASRURL: "http://a"},
			wantErr: ErrDBPathRequired,
		},
		{
			name:    "missing asr url",
			cfg:     Config{MediaDir: "/m", DBPath: "/db"},
			wantErr: ErrASRURLRequired,
		},
		{
			name: "complete",
			cfg:  Config{MediaDir: "/m", DBPath: "/db", ASRURL: "http://a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{MediaDir: "/m", DBPath: "/db", ASRURL: "http://a"}
	cfg.ApplyDefaults()

	if cfg.WindowDurationMs != DefaultWindowDurationMs {
		t.Errorf("WindowDurationMs = %d, want %d", cfg.WindowDurationMs, DefaultWindowDurationMs)
	}
	if cfg.RetryAttempts != DefaultRetryAttempts {
		t.Errorf("RetryAttempts = %d, want %d", cfg.RetryAttempts, DefaultRetryAttempts)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.SummaryModel != DefaultSummaryModel {
		t.Errorf("SummaryModel = %q, want %q", cfg.SummaryModel, DefaultSummaryModel)
	}
	if len(cfg.AllowedFormats) != len(DefaultAllowedFormats) {
		t.Errorf("AllowedFormats = %v", cfg.AllowedFormats)
	}
}

func TestConfigApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		WindowDurationMs: 30000,
		Workers:          8,
		AllowedFormats:   []string{"wav"},
	}
	cfg.ApplyDefaults()

	if cfg.WindowDurationMs != 30000 {
		t.Errorf("WindowDurationMs = %d, want explicit 30000", cfg.WindowDurationMs)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want explicit 8", cfg.Workers)
	}
	if len(cfg.AllowedFormats) != 1 || cfg.AllowedFormats[0] != "wav" {
		t.Errorf("AllowedFormats = %v, want [wav]", cfg.AllowedFormats)
	}
}

func TestConfigSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Config{
		MediaDir: "/m",
		DBPath:   "/db",
		ASRURL:   "http://localhost:9000",
		Workers:  4,
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.ASRURL != cfg.ASRURL || loaded.Workers != cfg.Workers {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/media", filepath.Join(home, "media")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := expandTilde(tt.in); got != tt.want {
			t.Errorf("expandTilde(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
