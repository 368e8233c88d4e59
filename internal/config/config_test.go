package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"sift/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "sift")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.BackupDir != filepath.Join(wantData, "backups") {
		t.Fatalf("unexpected backup dir: %q", cfg.Paths.BackupDir)
	}
	if cfg.LedgerPath() != filepath.Join(wantData, "ledger.json") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
	if cfg.Thresholds.AutoExecute != 0.9 || cfg.Thresholds.Review != 0.5 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Learning.DecayRate != 0.1 {
		t.Fatalf("unexpected decay rate: %v", cfg.Learning.DecayRate)
	}
	if cfg.Remote.Scheme != "remote:" {
		t.Fatalf("unexpected remote scheme: %q", cfg.Remote.Scheme)
	}
	if cfg.Remote.Enabled {
		t.Fatal("expected remote disabled by default")
	}
	if !cfg.Daemon.DryRun {
		t.Fatal("expected daemon dry run by default")
	}
}

func TestLoadCustomPathOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
data_dir = "~/sift-data"
backup_dir = "~/sift-data/snapshots"

[thresholds]
auto_execute = 0.95
review = 0.6

[scoring.type_scores]
LOG = 0.2

[scan]
workers = 8
extensions = ["PDF", ".zip", "pdf"]

[daemon]
schedule = "*/15 * * * *"
roots = ["~/Downloads"]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "sift-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Thresholds.AutoExecute != 0.95 {
		t.Fatalf("unexpected auto threshold: %v", cfg.Thresholds.AutoExecute)
	}
	if got := cfg.Scoring.TypeScores[".log"]; got != 0.2 {
		t.Fatalf("expected normalized type score key, got %v (%v)", got, cfg.Scoring.TypeScores)
	}
	if strings.Join(cfg.Scan.Extensions, ",") != ".pdf,.zip" {
		t.Fatalf("unexpected extensions: %v", cfg.Scan.Extensions)
	}
	if cfg.Scan.Workers != 8 {
		t.Fatalf("unexpected workers: %d", cfg.Scan.Workers)
	}
	if len(cfg.Daemon.Roots) != 1 || cfg.Daemon.Roots[0] != filepath.Join(tempHome, "Downloads") {
		t.Fatalf("unexpected daemon roots: %v", cfg.Daemon.Roots)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestEnvironmentFallbacks(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SIFT_REMOTE_ACCESS_KEY", "access")
	t.Setenv("SIFT_REMOTE_SECRET_KEY", "secret")
	t.Setenv("SIFT_NTFY_TOPIC", "https://ntfy.sh/sift")
	t.Setenv("SIFT_AUTO_THRESHOLD", "0.8")

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[remote]
enabled = true
endpoint = "play.min.io"
bucket = "archive"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Remote.AccessKey != "access" || cfg.Remote.SecretKey != "secret" {
		t.Fatalf("expected remote credentials from env, got %+v", cfg.Remote)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/sift" {
		t.Fatalf("unexpected ntfy topic: %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Thresholds.AutoExecute != 0.8 {
		t.Fatalf("expected env auto threshold, got %v", cfg.Thresholds.AutoExecute)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"threshold above one", func(c *config.Config) { c.Thresholds.AutoExecute = 1.2 }, "thresholds.auto_execute"},
		{"review above auto", func(c *config.Config) { c.Thresholds.Review = 0.95 }, "thresholds.review"},
		{"zero decay", func(c *config.Config) { c.Learning.DecayRate = 0 }, "learning.decay_rate"},
		{"no workers", func(c *config.Config) { c.Scan.Workers = 0 }, "scan.workers"},
		{"bad type score", func(c *config.Config) { c.Scoring.TypeScores = map[string]float64{".x": 2} }, "scoring.type_scores"},
		{"remote without bucket", func(c *config.Config) {
			c.Remote.Enabled = true
			c.Remote.Endpoint = "localhost:9000"
		}, "remote.bucket"},
		{"bad schedule", func(c *config.Config) { c.Daemon.Schedule = "whenever" }, "daemon.schedule"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Scan.Workers != 4 {
		t.Fatalf("unexpected workers from sample: %d", cfg.Scan.Workers)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.BackupDir = filepath.Join(base, "data", "backups")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.BackupDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
