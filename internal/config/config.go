package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	BackupDir string `toml:"backup_dir"`
	LogDir    string `toml:"log_dir"`
}

// Thresholds gates autonomous execution on decision confidence.
type Thresholds struct {
	// AutoExecute is the confidence at or above which a decision runs without review.
	AutoExecute float64 `toml:"auto_execute"`
	// Review is the confidence at or above which a decision is queued for manual review.
	// Anything below is skipped.
	Review float64 `toml:"review"`
}

// Scoring overrides entries in the built-in risk tables.
type Scoring struct {
	TypeScores     map[string]float64 `toml:"type_scores"`
	LocationScores map[string]float64 `toml:"location_scores"`
	Weights        map[string]int     `toml:"weights"`
}

// Learning contains pattern memory parameters.
type Learning struct {
	DecayRate           float64 `toml:"decay_rate"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	MinConfidence       float64 `toml:"min_confidence"`
}

// Scan contains enumeration filters and the scoring worker count.
type Scan struct {
	Recursive     bool     `toml:"recursive"`
	IncludeHidden bool     `toml:"include_hidden"`
	MaxFiles      int      `toml:"max_files"`
	Workers       int      `toml:"workers"`
	Extensions    []string `toml:"extensions"`
	MinSizeKB     int64    `toml:"min_size_kb"`
	MaxSizeKB     int64    `toml:"max_size_kb"`
}

// Remote contains the S3-compatible object store settings used for
// scheme-prefixed file references.
type Remote struct {
	Enabled         bool   `toml:"enabled"`
	Scheme          string `toml:"scheme"`
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKey       string `toml:"access_key"`
	SecretKey       string `toml:"secret_key"`
	UseSSL          bool   `toml:"use_ssl"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	FolderCacheSize int    `toml:"folder_cache_size"`
}

// Notifications contains configuration for ntfy and Slack run summaries.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	SlackWebhookURL string `toml:"slack_webhook_url"`
	RequestTimeout  int    `toml:"request_timeout"`
	RunSummary      bool   `toml:"run_summary"`
	Errors          bool   `toml:"errors"`
}

// Daemon contains the scheduled organizer settings.
type Daemon struct {
	Schedule   string   `toml:"schedule"`
	Roots      []string `toml:"roots"`
	DryRun     bool     `toml:"dry_run"`
	Duplicates bool     `toml:"duplicates"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sift.
//
// Configuration sections by subsystem:
//   - Paths: data, snapshot backup, and log directories
//   - Thresholds: auto-execution and review gates
//   - Scoring: overrides for the risk scorer tables
//   - Learning: pattern decay and fuzzy match parameters
//   - Scan: enumeration filters and worker pool size
//   - Remote: S3-compatible object store for remote references
//   - Notifications: ntfy / Slack run summaries
//   - Daemon: scheduled organizer runs
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Thresholds    Thresholds    `toml:"thresholds"`
	Scoring       Scoring       `toml:"scoring"`
	Learning      Learning      `toml:"learning"`
	Scan          Scan          `toml:"scan"`
	Remote        Remote        `toml:"remote"`
	Notifications Notifications `toml:"notifications"`
	Daemon        Daemon        `toml:"daemon"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sift/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// A missing .env is the common case.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sift.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, backup, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.BackupDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath is the JSON file holding the rollback ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.DataDir, "ledger.json")
}

// PatternsPath is the JSON file holding learned patterns.
func (c *Config) PatternsPath() string {
	return filepath.Join(c.Paths.DataDir, "patterns.json")
}

// JournalPath is the SQLite audit database.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.DataDir, "journal.db")
}

// LockPath is the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "siftd.lock")
}

// RemoteTimeout returns the bounded timeout applied to each remote store call.
func (c *Config) RemoteTimeout() time.Duration {
	if c.Remote.TimeoutSeconds <= 0 {
		return time.Duration(defaultRemoteTimeoutSeconds) * time.Second
	}
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
