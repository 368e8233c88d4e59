package testsupport

import (
	"path/filepath"
	"testing"

	"sift/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.BackupDir = filepath.Join(base, "data", "backups")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Scan.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithThresholds overrides the execution gates.
func WithThresholds(auto, review float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Thresholds.AutoExecute = auto
		b.cfg.Thresholds.Review = review
	}
}

// WithRemote enables the remote section with placeholder credentials.
func WithRemote() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.Enabled = true
		b.cfg.Remote.Endpoint = "localhost:9000"
		b.cfg.Remote.Bucket = "sift-test"
		b.cfg.Remote.AccessKey = "test"
		b.cfg.Remote.SecretKey = "test"
		b.cfg.Remote.UseSSL = false
	}
}

// WithDryRunDaemon sets the daemon roots and dry-run flag.
func WithDryRunDaemon(dryRun bool, roots ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.DryRun = dryRun
		b.cfg.Daemon.Roots = roots
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
