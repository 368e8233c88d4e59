package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateThresholds(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateLearning(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.BackupDir == "" {
		return errors.New("paths.backup_dir must be set")
	}
	return nil
}

func (c *Config) validateThresholds() error {
	if !unitInterval(c.Thresholds.AutoExecute) {
		return errors.New("thresholds.auto_execute must be between 0 and 1")
	}
	if !unitInterval(c.Thresholds.Review) {
		return errors.New("thresholds.review must be between 0 and 1")
	}
	if c.Thresholds.Review > c.Thresholds.AutoExecute {
		return errors.New("thresholds.review must not exceed thresholds.auto_execute")
	}
	return nil
}

func (c *Config) validateScoring() error {
	for ext, score := range c.Scoring.TypeScores {
		if !unitInterval(score) {
			return fmt.Errorf("scoring.type_scores[%q] must be between 0 and 1", ext)
		}
	}
	for key, score := range c.Scoring.LocationScores {
		if key == "" {
			return errors.New("scoring.location_scores keys must not be empty")
		}
		if !unitInterval(score) {
			return fmt.Errorf("scoring.location_scores[%q] must be between 0 and 1", key)
		}
	}
	for name, weight := range c.Scoring.Weights {
		if weight < 0 {
			return fmt.Errorf("scoring.weights[%q] must be non-negative", name)
		}
	}
	return nil
}

func (c *Config) validateLearning() error {
	if c.Learning.DecayRate <= 0 || c.Learning.DecayRate > 1 {
		return errors.New("learning.decay_rate must be in (0, 1]")
	}
	if !unitInterval(c.Learning.SimilarityThreshold) {
		return errors.New("learning.similarity_threshold must be between 0 and 1")
	}
	if !unitInterval(c.Learning.MinConfidence) {
		return errors.New("learning.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.Workers < 1 {
		return errors.New("scan.workers must be at least 1")
	}
	if c.Scan.MaxFiles < 0 {
		return errors.New("scan.max_files must be non-negative")
	}
	if c.Scan.MinSizeKB < 0 || c.Scan.MaxSizeKB < 0 {
		return errors.New("scan size filters must be non-negative")
	}
	if c.Scan.MaxSizeKB > 0 && c.Scan.MinSizeKB > c.Scan.MaxSizeKB {
		return errors.New("scan.min_size_kb must not exceed scan.max_size_kb")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if !c.Remote.Enabled {
		return nil
	}
	if c.Remote.Endpoint == "" {
		return errors.New("remote.endpoint must be set when remote is enabled")
	}
	if c.Remote.Bucket == "" {
		return errors.New("remote.bucket must be set when remote is enabled")
	}
	if c.Remote.AccessKey == "" || c.Remote.SecretKey == "" {
		return errors.New("remote credentials are required when remote is enabled (set SIFT_REMOTE_ACCESS_KEY and SIFT_REMOTE_SECRET_KEY)")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if _, err := cron.ParseStandard(c.Daemon.Schedule); err != nil {
		return fmt.Errorf("daemon.schedule: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func unitInterval(value float64) bool {
	return value >= 0 && value <= 1
}
