package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeThresholds(); err != nil {
		return err
	}
	c.normalizeScoring()
	c.normalizeScan()
	c.normalizeRemote()
	c.normalizeNotifications()
	if err := c.normalizeDaemon(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BackupDir) == "" {
		c.Paths.BackupDir = defaultBackupDir
	}
	if c.Paths.BackupDir, err = expandPath(c.Paths.BackupDir); err != nil {
		return fmt.Errorf("paths.backup_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeThresholds() error {
	if value, ok := os.LookupEnv("SIFT_AUTO_THRESHOLD"); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("SIFT_AUTO_THRESHOLD: %w", err)
		}
		c.Thresholds.AutoExecute = parsed
	}
	return nil
}

func (c *Config) normalizeScoring() {
	c.Scoring.TypeScores = lowerKeys(c.Scoring.TypeScores, func(key string) string {
		if key != "" && !strings.HasPrefix(key, ".") {
			return "." + key
		}
		return key
	})
	c.Scoring.LocationScores = lowerKeys(c.Scoring.LocationScores, nil)
	if len(c.Scoring.Weights) > 0 {
		weights := make(map[string]int, len(c.Scoring.Weights))
		for key, value := range c.Scoring.Weights {
			weights[strings.ToLower(strings.TrimSpace(key))] = value
		}
		c.Scoring.Weights = weights
	}
}

func lowerKeys(values map[string]float64, fix func(string) string) map[string]float64 {
	if len(values) == 0 {
		return values
	}
	out := make(map[string]float64, len(values))
	for key, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if fix != nil {
			normalized = fix(normalized)
		}
		out[normalized] = value
	}
	return out
}

func (c *Config) normalizeScan() {
	if len(c.Scan.Extensions) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(c.Scan.Extensions))
	exts := make([]string, 0, len(c.Scan.Extensions))
	for _, ext := range c.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Scan.Extensions = exts
}

func (c *Config) normalizeRemote() {
	c.Remote.Scheme = strings.TrimSpace(c.Remote.Scheme)
	if c.Remote.Scheme == "" {
		c.Remote.Scheme = defaultRemoteScheme
	}
	c.Remote.Endpoint = strings.TrimSpace(c.Remote.Endpoint)
	c.Remote.Bucket = strings.TrimSpace(c.Remote.Bucket)
	c.Remote.Region = strings.TrimSpace(c.Remote.Region)
	if c.Remote.AccessKey == "" {
		if value, ok := os.LookupEnv("SIFT_REMOTE_ACCESS_KEY"); ok {
			c.Remote.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Remote.SecretKey == "" {
		if value, ok := os.LookupEnv("SIFT_REMOTE_SECRET_KEY"); ok {
			c.Remote.SecretKey = strings.TrimSpace(value)
		}
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultRemoteTimeoutSeconds
	}
	if c.Remote.FolderCacheSize <= 0 {
		c.Remote.FolderCacheSize = defaultRemoteFolderCacheSize
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SIFT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.SlackWebhookURL = strings.TrimSpace(c.Notifications.SlackWebhookURL)
	if c.Notifications.SlackWebhookURL == "" {
		if value, ok := os.LookupEnv("SIFT_SLACK_WEBHOOK_URL"); ok {
			c.Notifications.SlackWebhookURL = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeDaemon() error {
	c.Daemon.Schedule = strings.TrimSpace(c.Daemon.Schedule)
	if c.Daemon.Schedule == "" {
		c.Daemon.Schedule = defaultDaemonSchedule
	}
	roots := make([]string, 0, len(c.Daemon.Roots))
	for _, root := range c.Daemon.Roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(root))
		if err != nil {
			return fmt.Errorf("daemon.roots: %w", err)
		}
		roots = append(roots, expanded)
	}
	c.Daemon.Roots = roots
	return nil
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("SIFT_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
