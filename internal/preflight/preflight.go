package preflight

import (
	"context"
	"time"

	"sift/internal/config"
	"sift/internal/remote"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes all applicable preflight checks for the given config.
// adapter may be nil when remote is disabled.
func RunAll(ctx context.Context, cfg *config.Config, adapter remote.Adapter) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Backup directory", cfg.Paths.BackupDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDaemonLock(cfg.LockPath()),
	}

	for _, root := range cfg.Daemon.Roots {
		results = append(results, CheckRoot(root))
	}

	if cfg.Remote.Enabled {
		results = append(results, CheckRemote(ctx, adapter, cfg.RemoteTimeout()))
	}

	results = append(results, CheckNotifications(cfg.Notifications))
	return results
}

// CheckNotifications reports which notification targets are configured. It
// never fails; notifications are optional.
func CheckNotifications(cfg config.Notifications) Result {
	const name = "Notifications"
	switch {
	case cfg.NtfyTopic != "" && cfg.SlackWebhookURL != "":
		return Result{Name: name, Passed: true, Detail: "ntfy and Slack"}
	case cfg.NtfyTopic != "":
		return Result{Name: name, Passed: true, Detail: "ntfy"}
	case cfg.SlackWebhookURL != "":
		return Result{Name: name, Passed: true, Detail: "Slack"}
	default:
		return Result{Name: name, Passed: true, Detail: "disabled"}
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
