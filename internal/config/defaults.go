package config

const (
	defaultDataDir               = "~/.local/share/sift"
	defaultBackupDir             = "~/.local/share/sift/backups"
	defaultLogDir                = "~/.local/share/sift/logs"
	defaultAutoExecuteThreshold  = 0.9
	defaultReviewThreshold       = 0.5
	defaultDecayRate             = 0.1
	defaultSimilarityThreshold   = 0.7
	defaultScanMaxFiles          = 10000
	defaultScanWorkers           = 4
	defaultRemoteScheme          = "remote:"
	defaultRemoteRegion          = "us-east-1"
	defaultRemoteTimeoutSeconds  = 30
	defaultRemoteFolderCacheSize = 256
	defaultNotifyRequestTimeout  = 10
	defaultDaemonSchedule        = "@every 1h"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			BackupDir: defaultBackupDir,
			LogDir:    defaultLogDir,
		},
		Thresholds: Thresholds{
			AutoExecute: defaultAutoExecuteThreshold,
			Review:      defaultReviewThreshold,
		},
		Learning: Learning{
			DecayRate:           defaultDecayRate,
			SimilarityThreshold: defaultSimilarityThreshold,
		},
		Scan: Scan{
			Recursive: true,
			MaxFiles:  defaultScanMaxFiles,
			Workers:   defaultScanWorkers,
		},
		Remote: Remote{
			Scheme:          defaultRemoteScheme,
			Region:          defaultRemoteRegion,
			UseSSL:          true,
			TimeoutSeconds:  defaultRemoteTimeoutSeconds,
			FolderCacheSize: defaultRemoteFolderCacheSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunSummary:     true,
			Errors:         true,
		},
		Daemon: Daemon{
			Schedule: defaultDaemonSchedule,
			DryRun:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
