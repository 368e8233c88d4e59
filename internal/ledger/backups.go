package ledger

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sift/internal/logging"
)

// PruneResult contains the outcome of a backup prune.
type PruneResult struct {
	Removed []string
	Errors  []PruneError
}

// PruneError pairs a backup path with its removal error.
type PruneError struct {
	Path  string
	Error error
}

// BackupInfo describes one file in the backup area.
type BackupInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	ActionID int       `json:"action_id"`
	Pending  bool      `json:"pending"`
	ModTime  time.Time `json:"mod_time"`
}

// ListBackups returns every snapshot in the backup area.
func (l *Ledger) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(l.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []BackupInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		b := BackupInfo{
			Name:     entry.Name(),
			Path:     filepath.Join(l.backupDir, entry.Name()),
			ActionID: -1,
			ModTime:  info.ModTime(),
		}
		switch {
		case strings.HasPrefix(b.Name, pendingPrefix):
			b.Pending = true
		case strings.HasPrefix(b.Name, "action_"):
			rest := strings.TrimPrefix(b.Name, "action_")
			if idx := strings.IndexByte(rest, '_'); idx > 0 {
				if id, err := strconv.Atoi(rest[:idx]); err == nil {
					b.ActionID = id
				}
			}
		default:
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// PruneBackups removes snapshots older than maxAge that no executed entry
// still needs: pending leftovers and snapshots of undone or cleared entries.
func (l *Ledger) PruneBackups(maxAge time.Duration) (PruneResult, error) {
	result := PruneResult{}

	doc, err := l.read()
	if err != nil {
		return result, err
	}
	live := make(map[string]struct{})
	for _, e := range doc.Entries {
		if e.Type == ActionDelete && e.Status == StatusExecuted {
			live[l.backupPath(e.ID, e.Source)] = struct{}{}
			if e.Backup != "" {
				live[e.Backup] = struct{}{}
			}
		}
	}

	backups, err := l.ListBackups()
	if err != nil {
		return result, err
	}
	cutoff := l.now().Add(-maxAge)
	for _, b := range backups {
		if _, ok := live[b.Path]; ok {
			continue
		}
		if !b.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(b.Path); err != nil {
			result.Errors = append(result.Errors, PruneError{Path: b.Path, Error: err})
			l.logger.Warn("failed to remove stale snapshot",
				logging.String(logging.FieldPath, b.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "backup_prune_failed"),
				logging.String(logging.FieldErrorHint, "check backup_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, b.Path)
		l.logger.Info("removed stale snapshot",
			logging.String(logging.FieldPath, b.Path),
			logging.Duration("age", l.now().Sub(b.ModTime)),
			logging.String(logging.FieldEventType, "backup_prune"),
		)
	}
	return result, nil
}
