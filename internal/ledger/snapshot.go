package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"sift/internal/fileutil"
	"sift/internal/services"
)

const pendingPrefix = ".pending_"

// Snapshot is a copy of a file taken before it is deleted. It lives under a
// pending name until RecordDelete claims it.
type Snapshot struct {
	path   string
	source string
}

// Path returns the snapshot's current location.
func (s Snapshot) Path() string {
	return s.path
}

// Snapshot copies src into the backup area.
func (l *Ledger) Snapshot(src string) (Snapshot, error) {
	if err := os.MkdirAll(l.backupDir, 0o755); err != nil {
		return Snapshot{}, services.Wrap(services.ErrExecutionFailed, "ledger", "snapshot", "create backup directory", err)
	}
	pending := filepath.Join(l.backupDir, fmt.Sprintf("%s%s_%s", pendingPrefix, uuid.NewString(), filepath.Base(src)))
	if err := fileutil.CopyTree(src, pending); err != nil {
		_ = os.RemoveAll(pending)
		return Snapshot{}, services.Wrap(services.ErrExecutionFailed, "ledger", "snapshot", "copy into backup area", err)
	}
	return Snapshot{path: pending, source: src}, nil
}

// Restore moves the snapshot back to the path it was taken from.
func (s Snapshot) Restore() error {
	if err := os.MkdirAll(filepath.Dir(s.source), 0o755); err != nil {
		return err
	}
	return fileutil.Move(s.path, s.source)
}

// Discard removes an unclaimed snapshot.
func (s Snapshot) Discard() error {
	return os.RemoveAll(s.path)
}
