package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sift/internal/fileutil"
	"sift/internal/ledger"
	"sift/internal/services"
)

type localTarget struct {
	book *ledger.Ledger
}

func (t *localTarget) Kind() string { return "local" }

func (t *localTarget) ResolveFolder(_ context.Context, folder string) (string, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "executor", "resolve folder", folder, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", services.Wrap(services.ErrNotFound, "executor", "resolve folder", fmt.Sprintf("destination directory %s does not exist", abs), nil)
		}
		return "", services.Wrap(services.ErrExecutionFailed, "executor", "resolve folder", abs, err)
	}
	if !info.IsDir() {
		return "", services.Wrap(services.ErrValidation, "executor", "resolve folder", fmt.Sprintf("%s is not a directory", abs), nil)
	}
	if !fileutil.Writable(abs) {
		return "", services.Wrap(services.ErrExecutionFailed, "executor", "resolve folder", fmt.Sprintf("%s is not writable", abs), nil)
	}
	return abs, nil
}

// CreateFolder refuses: a missing local destination is a hard failure.
func (t *localTarget) CreateFolder(_ context.Context, folder string) (string, error) {
	return "", services.Wrap(services.ErrExecutionFailed, "executor", "create folder",
		fmt.Sprintf("destination directory %s does not exist", folder), nil)
}

func (t *localTarget) Move(_ context.Context, ref, folderID string) (string, error) {
	dest, err := t.prepare(ref, folderID)
	if err != nil {
		return "", err
	}
	if err := fileutil.Move(ref, dest); err != nil {
		return "", services.Wrap(services.ErrExecutionFailed, "executor", "move", ref, err)
	}
	return dest, nil
}

func (t *localTarget) Copy(_ context.Context, ref, folderID string) (string, error) {
	dest, err := t.prepare(ref, folderID)
	if err != nil {
		return "", err
	}
	if err := fileutil.CopyTree(ref, dest); err != nil {
		_ = os.RemoveAll(dest)
		return "", services.Wrap(services.ErrExecutionFailed, "executor", "copy", ref, err)
	}
	return dest, nil
}

func (t *localTarget) prepare(ref, folderID string) (string, error) {
	if !fileutil.Exists(ref) {
		return "", services.Wrap(services.ErrNotFound, "executor", "stat source", ref, nil)
	}
	dest := filepath.Join(folderID, filepath.Base(ref))
	if filepath.Clean(dest) == filepath.Clean(ref) {
		return "", services.Wrap(services.ErrValidation, "executor", "plan", "source is already at the destination", nil)
	}
	if fileutil.Exists(dest) {
		return "", services.Wrap(services.ErrExecutionFailed, "executor", "plan", fmt.Sprintf("destination %s already exists", dest), nil)
	}
	return dest, nil
}

// Delete snapshots ref, removes it, then records the entry. A failed removal
// discards the snapshot; a failed record puts the file back.
func (t *localTarget) Delete(_ context.Context, ref string, metadata map[string]string) (int, error) {
	if !fileutil.Exists(ref) {
		return 0, services.Wrap(services.ErrNotFound, "executor", "stat source", ref, nil)
	}
	snap, err := t.book.Snapshot(ref)
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(ref); err != nil {
		_ = snap.Discard()
		return 0, services.Wrap(services.ErrExecutionFailed, "executor", "delete", ref, err)
	}
	id, err := t.book.RecordDelete(ledger.Entry{Source: ref, Metadata: metadata}, snap)
	if err != nil {
		if restoreErr := snap.Restore(); restoreErr != nil {
			return 0, services.Wrap(services.ErrExecutionFailed, "executor", "delete",
				fmt.Sprintf("record failed and restore failed, snapshot kept at %s", snap.Path()), restoreErr)
		}
		return 0, services.Wrap(services.ErrExecutionFailed, "executor", "delete", "record failed, file restored", err)
	}
	return id, nil
}
