package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"sift/internal/fileutil"
	"sift/internal/logging"
	"sift/internal/services"
)

const asideSuffix = ".backup"

// Undo reverses the given ids in order. Each id succeeds or fails on its
// own; a repeated id fails as already undone. With preview set the same
// checks run but nothing on disk or in the ledger changes. The error is
// reserved for ledger storage failures.
func (l *Ledger) Undo(ids []int, preview bool) (UndoResult, error) {
	result := UndoResult{Undone: []Outcome{}, Failed: []Outcome{}}

	err := l.update(func(doc *document) (bool, error) {
		seen := make(map[int]bool, len(ids))
		changed := false
		for _, id := range ids {
			idx := doc.index(id)
			if idx < 0 {
				result.Failed = append(result.Failed, failure(Outcome{ID: id},
					services.Wrap(services.ErrNotFound, "ledger", "undo", fmt.Sprintf("action %d", id), nil)))
				continue
			}
			entry := doc.Entries[idx]
			outcome := Outcome{
				ID:          id,
				Type:        entry.Type,
				Source:      entry.Source,
				Destination: entry.Destination,
				Preview:     preview,
			}
			if entry.Status == StatusUndone || seen[id] {
				result.Failed = append(result.Failed, failure(outcome,
					services.Wrap(services.ErrRollbackImpossible, "ledger", "undo", "already undone", nil)))
				continue
			}

			apply, err := l.plan(entry)
			if err != nil {
				result.Failed = append(result.Failed, failure(outcome, err))
				continue
			}
			if preview {
				seen[id] = true
				result.Undone = append(result.Undone, outcome)
				continue
			}
			if err := apply(); err != nil {
				result.Failed = append(result.Failed, failure(outcome,
					services.Wrap(services.ErrExecutionFailed, "ledger", "undo", entry.Describe(), err)))
				continue
			}

			now := l.now()
			entry.Status = StatusUndone
			entry.UndoneAt = &now
			doc.Entries[idx] = entry
			seen[id] = true
			changed = true
			result.Undone = append(result.Undone, outcome)

			l.logger.Info("action undone",
				logging.String(logging.FieldEventType, "ledger_undone"),
				logging.Int(logging.FieldActionID, id),
				logging.String("type", string(entry.Type)),
				logging.String(logging.FieldPath, entry.Source),
			)
		}
		return changed, nil
	})
	if err != nil {
		return result, err
	}

	for _, f := range result.Failed {
		l.logger.Warn("undo failed",
			logging.String(logging.FieldEventType, "ledger_undo_failed"),
			logging.Int(logging.FieldActionID, f.ID),
			logging.String("reason", f.Reason),
			logging.String(logging.FieldErrorHint, "inspect the entry with sift history show"),
			logging.Bool("preview", preview),
		)
	}
	return result, nil
}

func failure(o Outcome, err error) Outcome {
	o.Err = err
	o.Reason = services.Reason(err)
	return o
}

// plan validates that entry can be reversed and returns the mutation that
// does it. Validation must not touch the filesystem beyond stat calls.
func (l *Ledger) plan(entry Entry) (func() error, error) {
	if entry.Remote {
		return nil, services.Wrap(services.ErrRollbackImpossible, "ledger", "undo", "remote actions cannot be undone", nil)
	}
	switch entry.Type {
	case ActionMove:
		if !fileutil.Exists(entry.Destination) {
			return nil, services.Wrap(services.ErrRollbackImpossible, "ledger", "undo",
				fmt.Sprintf("moved file no longer at %s", entry.Destination), nil)
		}
		aside, err := asidePath(entry.Source)
		if err != nil {
			return nil, err
		}
		return func() error { return restore(entry.Destination, entry.Source, aside) }, nil

	case ActionDelete:
		backup := entry.Backup
		if backup == "" {
			backup = l.backupPath(entry.ID, entry.Source)
		}
		if !fileutil.Exists(backup) {
			return nil, services.Wrap(services.ErrRollbackImpossible, "ledger", "undo",
				fmt.Sprintf("no snapshot at %s", backup), nil)
		}
		aside, err := asidePath(entry.Source)
		if err != nil {
			return nil, err
		}
		return func() error { return restore(backup, entry.Source, aside) }, nil

	case ActionCopy:
		if !fileutil.Exists(entry.Destination) {
			return nil, services.Wrap(services.ErrRollbackImpossible, "ledger", "undo",
				fmt.Sprintf("copy no longer at %s", entry.Destination), nil)
		}
		return func() error { return os.RemoveAll(entry.Destination) }, nil
	}
	return nil, services.Wrap(services.ErrRollbackImpossible, "ledger", "undo", fmt.Sprintf("unknown action type %q", entry.Type), nil)
}

// asidePath returns where an occupant of original must go, or "" when the
// path is free.
func asidePath(original string) (string, error) {
	if !fileutil.Exists(original) {
		return "", nil
	}
	aside := original + asideSuffix
	if fileutil.Exists(aside) {
		return "", services.Wrap(services.ErrRollbackImpossible, "ledger", "undo",
			fmt.Sprintf("%s is occupied and %s already exists", original, aside), nil)
	}
	return aside, nil
}

// restore moves from back to original, first moving any occupant aside.
func restore(from, original, aside string) error {
	if aside != "" {
		if err := fileutil.Move(original, aside); err != nil {
			return fmt.Errorf("move occupant aside: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(original), 0o755); err != nil {
		return fmt.Errorf("recreate parent directory: %w", err)
	}
	if err := fileutil.Move(from, original); err != nil {
		if aside != "" {
			_ = fileutil.Move(aside, original)
		}
		return err
	}
	return nil
}
