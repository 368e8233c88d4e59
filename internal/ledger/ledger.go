package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"sift/internal/fileutil"
	"sift/internal/logging"
	"sift/internal/services"
)

type document struct {
	NextID  int     `json:"next_id"`
	Entries []Entry `json:"entries"`
}

func (d *document) index(id int) int {
	for i, e := range d.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Options configures a Ledger.
type Options struct {
	Path      string
	BackupDir string
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Ledger is the persistent action log. Safe for concurrent use.
type Ledger struct {
	path      string
	backupDir string
	now       func() time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	fileLock *flock.Flock
}

// Open prepares the ledger file and backup area.
func Open(opts Options) (*Ledger, error) {
	if opts.Path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "ledger path is required", nil)
	}
	if opts.BackupDir == "" {
		opts.BackupDir = filepath.Join(filepath.Dir(opts.Path), "backups")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	if err := os.MkdirAll(opts.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Ledger{
		path:      opts.Path,
		backupDir: opts.BackupDir,
		now:       opts.Clock,
		logger:    logging.NewComponentLogger(opts.Logger, "ledger"),
		fileLock:  flock.New(opts.Path + ".lock"),
	}, nil
}

// BackupDir returns the snapshot directory.
func (l *Ledger) BackupDir() string {
	return l.backupDir
}

// Record appends an executed entry and returns its id.
func (l *Ledger) Record(entry Entry) (int, error) {
	if err := entry.validate(); err != nil {
		return 0, services.Wrap(services.ErrValidation, "ledger", "record", "invalid entry", err)
	}
	var id int
	err := l.update(func(doc *document) (bool, error) {
		id = l.appendLocked(doc, entry)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	l.logRecorded(id, entry)
	return id, nil
}

// RecordDelete appends a delete entry and claims snap as its backup. On
// failure the snapshot stays pending so the caller can restore from it.
func (l *Ledger) RecordDelete(entry Entry, snap Snapshot) (int, error) {
	entry.Type = ActionDelete
	if err := entry.validate(); err != nil {
		return 0, services.Wrap(services.ErrValidation, "ledger", "record delete", "invalid entry", err)
	}
	if snap.path == "" {
		return 0, services.Wrap(services.ErrValidation, "ledger", "record delete", "snapshot is required", nil)
	}

	var (
		id    int
		final string
	)
	err := l.update(func(doc *document) (bool, error) {
		id = doc.NextID
		target := l.backupPath(id, entry.Source)
		if err := os.Rename(snap.path, target); err != nil {
			return false, fmt.Errorf("claim snapshot: %w", err)
		}
		final = target
		entry.Backup = final
		l.appendLocked(doc, entry)
		return true, nil
	})
	if err != nil {
		// Hand the snapshot back if the save failed after it was claimed.
		if final != "" {
			_ = os.Rename(final, snap.path)
		}
		return 0, err
	}
	l.logRecorded(id, entry)
	return id, nil
}

func (l *Ledger) appendLocked(doc *document, entry Entry) int {
	entry.ID = doc.NextID
	doc.NextID++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	entry.Status = StatusExecuted
	entry.UndoneAt = nil
	entry.Metadata = maps.Clone(entry.Metadata)
	doc.Entries = append(doc.Entries, entry)
	return entry.ID
}

func (l *Ledger) logRecorded(id int, entry Entry) {
	l.logger.Info("action recorded",
		logging.String(logging.FieldEventType, "ledger_recorded"),
		logging.Int(logging.FieldActionID, id),
		logging.String("type", string(entry.Type)),
		logging.String(logging.FieldPath, entry.Source),
		logging.Bool("remote", entry.Remote),
	)
}

func (l *Ledger) backupPath(id int, source string) string {
	return filepath.Join(l.backupDir, fmt.Sprintf("action_%d_%s", id, filepath.Base(source)))
}

// Get returns a single entry.
func (l *Ledger) Get(id int) (Entry, error) {
	doc, err := l.read()
	if err != nil {
		return Entry{}, err
	}
	idx := doc.index(id)
	if idx < 0 {
		return Entry{}, services.Wrap(services.ErrNotFound, "ledger", "get", fmt.Sprintf("action %d", id), nil)
	}
	return doc.Entries[idx], nil
}

// History returns entries oldest first, filtered and paginated. A zero
// Limit returns everything after Offset.
func (l *Ledger) History(filter Filter) ([]Entry, error) {
	doc, err := l.read()
	if err != nil {
		return nil, err
	}
	var filtered []Entry
	for _, e := range doc.Entries {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		filtered = append(filtered, e)
	}
	offset := max(filter.Offset, 0)
	if offset >= len(filtered) {
		return []Entry{}, nil
	}
	filtered = filtered[offset:]
	if filter.Limit > 0 && filter.Limit < len(filtered) {
		filtered = filtered[:filter.Limit]
	}
	return filtered, nil
}

// Clear drops entries recorded before the cutoff, or all entries when before
// is zero. Ids are never reused afterwards. Snapshot files are left for
// PruneBackups.
func (l *Ledger) Clear(before time.Time) (int, error) {
	cleared := 0
	err := l.update(func(doc *document) (bool, error) {
		if before.IsZero() {
			cleared = len(doc.Entries)
			doc.Entries = nil
			return true, nil
		}
		kept := doc.Entries[:0]
		for _, e := range doc.Entries {
			if e.Timestamp.Before(before) {
				cleared++
				continue
			}
			kept = append(kept, e)
		}
		doc.Entries = kept
		return cleared > 0, nil
	})
	if err != nil {
		return 0, err
	}
	l.logger.Info("history cleared",
		logging.String(logging.FieldEventType, "ledger_cleared"),
		logging.Int("cleared", cleared),
	)
	return cleared, nil
}

// Stats summarizes the ledger.
func (l *Ledger) Stats() (Stats, error) {
	doc, err := l.read()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{ByType: map[ActionType]int{}, Total: len(doc.Entries), NextID: doc.NextID}
	for _, e := range doc.Entries {
		stats.ByType[e.Type]++
		switch e.Status {
		case StatusExecuted:
			stats.Executed++
		case StatusUndone:
			stats.Undone++
		}
		if e.Remote {
			stats.Remote++
		}
	}
	return stats, nil
}

// update runs fn against a freshly loaded document while holding both locks
// and saves the result when fn reports a change.
func (l *Ledger) update(fn func(doc *document) (bool, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.fileLock.Lock(); err != nil {
		return services.Wrap(services.ErrExecutionFailed, "ledger", "lock", "acquire ledger lock", err)
	}
	defer func() {
		_ = l.fileLock.Unlock()
	}()

	doc, err := l.load()
	if err != nil {
		return err
	}
	changed, err := fn(&doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return l.save(doc)
}

func (l *Ledger) read() (document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.fileLock.RLock(); err != nil {
		return document{}, services.Wrap(services.ErrExecutionFailed, "ledger", "lock", "acquire ledger lock", err)
	}
	defer func() {
		_ = l.fileLock.Unlock()
	}()
	return l.load()
}

func (l *Ledger) load() (document, error) {
	var doc document
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse ledger: %w", err)
	}
	for _, e := range doc.Entries {
		if e.ID >= doc.NextID {
			doc.NextID = e.ID + 1
		}
	}
	return doc, nil
}

func (l *Ledger) save(doc document) error {
	if doc.Entries == nil {
		doc.Entries = []Entry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := fileutil.WriteFileAtomic(l.path, data, 0o644); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}
