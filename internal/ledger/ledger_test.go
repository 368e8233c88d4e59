package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sift/internal/services"
)

func newLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := Open(Options{
		Path:      filepath.Join(dir, "data", "ledger.json"),
		BackupDir: filepath.Join(dir, "data", "backups"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func moveAndRecord(t *testing.T, l *Ledger, src, dst string) int {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(src, dst); err != nil {
		t.Fatal(err)
	}
	id, err := l.Record(Entry{Type: ActionMove, Source: src, Destination: dst})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	return id
}

func TestRecordAssignsMonotonicIDs(t *testing.T) {
	l, _ := newLedger(t)
	for want := range 3 {
		id, err := l.Record(Entry{Type: ActionCopy, Source: "/a", Destination: "/b"})
		if err != nil {
			t.Fatal(err)
		}
		if id != want {
			t.Fatalf("id = %d, want %d", id, want)
		}
	}

	entry, err := l.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != StatusExecuted || entry.Timestamp.IsZero() {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, err := l.Get(42); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordValidation(t *testing.T) {
	l, _ := newLedger(t)
	bad := []Entry{
		{Type: "shred", Source: "/a"},
		{Type: ActionMove, Source: "/a"},
		{Type: ActionDelete},
	}
	for _, e := range bad {
		if _, err := l.Record(e); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Record(%+v) error = %v, want validation", e, err)
		}
	}
}

func TestMoveRoundTrip(t *testing.T) {
	l, dir := newLedger(t)
	src := filepath.Join(dir, "tmp", "src", "report.pdf")
	dst := filepath.Join(dir, "tmp", "archive", "report.pdf")
	writeFile(t, src, "quarterly numbers")

	id := moveAndRecord(t, l, src, dst)

	result, err := l.Undo([]int{id}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Undone) != 1 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := readFile(t, src); got != "quarterly numbers" {
		t.Fatalf("restored content = %q", got)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should be gone, stat err = %v", err)
	}
	entry, err := l.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != StatusUndone || entry.UndoneAt == nil {
		t.Fatalf("status not updated: %+v", entry)
	}
}

func TestMoveUndoMovesOccupantAside(t *testing.T) {
	l, dir := newLedger(t)
	src := filepath.Join(dir, "in", "notes.txt")
	dst := filepath.Join(dir, "out", "notes.txt")
	writeFile(t, src, "original")
	id := moveAndRecord(t, l, src, dst)
	writeFile(t, src, "newcomer")

	result, err := l.Undo([]int{id}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Undone) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := readFile(t, src); got != "original" {
		t.Fatalf("source content = %q", got)
	}
	if got := readFile(t, src+".backup"); got != "newcomer" {
		t.Fatalf("aside content = %q", got)
	}
}

func TestDeleteRoundTrip(t *testing.T) {
	l, dir := newLedger(t)
	src := filepath.Join(dir, "docs", "x.txt")
	writeFile(t, src, "hello")

	snap, err := l.Snapshot(src)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := os.Remove(src); err != nil {
		t.Fatal(err)
	}
	id, err := l.RecordDelete(Entry{Source: src}, snap)
	if err != nil {
		t.Fatalf("RecordDelete: %v", err)
	}

	backup := filepath.Join(l.BackupDir(), "action_0_x.txt")
	if id != 0 || readFile(t, backup) != "hello" {
		t.Fatalf("snapshot not claimed as %s", backup)
	}

	result, err := l.Undo([]int{id}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Undone) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := readFile(t, src); got != "hello" {
		t.Fatalf("restored content = %q", got)
	}
}

func TestUndoDeleteWithoutSnapshotFails(t *testing.T) {
	l, dir := newLedger(t)
	id, err := l.Record(Entry{Type: ActionDelete, Source: filepath.Join(dir, "gone.txt")})
	if err != nil {
		t.Fatal(err)
	}
	result, err := l.Undo([]int{id}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Failed) != 1 || !errors.Is(result.Failed[0].Err, services.ErrRollbackImpossible) {
		t.Fatalf("expected rollback impossible, got %+v", result)
	}
}

func TestUndoCopyRemovesTree(t *testing.T) {
	l, dir := newLedger(t)
	dst := filepath.Join(dir, "copy")
	writeFile(t, filepath.Join(dst, "nested", "a.txt"), "a")
	id, err := l.Record(Entry{Type: ActionCopy, Source: filepath.Join(dir, "orig"), Destination: dst})
	if err != nil {
		t.Fatal(err)
	}
	result, err := l.Undo([]int{id}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Undone) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("copy should be removed, stat err = %v", err)
	}
}

func TestBatchUndoPartialFailure(t *testing.T) {
	l, dir := newLedger(t)
	id0 := moveAndRecord(t, l, writeAndReturn(t, filepath.Join(dir, "a", "one.txt")), filepath.Join(dir, "b", "one.txt"))
	id1 := moveAndRecord(t, l, writeAndReturn(t, filepath.Join(dir, "a", "two.txt")), filepath.Join(dir, "b", "two.txt"))

	result, err := l.Undo([]int{id0, id0, id1}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Undone) != 2 || len(result.Failed) != 1 {
		t.Fatalf("undone=%d failed=%d, want 2/1", len(result.Undone), len(result.Failed))
	}
	if result.Failed[0].ID != id0 || !errors.Is(result.Failed[0].Err, services.ErrRollbackImpossible) {
		t.Fatalf("unexpected failure: %+v", result.Failed[0])
	}
}

func writeAndReturn(t *testing.T, path string) string {
	t.Helper()
	writeFile(t, path, filepath.Base(path))
	return path
}

func TestUndoPreviewDoesNotMutate(t *testing.T) {
	l, dir := newLedger(t)
	src := filepath.Join(dir, "a", "report.pdf")
	dst := filepath.Join(dir, "b", "report.pdf")
	writeFile(t, src, "pdf")
	id := moveAndRecord(t, l, src, dst)

	result, err := l.Undo([]int{id, 99}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Undone) != 1 || !result.Undone[0].Preview {
		t.Fatalf("unexpected preview result: %+v", result)
	}
	if len(result.Failed) != 1 || !errors.Is(result.Failed[0].Err, services.ErrNotFound) {
		t.Fatalf("expected not-found failure: %+v", result.Failed)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("preview must not move files: %v", err)
	}
	entry, _ := l.Get(id)
	if entry.Status != StatusExecuted {
		t.Fatalf("preview must not change status: %s", entry.Status)
	}

	// Preview validation matches the real run.
	if err := os.Remove(dst); err != nil {
		t.Fatal(err)
	}
	result, err = l.Undo([]int{id}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("preview should report missing destination: %+v", result)
	}
}

func TestRemoteEntriesCannotBeUndone(t *testing.T) {
	l, _ := newLedger(t)
	id, err := l.Record(Entry{Type: ActionMove, Source: "remote:abc", Destination: "remote:folder/xyz", Remote: true})
	if err != nil {
		t.Fatal(err)
	}
	result, err := l.Undo([]int{id}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Failed) != 1 || !errors.Is(result.Failed[0].Err, services.ErrRollbackImpossible) {
		t.Fatalf("expected rollback impossible: %+v", result)
	}
}

func TestHistoryFilterAndPagination(t *testing.T) {
	l, _ := newLedger(t)
	for i := range 5 {
		typ := ActionCopy
		if i%2 == 0 {
			typ = ActionDelete
		}
		if _, err := l.Record(Entry{Type: typ, Source: "/s", Destination: "/d"}); err != nil {
			t.Fatal(err)
		}
	}

	deletes, err := l.History(Filter{Type: ActionDelete})
	if err != nil {
		t.Fatal(err)
	}
	if len(deletes) != 3 || deletes[0].ID != 0 || deletes[2].ID != 4 {
		t.Fatalf("unexpected delete history: %+v", deletes)
	}

	page, err := l.History(Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != 1 || page[1].ID != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}

	empty, err := l.History(Filter{Offset: 10})
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty page, got %v %v", empty, err)
	}
}

func TestClearKeepsIDsMonotonic(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	l, err := Open(Options{Path: filepath.Join(dir, "ledger.json"), Clock: func() time.Time { return now }})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Record(Entry{Type: ActionCopy, Source: "/a", Destination: "/b"}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(48 * time.Hour)
	if _, err := l.Record(Entry{Type: ActionCopy, Source: "/a", Destination: "/c"}); err != nil {
		t.Fatal(err)
	}

	cleared, err := l.Clear(now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}

	cleared, err = l.Clear(time.Time{})
	if err != nil || cleared != 1 {
		t.Fatalf("clear all = %d, %v", cleared, err)
	}

	id, err := l.Record(Entry{Type: ActionCopy, Source: "/a", Destination: "/d"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Fatalf("id after clear = %d, want 2", id)
	}
	stats, err := l.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.NextID != 3 || stats.ByType[ActionCopy] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestConcurrentRecordsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")
	a, err := Open(Options{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Open(Options{Path: path})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := range 20 {
		l := a
		if i%2 == 1 {
			l = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Record(Entry{Type: ActionCopy, Source: "/s", Destination: "/d"}); err != nil {
				t.Errorf("Record: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := a.History(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Fatalf("entries = %d, want 20", len(entries))
	}
	seen := map[int]bool{}
	for _, e := range entries {
		if seen[e.ID] {
			t.Fatalf("duplicate id %d", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestPruneBackups(t *testing.T) {
	l, dir := newLedger(t)
	live := filepath.Join(dir, "keep.txt")
	writeFile(t, live, "keep")
	snap, err := l.Snapshot(live)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(live); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordDelete(Entry{Source: live}, snap); err != nil {
		t.Fatal(err)
	}

	orphan := filepath.Join(dir, "orphan.txt")
	writeFile(t, orphan, "orphan")
	stale, err := l.Snapshot(orphan)
	if err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(stale.Path(), old, old); err != nil {
		t.Fatal(err)
	}
	liveBackup := filepath.Join(l.BackupDir(), "action_0_keep.txt")
	if err := os.Chtimes(liveBackup, old, old); err != nil {
		t.Fatal(err)
	}

	result, err := l.PruneBackups(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale.Path() {
		t.Fatalf("unexpected prune result: %+v", result)
	}
	if _, err := os.Stat(liveBackup); err != nil {
		t.Fatalf("live snapshot must survive: %v", err)
	}

	backups, err := l.ListBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 || backups[0].ActionID != 0 {
		t.Fatalf("unexpected backups: %+v", backups)
	}
}
