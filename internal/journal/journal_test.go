package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sift/internal/patterns"
	"sift/internal/risk"
	"sift/internal/services"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	versions, err := store.Versions(context.Background())
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 || versions[0] != "001_initial" || versions[1] != "002_run_bytes" {
		t.Fatalf("unexpected versions %v", versions)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening must not re-apply anything.
	store, err = Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	versions, _ = store.Versions(context.Background())
	if len(versions) != 2 {
		t.Fatalf("versions after reopen = %v", versions)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCorrectionsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.tmp", "b.log", "c.pdf"} {
		err := store.RecordCorrection(ctx, patterns.Correction{
			File:      name,
			Original:  risk.ActionDeleteImmediate,
			Corrected: risk.ActionKeepActive,
			Reason:    "still needed",
			At:        base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordCorrection: %v", err)
		}
	}

	got, err := store.Corrections(ctx, 2)
	if err != nil {
		t.Fatalf("Corrections: %v", err)
	}
	if len(got) != 2 || got[0].File != "c.pdf" || got[1].File != "b.log" {
		t.Fatalf("unexpected corrections %+v", got)
	}
	if got[0].Corrected != risk.ActionKeepActive || got[0].Reason != "still needed" {
		t.Fatalf("fields not round-tripped: %+v", got[0])
	}
	if !got[0].At.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("At = %v", got[0].At)
	}

	all, _ := store.Corrections(ctx, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 corrections, got %d", len(all))
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.RecordFeedback(ctx, patterns.Feedback{File: "/in/x.pdf", Suggested: "/docs", Actual: "/docs/tax/x.pdf"}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordFeedback(ctx, patterns.Feedback{File: "/in/y.pdf", Suggested: "/docs", Actual: "/docs/y.pdf", Accepted: true}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Feedback(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Accepted || got[1].Accepted {
		t.Fatalf("unexpected feedback %+v", got)
	}
	if got[1].At.IsZero() {
		t.Fatal("expected default timestamp")
	}
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.StartRun(ctx, Run{ID: "run-1", Root: "/home/u/Downloads", DryRun: true}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != RunRunning || run.Trigger != "manual" || !run.DryRun || run.FinishedAt != nil {
		t.Fatalf("unexpected started run %+v", run)
	}

	counts := Counts{Scanned: 10, Executed: 4, ManualReview: 3, Skipped: 2, Failed: 1, BytesReclaimed: 2048}
	if err := store.FinishRun(ctx, "run-1", counts, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	run, _ = store.GetRun(ctx, "run-1")
	if run.Status != RunCompleted || run.FinishedAt == nil {
		t.Fatalf("unexpected finished run %+v", run)
	}
	if run.Scanned != 10 || run.Executed != 4 || run.ManualReview != 3 || run.Skipped != 2 || run.Failed != 1 || run.BytesReclaimed != 2048 {
		t.Fatalf("counts not stored: %+v", run)
	}

	if err := store.StartRun(ctx, Run{ID: "run-2", Root: "/tmp", Trigger: "schedule"}); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, "run-2", Counts{}, errors.New("scan failed")); err != nil {
		t.Fatal(err)
	}
	run, _ = store.GetRun(ctx, "run-2")
	if run.Status != RunFailed || run.Error != "scan failed" {
		t.Fatalf("unexpected failed run %+v", run)
	}

	runs, err := store.Runs(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	err := store.FinishRun(context.Background(), "missing", Counts{}, nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.StartRun(context.Background(), Run{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResetStaleRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	_ = store.StartRun(ctx, Run{ID: "a", Root: "/x"})
	_ = store.StartRun(ctx, Run{ID: "b", Root: "/x"})
	_ = store.FinishRun(ctx, "b", Counts{}, nil)

	n, err := store.ResetStaleRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("reset %d runs, want 1", n)
	}
	run, _ := store.GetRun(ctx, "a")
	if run.Status != RunFailed || run.Error != "interrupted" {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	_ = store.RecordCorrection(ctx, patterns.Correction{File: "a", Original: risk.ActionKeepActive, Corrected: risk.ActionCompress, At: old})
	_ = store.RecordCorrection(ctx, patterns.Correction{File: "b", Original: risk.ActionKeepActive, Corrected: risk.ActionCompress, At: recent})
	_ = store.RecordFeedback(ctx, patterns.Feedback{File: "c", Suggested: "/a", Actual: "/b", At: old})
	_ = store.StartRun(ctx, Run{ID: "old", Root: "/x", StartedAt: old})
	_ = store.FinishRun(ctx, "old", Counts{}, nil)

	n, err := store.Prune(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("pruned %d rows, want 3", n)
	}
	left, _ := store.Corrections(ctx, 0)
	if len(left) != 1 || left[0].File != "b" {
		t.Fatalf("unexpected remaining corrections %+v", left)
	}
}
