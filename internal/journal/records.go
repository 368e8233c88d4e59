package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sift/internal/patterns"
	"sift/internal/risk"
	"sift/internal/services"
)

// RunStatus is the lifecycle state of an organizer run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run summarizes one organizer pass.
type Run struct {
	ID             string     `json:"id"`
	Root           string     `json:"root"`
	Trigger        string     `json:"trigger"`
	DryRun         bool       `json:"dry_run"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Scanned        int        `json:"scanned"`
	Executed       int        `json:"executed"`
	ManualReview   int        `json:"manual_review"`
	Skipped        int        `json:"skipped"`
	Failed         int        `json:"failed"`
	BytesReclaimed int64      `json:"bytes_reclaimed"`
	Error          string     `json:"error,omitempty"`
}

// Counts are the tallies written when a run finishes.
type Counts struct {
	Scanned        int
	Executed       int
	ManualReview   int
	Skipped        int
	Failed         int
	BytesReclaimed int64
}

// RecordCorrection appends a correction.
func (s *Store) RecordCorrection(ctx context.Context, c patterns.Correction) error {
	at := c.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO corrections (file, original_action, corrected_action, reason, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		c.File, string(c.Original), string(c.Corrected), c.Reason, formatTime(at))
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

// RecordFeedback appends a feedback event.
func (s *Store) RecordFeedback(ctx context.Context, f patterns.Feedback) error {
	at := f.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO feedback (file, suggested, actual, accepted, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		f.File, f.Suggested, f.Actual, boolToInt(f.Accepted), formatTime(at))
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// Corrections returns the newest corrections first. limit <= 0 means all.
func (s *Store) Corrections(ctx context.Context, limit int) ([]patterns.Correction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file, original_action, corrected_action, reason, recorded_at FROM corrections ORDER BY id DESC LIMIT ?`,
		sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []patterns.Correction
	for rows.Next() {
		var (
			c                   patterns.Correction
			original, corrected string
			reason, at          sql.NullString
		)
		if err := rows.Scan(&c.File, &original, &corrected, &reason, &at); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		c.Original = risk.Action(original)
		c.Corrected = risk.Action(corrected)
		c.Reason = reason.String
		c.At = parseTime(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Feedback returns the newest feedback first. limit <= 0 means all.
func (s *Store) Feedback(ctx context.Context, limit int) ([]patterns.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file, suggested, actual, accepted, recorded_at FROM feedback ORDER BY id DESC LIMIT ?`,
		sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []patterns.Feedback
	for rows.Next() {
		var (
			f        patterns.Feedback
			accepted int
			at       sql.NullString
		)
		if err := rows.Scan(&f.File, &f.Suggested, &f.Actual, &accepted, &at); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.Accepted = accepted != 0
		f.At = parseTime(at)
		out = append(out, f)
	}
	return out, rows.Err()
}

// StartRun inserts a running row.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return services.Wrap(services.ErrValidation, "journal", "start run", "run id is required", nil)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if run.Trigger == "" {
		run.Trigger = "manual"
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, root, trigger_kind, dry_run, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.Trigger, boolToInt(run.DryRun), string(RunRunning), formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun closes a run with its counts. A non-nil runErr marks it failed.
func (s *Store) FinishRun(ctx context.Context, id string, counts Counts, runErr error) error {
	status := RunCompleted
	var message sql.NullString
	if runErr != nil {
		status = RunFailed
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, scanned = ?, executed = ?, manual_review = ?,
            skipped = ?, failed = ?, bytes_reclaimed = ?, error_message = ? WHERE id = ?`,
		string(status), formatTime(s.now()), counts.Scanned, counts.Executed, counts.ManualReview,
		counts.Skipped, counts.Failed, counts.BytesReclaimed, message, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "journal", "finish run", id, nil)
	}
	return nil
}

const runColumns = "id, root, trigger_kind, dry_run, status, started_at, finished_at, scanned, executed, manual_review, skipped, failed, bytes_reclaimed, error_message"

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run               Run
		dryRun            int
		status            string
		started, finished sql.NullString
		errorMessage      sql.NullString
	)
	if err := scanner.Scan(&run.ID, &run.Root, &run.Trigger, &dryRun, &status, &started, &finished,
		&run.Scanned, &run.Executed, &run.ManualReview, &run.Skipped, &run.Failed, &run.BytesReclaimed, &errorMessage); err != nil {
		return Run{}, err
	}
	run.DryRun = dryRun != 0
	run.Status = RunStatus(status)
	run.StartedAt = parseTime(started)
	if t := parseTime(finished); !t.IsZero() {
		run.FinishedAt = &t
	}
	run.Error = errorMessage.String
	return run, nil
}

// GetRun fetches one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, services.Wrap(services.ErrNotFound, "journal", "get run", id, nil)
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// Runs returns the newest runs first. limit <= 0 means all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id LIMIT ?", sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ResetStaleRuns marks runs left "running" by a crashed process as failed.
func (s *Store) ResetStaleRuns(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		string(RunFailed), "interrupted", formatTime(s.now()), string(RunRunning))
	if err != nil {
		return 0, fmt.Errorf("reset stale runs: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes journal rows recorded before cutoff and returns how many
// rows went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := formatTime(cutoff)
	var total int64
	for _, stmt := range []string{
		"DELETE FROM corrections WHERE recorded_at < ?",
		"DELETE FROM feedback WHERE recorded_at < ?",
		"DELETE FROM runs WHERE started_at < ? AND status != 'running'",
	} {
		res, err := tx.ExecContext(ctx, stmt, stamp)
		if err != nil {
			return 0, fmt.Errorf("prune: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return total, nil
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
