package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"sift/internal/config"
	"sift/internal/decision"
	"sift/internal/ledger"
	"sift/internal/logging"
	"sift/internal/remote"
	"sift/internal/risk"
	"sift/internal/services"
)

// Method says how the router treated a decision.
type Method string

const (
	MethodAutomatic    Method = "automatic"
	MethodManualReview Method = "manual_review"
	MethodSkipped      Method = "skipped"
)

// historyLimit bounds the in-memory execution history.
const historyLimit = 1000

// Result is the outcome of one Execute call. ActionID is -1 unless a ledger
// entry was written.
type Result struct {
	Path       string            `json:"path"`
	Action     risk.Action       `json:"action"`
	Confidence float64           `json:"confidence"`
	Executed   bool              `json:"executed"`
	Method     Method            `json:"method"`
	Operation  ledger.ActionType `json:"operation,omitempty"`
	Target     string            `json:"target,omitempty"`
	ActionID   int               `json:"action_id"`
	Reason     string            `json:"reason,omitempty"`
	At         time.Time         `json:"at"`
	Duration   time.Duration     `json:"duration_ns"`
	Err        error             `json:"-"`
}

// Options configures a Router.
type Options struct {
	AutoThreshold   float64
	ReviewThreshold float64
	// DryRun gates and plans but never touches files.
	DryRun bool
	Clock  func() time.Time
	Logger *slog.Logger
}

// RemoteOptions configures the remote target.
type RemoteOptions struct {
	Scheme          string
	Timeout         time.Duration
	FolderCacheSize int
}

// RemoteOptionsFromConfig maps the remote config section.
func RemoteOptionsFromConfig(cfg *config.Config) RemoteOptions {
	return RemoteOptions{
		Scheme:          cfg.Remote.Scheme,
		Timeout:         cfg.RemoteTimeout(),
		FolderCacheSize: cfg.Remote.FolderCacheSize,
	}
}

// Option adjusts a Router at construction.
type Option func(*Router) error

// WithRemote routes scheme-prefixed references through adapter.
func WithRemote(adapter remote.Adapter, opts RemoteOptions) Option {
	return func(r *Router) error {
		if adapter == nil {
			return services.Wrap(services.ErrConfiguration, "executor", "remote", "adapter is nil", nil)
		}
		if strings.TrimSpace(opts.Scheme) == "" {
			return services.Wrap(services.ErrConfiguration, "executor", "remote", "scheme is required", nil)
		}
		target, err := newRemoteTarget(adapter, r.book, opts.Scheme, opts.Timeout, opts.FolderCacheSize, r.logger)
		if err != nil {
			return err
		}
		r.scheme = opts.Scheme
		r.remote = target
		return nil
	}
}

// Router gates decisions and executes them. Safe for concurrent use.
type Router struct {
	opts   Options
	book   *ledger.Ledger
	logger *slog.Logger
	now    func() time.Time

	scheme string
	local  Target
	remote Target
	locks  *pathLocks

	mu      sync.Mutex
	stats   Stats
	history []Result
}

// NewRouter builds a router recording into book.
func NewRouter(book *ledger.Ledger, opts Options, options ...Option) (*Router, error) {
	if book == nil {
		return nil, services.Wrap(services.ErrConfiguration, "executor", "new router", "ledger is required", nil)
	}
	if opts.AutoThreshold < 0 || opts.AutoThreshold > 1 || opts.ReviewThreshold < 0 || opts.ReviewThreshold > opts.AutoThreshold {
		return nil, services.Wrap(services.ErrConfiguration, "executor", "new router",
			fmt.Sprintf("invalid thresholds auto=%.2f review=%.2f", opts.AutoThreshold, opts.ReviewThreshold), nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	r := &Router{
		opts:   opts,
		book:   book,
		logger: logging.NewComponentLogger(opts.Logger, "executor"),
		now:    opts.Clock,
		local:  &localTarget{book: book},
		locks:  newPathLocks(),
		stats:  newStats(),
	}
	for _, apply := range options {
		if err := apply(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MethodFor classifies a confidence against the thresholds.
func (r *Router) MethodFor(confidence float64) Method {
	switch {
	case confidence >= r.opts.AutoThreshold:
		return MethodAutomatic
	case confidence >= r.opts.ReviewThreshold:
		return MethodManualReview
	default:
		return MethodSkipped
	}
}

// OperationFor maps a decision to the file operation it would perform.
// KEEP_ACTIVE, REVIEW_MANUAL and COMPRESS have none, and MOVE_CORRECT or
// BACKUP_CLOUD without a target cannot run.
func OperationFor(d decision.Decision) (ledger.ActionType, string, bool) {
	switch d.Action {
	case risk.ActionDeleteImmediate:
		return ledger.ActionDelete, "", true
	case risk.ActionMoveCorrect:
		if strings.TrimSpace(d.Target) == "" {
			return "", "no destination known for move", false
		}
		return ledger.ActionMove, "", true
	case risk.ActionBackupCloud:
		if strings.TrimSpace(d.Target) == "" {
			return "", "no backup destination configured", false
		}
		return ledger.ActionCopy, "", true
	default:
		return "", fmt.Sprintf("action %s needs no file operation", d.Action), false
	}
}

// Validate checks the fields every decision must carry.
func Validate(d decision.Decision) error {
	if strings.TrimSpace(d.File.Path) == "" {
		return services.Wrap(services.ErrValidation, "executor", "validate", "file reference is required", nil)
	}
	if _, ok := risk.ParseAction(string(d.Action)); !ok {
		return services.Wrap(services.ErrValidation, "executor", "validate", fmt.Sprintf("unknown action %q", d.Action), nil)
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return services.Wrap(services.ErrValidation, "executor", "validate", fmt.Sprintf("confidence %v outside [0,1]", d.Confidence), nil)
	}
	return nil
}

// Execute gates d and, when it clears the auto threshold, performs its
// operation. It never panics and never returns an error; see Result.
func (r *Router) Execute(ctx context.Context, d decision.Decision) (res Result) {
	start := r.now()
	res = Result{
		Path:       d.File.Path,
		Action:     d.Action,
		Confidence: d.Confidence,
		Method:     MethodSkipped,
		Target:     d.Target,
		ActionID:   -1,
		At:         start,
	}
	defer func() {
		if p := recover(); p != nil {
			res.Executed = false
			res.ActionID = -1
			res.Err = services.Wrap(services.ErrExecutionFailed, "executor", "execute", fmt.Sprintf("panic: %v", p), nil)
			res.Reason = services.Reason(res.Err)
		}
		res.Duration = r.now().Sub(start)
		r.finish(ctx, res)
	}()

	if err := Validate(d); err != nil {
		res.Err = err
		res.Reason = services.Reason(err)
		return res
	}

	res.Method = r.MethodFor(d.Confidence)
	switch res.Method {
	case MethodManualReview:
		res.Reason = fmt.Sprintf("confidence %.2f below auto-execute threshold %.2f; queued for review", d.Confidence, r.opts.AutoThreshold)
		return res
	case MethodSkipped:
		res.Reason = fmt.Sprintf("confidence %.2f below review threshold %.2f", d.Confidence, r.opts.ReviewThreshold)
		return res
	}

	op, why, ok := OperationFor(d)
	if !ok {
		res.Reason = why
		return res
	}
	res.Operation = op

	if r.opts.DryRun {
		res.Reason = "dry run: would " + describe(op, d)
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = services.Wrap(services.ErrExecutionFailed, "executor", "execute", "cancelled before start", err)
		res.Reason = services.Reason(res.Err)
		return res
	}

	target, ok := r.targetFor(d.File.Path)
	if !ok {
		res.Err = services.Wrap(services.ErrConfiguration, "executor", "route", "remote store is not configured", nil)
		res.Reason = services.Reason(res.Err)
		return res
	}

	// The planned destination is locked too: two sources sharing a base name
	// must not both pass the occupied-destination check.
	keys := []string{d.File.Path}
	if op != ledger.ActionDelete {
		keys = append(keys, destinationKey(target, d))
	}
	unlock := r.locks.LockAll(keys...)
	defer unlock()

	// From here the operation runs to completion regardless of the caller.
	runCtx := context.WithoutCancel(ctx)
	id, dest, err := r.perform(runCtx, target, op, d)
	if dest != "" {
		res.Target = dest
	}
	if err != nil {
		res.Err = err
		res.Reason = services.Reason(err)
		if id >= 0 {
			// The file operation happened even though recording failed.
			res.Executed = true
		}
		return res
	}
	res.Executed = true
	res.ActionID = id
	return res
}

// perform runs op. A non-negative id alongside an error means the file
// operation completed but could not be recorded.
func (r *Router) perform(ctx context.Context, target Target, op ledger.ActionType, d decision.Decision) (int, string, error) {
	meta := metadata(ctx, d)
	if op == ledger.ActionDelete {
		id, err := target.Delete(ctx, d.File.Path, meta)
		if err != nil {
			return -1, "", err
		}
		return id, "", nil
	}

	folderID, err := target.ResolveFolder(ctx, d.Target)
	if errors.Is(err, services.ErrNotFound) {
		folderID, err = target.CreateFolder(ctx, d.Target)
	}
	if err != nil {
		return -1, "", err
	}

	var dest string
	if op == ledger.ActionMove {
		dest, err = target.Move(ctx, d.File.Path, folderID)
	} else {
		dest, err = target.Copy(ctx, d.File.Path, folderID)
	}
	if err != nil {
		return -1, "", err
	}

	id, err := r.book.Record(ledger.Entry{
		Type:        op,
		Source:      d.File.Path,
		Destination: dest,
		Remote:      target.Kind() == "remote",
		Metadata:    meta,
	})
	if err != nil {
		return 0, dest, services.Wrap(services.ErrExecutionFailed, "executor", "record", "operation completed but was not recorded", err)
	}
	return id, dest, nil
}

func destinationKey(target Target, d decision.Decision) string {
	folder := d.Target
	if target.Kind() == "local" {
		if abs, err := filepath.Abs(folder); err == nil {
			folder = abs
		}
	}
	return filepath.Join(folder, filepath.Base(d.File.Path))
}

func metadata(ctx context.Context, d decision.Decision) map[string]string {
	meta := map[string]string{
		"confidence": strconv.FormatFloat(d.Confidence, 'f', 4, 64),
		"action":     string(d.Action),
		"decided_by": string(d.Source),
	}
	if d.PatternKey != "" {
		meta["pattern"] = d.PatternKey
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		meta["run_id"] = runID
	}
	return meta
}

func describe(op ledger.ActionType, d decision.Decision) string {
	if op == ledger.ActionDelete {
		return fmt.Sprintf("delete %s", d.File.Path)
	}
	return fmt.Sprintf("%s %s -> %s", op, d.File.Path, d.Target)
}

func (r *Router) finish(ctx context.Context, res Result) {
	r.mu.Lock()
	r.stats.add(res)
	r.history = append(r.history, res)
	if len(r.history) > historyLimit {
		r.history = append([]Result(nil), r.history[len(r.history)-historyLimit:]...)
	}
	r.mu.Unlock()

	logger := logging.WithContext(ctx, r.logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "decision_routed"),
		logging.String(logging.FieldPath, res.Path),
		logging.String("method", string(res.Method)),
		logging.String("action", string(res.Action)),
		logging.Float64("confidence", res.Confidence),
		logging.Bool("executed", res.Executed),
	}
	switch {
	case res.Err != nil:
		logging.WarnWithContext(logger, "execution failed", "execution_failed", append(attrs,
			logging.Error(res.Err),
			logging.String(logging.FieldImpact, "file left in place"),
			logging.String(logging.FieldErrorHint, "check permissions or destination and retry"),
		)...)
	case res.Executed:
		logger.Info("action executed", logging.Args(append(attrs,
			logging.Int(logging.FieldActionID, res.ActionID),
			logging.String("operation", string(res.Operation)),
		)...)...)
	default:
		attrs = append(attrs, logging.DecisionAttrs("gate", string(res.Method), res.Reason)...)
		logger.Debug("action not executed", logging.Args(attrs...)...)
	}
}

// Stats returns a copy of the counters.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.clone()
}

// History returns the most recent results, oldest first.
func (r *Router) History() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.history...)
}

// ExportHistory writes the in-memory history and stats as indented JSON.
func (r *Router) ExportHistory(w io.Writer) error {
	type exported struct {
		Result
		Error string `json:"error,omitempty"`
	}
	r.mu.Lock()
	payload := struct {
		ExportedAt time.Time  `json:"exported_at"`
		Stats      Stats      `json:"stats"`
		Results    []exported `json:"results"`
	}{
		ExportedAt: r.now().UTC(),
		Stats:      r.stats.clone(),
		Results:    make([]exported, 0, len(r.history)),
	}
	for _, res := range r.history {
		payload.Results = append(payload.Results, exported{Result: res, Error: services.Reason(res.Err)})
	}
	r.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode execution history: %w", err)
	}
	return nil
}
