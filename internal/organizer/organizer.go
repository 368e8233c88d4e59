package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sift/internal/decision"
	"sift/internal/dupes"
	"sift/internal/executor"
	"sift/internal/journal"
	"sift/internal/ledger"
	"sift/internal/logging"
	"sift/internal/notifications"
	"sift/internal/scan"
	"sift/internal/services"
)

// Request describes one organizer pass.
type Request struct {
	Root string
	// Trigger is recorded in the journal ("manual", "schedule").
	Trigger    string
	Duplicates bool
}

// Report is the outcome of a pass. Results is empty for Plan.
type Report struct {
	RunID     string              `json:"run_id"`
	Root      string              `json:"root"`
	DryRun    bool                `json:"dry_run"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration_ns"`
	Decisions []decision.Decision `json:"decisions"`
	Results   []executor.Result   `json:"results,omitempty"`
	Groups    []dupes.Group       `json:"duplicate_groups,omitempty"`
	Counts    journal.Counts      `json:"counts"`
}

// Deps are the organizer's collaborators. Journal and Notifier are optional.
type Deps struct {
	Combiner *decision.Combiner
	Router   *executor.Router
	Journal  *journal.Store
	Notifier notifications.Service
	Scan     scan.Options
	Workers  int
	DryRun   bool
	Logger   *slog.Logger
}

// Organizer runs passes. Safe for sequential reuse; concurrent passes over
// overlapping roots are serialized per file by the router.
type Organizer struct {
	deps   Deps
	logger *slog.Logger
}

// New builds an organizer from deps.
func New(deps Deps) (*Organizer, error) {
	if deps.Combiner == nil || deps.Router == nil {
		return nil, services.Wrap(services.ErrConfiguration, "organizer", "new", "combiner and router are required", nil)
	}
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	return &Organizer{deps: deps, logger: logging.NewComponentLogger(deps.Logger, "organizer")}, nil
}

// Plan scans and decides without executing anything.
func (o *Organizer) Plan(ctx context.Context, req Request) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		Root:      req.Root,
		DryRun:    o.deps.DryRun,
		StartedAt: time.Now(),
	}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, o.logger)

	files, err := scan.Walk(ctx, req.Root, o.deps.Scan)
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", req.Root, err)
	}
	report.Counts.Scanned = len(files)

	if req.Duplicates {
		groups, err := dupes.Find(ctx, files, dupes.Options{Workers: o.deps.Workers, Logger: o.deps.Logger})
		if err != nil {
			return report, fmt.Errorf("find duplicates: %w", err)
		}
		report.Groups = groups
		files = dupes.ApplyHints(files, groups)
	}

	decisions, err := o.decide(ctx, files)
	if err != nil {
		return report, err
	}
	report.Decisions = decisions
	report.Duration = time.Since(report.StartedAt)

	logger.Info("plan ready",
		logging.String(logging.FieldEventType, "plan_ready"),
		logging.String("root", req.Root),
		logging.Int("files", len(files)),
		logging.Int("duplicate_groups", len(report.Groups)),
	)
	return report, nil
}

// decide scores files across the worker pool, keeping input order.
func (o *Organizer) decide(ctx context.Context, files []scan.FileDescriptor) ([]decision.Decision, error) {
	out := make([]decision.Decision, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.deps.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = o.deps.Combiner.Decide(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}
	return out, nil
}

// Run plans, executes each decision, then journals and announces the
// summary. Cancellation stops new executions; those already started finish.
func (o *Organizer) Run(ctx context.Context, req Request) (Report, error) {
	report, err := o.Plan(ctx, req)
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, o.logger)

	if o.deps.Journal != nil {
		trigger := req.Trigger
		if trigger == "" {
			trigger = "manual"
		}
		if jErr := o.deps.Journal.StartRun(ctx, journal.Run{
			ID:        report.RunID,
			Root:      req.Root,
			Trigger:   trigger,
			DryRun:    o.deps.DryRun,
			StartedAt: report.StartedAt,
		}); jErr != nil {
			logger.Warn("journal unavailable; run not recorded",
				logging.String(logging.FieldEventType, "journal_start_failed"),
				logging.Error(jErr),
				logging.String(logging.FieldImpact, "run history incomplete"),
				logging.String(logging.FieldErrorHint, "check data_dir permissions"),
			)
		}
	}

	if err == nil {
		report.Results = o.execute(ctx, report.Decisions)
		tally(&report)
	}
	report.Duration = time.Since(report.StartedAt)
	o.finish(ctx, report, err)
	return report, err
}

func (o *Organizer) execute(ctx context.Context, decisions []decision.Decision) []executor.Result {
	results := make([]executor.Result, 0, len(decisions))
	for _, d := range decisions {
		if ctx.Err() != nil {
			break
		}
		results = append(results, o.deps.Router.Execute(ctx, d))
	}
	return results
}

// tally fills the run counts from results. Decisions never reached because
// of cancellation count as skipped.
func tally(report *Report) {
	sizes := make(map[string]int64, len(report.Decisions))
	for _, d := range report.Decisions {
		sizes[d.File.Path] = d.File.Size
	}
	for _, res := range report.Results {
		switch {
		case res.Executed:
			report.Counts.Executed++
			if res.Operation == ledger.ActionDelete {
				report.Counts.BytesReclaimed += sizes[res.Path]
			}
		case res.Err != nil:
			report.Counts.Failed++
		case res.Method == executor.MethodManualReview:
			report.Counts.ManualReview++
		default:
			report.Counts.Skipped++
		}
	}
	report.Counts.Skipped += len(report.Decisions) - len(report.Results)
}

func (o *Organizer) finish(ctx context.Context, report Report, runErr error) {
	logger := logging.WithContext(ctx, o.logger)
	if o.deps.Journal != nil {
		// Recording the outcome must not depend on the caller still waiting.
		jctx := context.WithoutCancel(ctx)
		if err := o.deps.Journal.FinishRun(jctx, report.RunID, report.Counts, runErr); err != nil {
			logger.Warn("journal update failed",
				logging.String(logging.FieldEventType, "journal_finish_failed"),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run summary missing from history"),
				logging.String(logging.FieldErrorHint, "check data_dir permissions"),
			)
		}
	}

	nctx := context.WithoutCancel(ctx)
	if runErr != nil {
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.String("root", report.Root),
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, "check the root is readable and retry"),
		)
		o.notify(nctx, notifications.EventError, notifications.Payload{"context": "organizing " + report.Root, "error": runErr})
		return
	}

	c := report.Counts
	if c.Failed > 0 {
		logging.WarnWithContext(logger, "run finished with failures", "run_partial",
			logging.String("root", report.Root),
			logging.Int("failed", c.Failed),
			logging.Alert("partial_run"),
			logging.String(logging.FieldImpact, "some files were left in place"),
			logging.String(logging.FieldErrorHint, "sift runs show "+report.RunID),
		)
	}
	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("root", report.Root),
		logging.Bool("dry_run", report.DryRun),
		logging.Group("counts",
			logging.Int("scanned", c.Scanned),
			logging.Int("executed", c.Executed),
			logging.Int("manual_review", c.ManualReview),
			logging.Int("skipped", c.Skipped),
			logging.Int("failed", c.Failed),
		),
		logging.Int64("bytes_reclaimed", c.BytesReclaimed),
		logging.Duration("duration", report.Duration),
	)
	o.notify(nctx, notifications.EventRunCompleted, notifications.Payload{
		"root":     report.Root,
		"dryRun":   report.DryRun,
		"scanned":  c.Scanned,
		"executed": c.Executed,
		"review":   c.ManualReview,
		"skipped":  c.Skipped,
		"failed":   c.Failed,
		"bytes":    c.BytesReclaimed,
		"duration": report.Duration,
	})
}

func (o *Organizer) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.deps.Notifier.Publish(ctx, event, payload); err != nil {
		o.logger.Warn("notification failed",
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run summary not delivered"),
			logging.String(logging.FieldErrorHint, "check ntfy_topic or slack_webhook_url"),
		)
	}
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}
