package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/organizer"
	"sift/internal/services"
)

// Runner performs one organizer pass.
type Runner interface {
	Run(ctx context.Context, req organizer.Request) (organizer.Report, error)
}

// Options configures a Daemon.
type Options struct {
	Schedule   string
	Roots      []string
	Duplicates bool
	LockPath   string
	Logger     *slog.Logger
}

// OptionsFromConfig maps the daemon config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Schedule:   cfg.Daemon.Schedule,
		Roots:      append([]string(nil), cfg.Daemon.Roots...),
		Duplicates: cfg.Daemon.Duplicates,
		LockPath:   cfg.LockPath(),
	}
}

// Outcome is the result of one root within a pass.
type Outcome struct {
	Root     string `json:"root"`
	RunID    string `json:"run_id"`
	Executed int    `json:"executed"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

// Status is a snapshot of daemon state.
type Status struct {
	Running  bool      `json:"running"`
	Schedule string    `json:"schedule"`
	Roots    []string  `json:"roots"`
	LockPath string    `json:"lock_path"`
	NextRun  time.Time `json:"next_run,omitzero"`
	LastRun  time.Time `json:"last_run,omitzero"`
	Passes   int       `json:"passes"`
	Last     []Outcome `json:"last,omitempty"`
}

// Daemon owns the schedule and the instance lock.
type Daemon struct {
	opts     Options
	runner   Runner
	schedule cron.Schedule
	logger   *slog.Logger
	lock     *flock.Flock

	running atomic.Bool
	cron    *cron.Cron
	cancel  context.CancelFunc

	mu      sync.Mutex
	lastRun time.Time
	passes  int
	last    []Outcome
}

// New validates opts and returns an idle daemon.
func New(opts Options, runner Runner) (*Daemon, error) {
	if runner == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "new", "runner is required", nil)
	}
	if opts.LockPath == "" {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "new", "lock path is required", nil)
	}
	if len(opts.Roots) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "new", "no roots configured; set daemon.roots", nil)
	}
	sched, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "new", fmt.Sprintf("invalid schedule %q", opts.Schedule), err)
	}
	return &Daemon{
		opts:     opts,
		runner:   runner,
		schedule: sched,
		logger:   logging.NewComponentLogger(opts.Logger, "daemon"),
		lock:     flock.New(opts.LockPath),
	}, nil
}

// Start takes the instance lock and begins scheduling passes.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "daemon", "start", "another sift daemon instance is already running", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	clog := cronLogger{logger: d.logger}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	c.Schedule(d.schedule, cron.FuncJob(func() { d.RunOnce(runCtx) }))
	c.Start()

	d.cron = c
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("sift daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.opts.LockPath),
		logging.String("schedule", d.opts.Schedule),
		logging.Any("roots", d.opts.Roots),
	)
	return nil
}

// Stop cancels the current pass, waits for it and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.cancel()
	<-d.cron.Stop().Done()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report a running instance"),
			logging.String(logging.FieldErrorHint, "remove "+d.opts.LockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("sift daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// RunOnce performs a pass over every root in order. A failing root does not
// stop the others.
func (d *Daemon) RunOnce(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, 0, len(d.opts.Roots))
	for _, root := range d.opts.Roots {
		if ctx.Err() != nil {
			break
		}
		report, err := d.runner.Run(ctx, organizer.Request{Root: root, Trigger: "schedule", Duplicates: d.opts.Duplicates})
		out := Outcome{
			Root:     root,
			RunID:    report.RunID,
			Executed: report.Counts.Executed,
			Failed:   report.Counts.Failed,
		}
		if err != nil {
			out.Error = err.Error()
		}
		outcomes = append(outcomes, out)
	}

	d.mu.Lock()
	d.lastRun = time.Now()
	d.passes++
	d.last = outcomes
	d.mu.Unlock()
	return outcomes
}

// Status reports the daemon state.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{
		Running:  d.running.Load(),
		Schedule: d.opts.Schedule,
		Roots:    append([]string(nil), d.opts.Roots...),
		LockPath: d.opts.LockPath,
		LastRun:  d.lastRun,
		Passes:   d.passes,
		Last:     append([]Outcome(nil), d.last...),
	}
	if st.Running {
		if entries := d.cron.Entries(); len(entries) > 0 {
			st.NextRun = entries[0].Next
		}
	}
	return st
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
