package organizer

import (
	"context"
	"errors"
	"log/slog"

	"sift/internal/config"
	"sift/internal/decision"
	"sift/internal/executor"
	"sift/internal/journal"
	"sift/internal/ledger"
	"sift/internal/notifications"
	"sift/internal/patterns"
	"sift/internal/remote"
	"sift/internal/risk"
	"sift/internal/scan"
	"sift/internal/services"
)

// Stack holds every long-lived component built from one config.
type Stack struct {
	Config    *config.Config
	Scorer    *risk.Scorer
	Memory    *patterns.Memory
	Combiner  *decision.Combiner
	Ledger    *ledger.Ledger
	Router    *executor.Router
	Journal   *journal.Store
	Notifier  notifications.Service
	Organizer *Organizer
}

// BuildOptions adjusts Build.
type BuildOptions struct {
	DryRun bool
	// Remote replaces the S3 adapter when remote is enabled.
	Remote remote.Adapter
	// SkipJournal leaves Stack.Journal nil.
	SkipJournal bool
}

// Build constructs the component stack from cfg. Close releases it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Stack, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "organizer", "build", "ensure directories", err)
	}

	profile, err := risk.DefaultProfile().WithOverrides(cfg.Scoring.TypeScores, cfg.Scoring.LocationScores, cfg.Scoring.Weights)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "organizer", "build", "scoring overrides", err)
	}
	scorer, err := risk.NewScorer(profile, risk.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	memory, err := patterns.Open(patterns.Options{
		Path:                cfg.PatternsPath(),
		DecayRate:           cfg.Learning.DecayRate,
		SimilarityThreshold: cfg.Learning.SimilarityThreshold,
		MinConfidence:       cfg.Learning.MinConfidence,
		Logger:              logger,
	})
	if err != nil {
		return nil, err
	}

	book, err := ledger.Open(ledger.Options{Path: cfg.LedgerPath(), BackupDir: cfg.Paths.BackupDir, Logger: logger})
	if err != nil {
		return nil, err
	}

	var routerOpts []executor.Option
	if cfg.Remote.Enabled {
		adapter := opts.Remote
		if adapter == nil {
			s3, err := remote.NewS3Adapter(remote.S3ConfigFromConfig(cfg.Remote), logger)
			if err != nil {
				return nil, err
			}
			adapter = s3
		}
		routerOpts = append(routerOpts, executor.WithRemote(adapter, executor.RemoteOptionsFromConfig(cfg)))
	}
	router, err := executor.NewRouter(book, executor.Options{
		AutoThreshold:   cfg.Thresholds.AutoExecute,
		ReviewThreshold: cfg.Thresholds.Review,
		DryRun:          opts.DryRun,
		Logger:          logger,
	}, routerOpts...)
	if err != nil {
		return nil, err
	}

	var store *journal.Store
	if !opts.SkipJournal {
		store, err = journal.Open(ctx, cfg.JournalPath())
		if err != nil {
			return nil, err
		}
	}

	combiner := decision.NewCombiner(scorer, memory)
	notifier := notifications.NewService(cfg)
	org, err := New(Deps{
		Combiner: combiner,
		Router:   router,
		Journal:  store,
		Notifier: notifier,
		Scan:     scan.OptionsFromConfig(cfg.Scan),
		Workers:  cfg.Scan.Workers,
		DryRun:   opts.DryRun,
		Logger:   logger,
	})
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	return &Stack{
		Config:    cfg,
		Scorer:    scorer,
		Memory:    memory,
		Combiner:  combiner,
		Ledger:    book,
		Router:    router,
		Journal:   store,
		Notifier:  notifier,
		Organizer: org,
	}, nil
}

// Close releases the journal connection.
func (s *Stack) Close() error {
	if s == nil {
		return nil
	}
	return s.Journal.Close()
}
