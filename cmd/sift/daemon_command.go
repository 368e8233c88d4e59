package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sift/internal/daemon"
	"sift/internal/organizer"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled organizer passes in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor()
			if err != nil {
				return err
			}
			stack, err := ctx.components(cmd.Context(), cfg.Daemon.DryRun)
			if err != nil {
				return err
			}
			opts := daemon.OptionsFromConfig(cfg)
			opts.Logger = logger
			d, err := daemon.New(opts, stack.Organizer)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if once {
				outcomes := d.RunOnce(runCtx)
				if ctx.JSONMode() {
					return writeJSON(cmd, outcomes)
				}
				return printOutcomes(cmd, outcomes)
			}

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %d root(s) on %q; Ctrl+C to stop\n", len(opts.Roots), opts.Schedule)
			<-runCtx.Done()
			d.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run one pass over every root and exit")
	return cmd
}

func printOutcomes(cmd *cobra.Command, outcomes []daemon.Outcome) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
			fmt.Fprintf(out, "%s: error: %s\n", o.Root, o.Error)
			continue
		}
		fmt.Fprintf(out, "%s: %d executed, %d failed (run %s)\n", o.Root, o.Executed, o.Failed, shortID(o.RunID))
	}
	if failed > 0 {
		return fmt.Errorf("%d root(s) failed", failed)
	}
	return nil
}

var _ daemon.Runner = (*organizer.Organizer)(nil)
