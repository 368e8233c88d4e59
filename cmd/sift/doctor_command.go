package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sift/internal/preflight"
	"sift/internal/remote"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, daemon lock, remote store and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor()
			if err != nil {
				return err
			}

			var adapter remote.Adapter
			var adapterErr error
			if cfg.Remote.Enabled {
				s3, err := remote.NewS3Adapter(remote.S3ConfigFromConfig(cfg.Remote), logger)
				if err != nil {
					adapterErr = err
				} else {
					adapter = s3
				}
			}

			results := preflight.RunAll(cmd.Context(), cfg, adapter)
			if adapterErr != nil {
				for i := range results {
					if results[i].Name == "Remote store" {
						results[i].Detail = adapterErr.Error()
					}
				}
			}
			failed := preflight.Failed(results)

			if ctx.JSONMode() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderSectionHeader("sift doctor", colorize))
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
