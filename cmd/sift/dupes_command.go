package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"sift/internal/dupes"
	"sift/internal/scan"
)

func newDupesCommand(ctx *commandContext) *cobra.Command {
	var minSize int64

	cmd := &cobra.Command{
		Use:   "dupes <dir>",
		Short: "Find files with identical content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor()
			if err != nil {
				return err
			}
			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			files, err := scan.Walk(cmd.Context(), root, scan.OptionsFromConfig(cfg.Scan))
			if err != nil {
				return err
			}
			groups, err := dupes.Find(cmd.Context(), files, dupes.Options{
				Workers: cfg.Scan.Workers,
				MinSize: minSize,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			var wasted int64
			for _, g := range groups {
				wasted += g.Wasted()
			}
			if ctx.JSONMode() {
				if groups == nil {
					groups = []dupes.Group{}
				}
				return writeJSON(cmd, map[string]any{
					"root":         root,
					"scanned":      len(files),
					"groups":       groups,
					"wasted_bytes": wasted,
				})
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintf(out, "No duplicates among %d file(s)\n", len(files))
				return nil
			}
			fmt.Fprintln(out, renderGroups(groups))
			fmt.Fprintf(out, "%d group(s), %s reclaimable\n", len(groups), formatBytes(wasted))
			return nil
		},
	}

	cmd.Flags().Int64Var(&minSize, "min-size", 0, "Ignore files smaller than this many bytes")
	return cmd
}

func renderGroups(groups []dupes.Group) string {
	var rows [][]string
	for i, g := range groups {
		for j, f := range g.Files {
			role := "duplicate"
			if j == 0 {
				role = "keep"
			}
			group := ""
			if j == 0 {
				group = strconv.Itoa(i + 1)
			}
			rows = append(rows, []string{group, role, shortenPath(f.Path, 60), formatBytes(f.Size)})
		}
	}
	return renderTable(
		[]string{"Group", "Role", "File", "Size"},
		rows,
		0, 3,
	)
}
