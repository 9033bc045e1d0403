package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mpdgrab/internal/staging"
	"mpdgrab/internal/textutil"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove job workspaces left behind by interrupted runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			result, err := staging.Sweep(cmd.Context(), cfg.Paths.WorkDir, olderThan, dryRun, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 {
				fmt.Fprintln(out, "No stale workspaces")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(result.Removed))
			for _, ws := range result.Removed {
				rows = append(rows, []string{
					ws.JobID,
					ws.Age(now).Round(time.Minute).String(),
					textutil.HumanReadableSize(ws.Size),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Job", "Age", "Size"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			verb := "Reclaimed"
			if dryRun {
				verb = "Would reclaim"
			}
			fmt.Fprintf(out, "%s %s from %d workspace(s)\n", verb, textutil.HumanReadableSize(result.Reclaimed()), len(result.Removed))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspace(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Minimum age of workspaces to remove")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List stale workspaces without removing them")
	return cmd
}
