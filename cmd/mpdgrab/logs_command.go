package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mpdgrab/internal/logging"
	"mpdgrab/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent entries from the job log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Paths.LogDir) == "" {
				return fmt.Errorf("paths.log_dir is not configured")
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()

			entries, offset, err := logs.Tail(path, lines, filter)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintln(out, e.Format())
			}
			if !follow {
				if len(entries) == 0 {
					fmt.Fprintln(out, "No log entries")
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 500*time.Millisecond, filter, func(e logs.Entry) {
				fmt.Fprintln(out, e.Format())
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries")
	cmd.Flags().StringVar(&filter.JobID, "job", "", "Only show entries for this job ID")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}
