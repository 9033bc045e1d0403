package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mpdgrab/internal/downloader"
	"mpdgrab/internal/runner"
)

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "formats <url>",
		Short: "List the video formats a source offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			adapter := downloader.New(cfg, runner.New(logger, runner.WithQuiet()), logger)
			formats, err := adapter.ListFormats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(formats) == 0 {
				fmt.Fprintln(out, "No video formats found")
				return nil
			}
			rows := make([][]string, 0, len(formats))
			for _, f := range formats {
				rows = append(rows, []string{f.ID, f.Resolution})
			}
			fmt.Fprintln(out, renderTable([]string{"Format", "Resolution"}, rows, nil))
			return nil
		},
	}
}
