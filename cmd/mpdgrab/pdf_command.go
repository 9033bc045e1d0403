package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mpdgrab/internal/pdf"
	"mpdgrab/internal/textutil"
)

func newPDFCommand(ctx *commandContext) *cobra.Command {
	var chat string

	cmd := &cobra.Command{
		Use:   "pdf [list-file]",
		Short: "Download documents in bulk and deliver them",
		Long: `Read one document per line ("URL" or "Name:URL") from the list file, or from
stdin when no file is given, download each into the output directory, and
deliver them as documents when Telegram is configured.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open list: %w", err)
				}
				defer file.Close()
				input = file
			}
			items, err := pdf.ParseList(input)
			if err != nil {
				return fmt.Errorf("read list: %w", err)
			}
			if len(items) == 0 {
				return errors.New("no document URLs found")
			}

			p, _, err := ctx.pipeline()
			if err != nil {
				return err
			}
			summary, err := p.FetchDocuments(cmd.Context(), items, chat)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(summary.Outcomes))
			for _, outcome := range summary.Outcomes {
				status, detail := "ok", outcome.Path
				if outcome.Err != nil {
					status, detail = "failed", outcome.Err.Error()
				}
				rows = append(rows, []string{outcome.Item.FileName(), status, textutil.HumanReadableSize(outcome.Size), detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Document", "Status", "Size", "Detail"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			fmt.Fprintf(out, "%d fetched, %d failed\n", summary.Fetched, summary.Failed)
			if summary.Fetched == 0 {
				return errors.New("no documents fetched")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chat, "chat", "", "Telegram chat to deliver to (default: telegram.chat_id)")
	return cmd
}
