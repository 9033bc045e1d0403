package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"mpdgrab/internal/preflight"
)

const (
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiReset  = "\033[0m"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, and services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, statusLabel(r, colorize), r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if preflight.Failed(results) {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}
}

func statusLabel(r preflight.Result, colorize bool) string {
	label, color := "ok", ansiGreen
	switch {
	case r.Passed:
	case r.Optional:
		label, color = "warn", ansiYellow
	default:
		label, color = "fail", ansiRed
	}
	if !colorize {
		return label
	}
	return color + label + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
