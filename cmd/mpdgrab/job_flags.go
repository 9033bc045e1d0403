package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mpdgrab/internal/keys"
	"mpdgrab/internal/pipeline"
	"mpdgrab/internal/textutil"
)

// jobFlags holds the per-job flags shared by fetch and xor.
type jobFlags struct {
	name      string
	caption   string
	quality   string
	output    string
	chat      string
	thumbnail string
	watermark string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Output file name (default: timestamp)")
	cmd.Flags().StringVar(&f.caption, "caption", "", "Caption sent with the upload")
	cmd.Flags().StringVarP(&f.quality, "quality", "q", "", "Maximum video height (default: download.quality)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory (default: paths.output_dir)")
	cmd.Flags().StringVar(&f.chat, "chat", "", "Telegram chat to deliver to (default: telegram.chat_id)")
	cmd.Flags().StringVar(&f.thumbnail, "thumb", "", "Thumbnail image path; empty or /d generates one")
	cmd.Flags().StringVar(&f.watermark, "watermark", "", "Watermark text; empty or /d disables it")
}

func (f *jobFlags) job(source string) pipeline.Job {
	return pipeline.Job{
		Source:    strings.TrimSpace(source),
		Quality:   strings.TrimSuffix(strings.TrimSpace(f.quality), "p"),
		OutputDir: strings.TrimSpace(f.output),
		Name:      f.name,
		Caption:   f.caption,
		ChatID:    strings.TrimSpace(f.chat),
		Thumbnail: f.thumbnail,
		Watermark: f.watermark,
	}
}

func parseKeyFlags(values []string) (keys.Material, error) {
	var material keys.Material
	for _, value := range values {
		parsed, err := keys.ParseMaterial(value)
		if err != nil {
			return nil, err
		}
		material = append(material, parsed...)
	}
	return material, nil
}

func printOutcome(out io.Writer, outcome pipeline.Outcome) {
	fmt.Fprintf(out, "Job:       %s\n", outcome.JobID)
	fmt.Fprintf(out, "File:      %s\n", outcome.Artifact.Path)
	fmt.Fprintf(out, "Size:      %s\n", textutil.HumanReadableSize(outcome.Artifact.Size))
	fmt.Fprintf(out, "Delivered: %s\n", yesNo(outcome.Delivered))
	fmt.Fprintf(out, "Elapsed:   %s\n", outcome.Elapsed.Round(time.Second))
}
