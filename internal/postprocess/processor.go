package postprocess

import (
	"context"
	"log/slog"
	"strings"

	"mpdgrab/internal/config"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/media/ffmpeg"
)

// DefaultMarker means "use the default" for thumbnails and "none" for
// watermarks, matching the chat command convention.
const DefaultMarker = "/d"

// Media is the ffmpeg surface the processor needs.
type Media interface {
	Thumbnail(ctx context.Context, input, offset string) (string, error)
	Watermark(ctx context.Context, req ffmpeg.WatermarkRequest) (string, error)
}

// Probe is the ffprobe surface the processor needs.
type Probe interface {
	Duration(ctx context.Context, path string) int
	Dimensions(ctx context.Context, path string, fallbackWidth, fallbackHeight int) (int, int)
}

// Input describes one video to prepare.
type Input struct {
	Path string
	// Thumbnail is a caller-supplied image; empty or "/d" generates one.
	Thumbnail string
	// Watermark is the overlay text; empty or "/d" skips the overlay.
	Watermark string
}

// Output is the prepared video and its delivery metadata.
type Output struct {
	// Path is the file to upload: the watermarked copy when one was made.
	Path   string
	Source string
	// Thumbnail is empty when none could be produced.
	Thumbnail          string
	GeneratedThumbnail bool
	Watermarked        bool
	Duration           int
	Width              int
	Height             int
}

// Temporaries lists the local files delivery should delete afterwards.
func (o Output) Temporaries() []string {
	files := []string{o.Source}
	if o.Watermarked && o.Path != o.Source {
		files = append(files, o.Path)
	}
	if o.GeneratedThumbnail && o.Thumbnail != "" {
		files = append(files, o.Thumbnail)
	}
	return files
}

// Processor composes thumbnailing, watermarking, and probing.
type Processor struct {
	media    Media
	probe    Probe
	settings config.PostProcess
	logger   *slog.Logger
}

// New constructs a Processor.
func New(settings config.PostProcess, media Media, probe Probe, logger *slog.Logger) *Processor {
	return &Processor{
		media:    media,
		probe:    probe,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "postprocess"),
	}
}

// Process runs the post-processing steps on in.Path. It never fails; degraded
// steps are logged.
func (p *Processor) Process(ctx context.Context, in Input) Output {
	logger := logging.WithContext(ctx, p.logger).With(logging.String("path", in.Path))
	out := Output{Path: in.Path, Source: in.Path}

	if isDefault(in.Thumbnail) {
		thumb, err := p.media.Thumbnail(ctx, in.Path, p.settings.ThumbnailOffset)
		if err != nil {
			logging.WarnWithContext(logger, "thumbnail generation failed", "thumbnail_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "video uploaded without a thumbnail"),
			)
		} else {
			out.Thumbnail = thumb
			out.GeneratedThumbnail = true
		}
	} else {
		out.Thumbnail = strings.TrimSpace(in.Thumbnail)
	}

	if !isDefault(in.Watermark) {
		marked, err := p.media.Watermark(ctx, ffmpeg.WatermarkRequest{
			Input: in.Path,
			Text:  in.Watermark,
			Font:  p.settings.WatermarkFont,
			Color: p.settings.WatermarkColor,
			Alpha: p.settings.WatermarkAlpha,
		})
		if err != nil {
			logging.WarnWithContext(logger, "watermark failed", "watermark_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "video uploaded without a watermark"),
			)
		} else {
			out.Path = marked
			out.Watermarked = true
		}
	}

	out.Duration = p.probe.Duration(ctx, out.Path)
	out.Width, out.Height = p.probe.Dimensions(ctx, out.Path, p.settings.DefaultWidth, p.settings.DefaultHeight)
	logger.Info("post-processing complete",
		logging.String(logging.FieldEventType, "postprocess_complete"),
		logging.Bool("watermarked", out.Watermarked),
		logging.Bool("thumbnail", out.Thumbnail != ""),
		logging.Int("duration_seconds", out.Duration),
	)
	return out
}

func isDefault(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || value == DefaultMarker
}
