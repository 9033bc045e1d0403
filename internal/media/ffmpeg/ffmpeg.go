package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mpdgrab/internal/logging"
	"mpdgrab/internal/runner"
	"mpdgrab/internal/services"
)

// DefaultThumbnailOffset is where thumbnails are grabbed unless configured.
const DefaultThumbnailOffset = "00:00:10"

// WatermarkPrefix is prepended to the input name for watermarked output.
const WatermarkPrefix = "w_"

// CommandRunner executes one external command.
type CommandRunner interface {
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
}

// Tool runs ffmpeg.
type Tool struct {
	run    CommandRunner
	binary string
	logger *slog.Logger
}

// New constructs a Tool.
func New(binary string, run CommandRunner, logger *slog.Logger) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Tool{run: run, binary: binary, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// MergeRequest names the decrypted inputs and the container to produce.
type MergeRequest struct {
	Video  string
	Audio  string
	Output string
}

// Merge remuxes video and audio into Output without re-encoding and returns
// the merged file size.
func (t *Tool) Merge(ctx context.Context, req MergeRequest) (int64, error) {
	if req.Video == "" || req.Audio == "" || req.Output == "" {
		return 0, services.Wrap(services.ErrValidation, "merge", "ffmpeg", "video, audio and output paths required", nil)
	}
	for _, input := range []string{req.Video, req.Audio} {
		if _, err := os.Stat(input); err != nil {
			return 0, services.Wrap(services.ErrMergeFailed, "merge", "ffmpeg", "input missing", err)
		}
	}
	logger := logging.WithContext(ctx, t.logger)
	_ = os.Remove(req.Output)

	result, err := t.run.Run(ctx, runner.Command{
		Name: t.binary,
		Args: []string{"-y", "-i", req.Video, "-i", req.Audio, "-c", "copy", req.Output},
	})
	if err != nil {
		return 0, services.Wrap(services.ErrMergeFailed, "merge", "ffmpeg", "run", err)
	}

	info, statErr := os.Stat(req.Output)
	if statErr != nil || info.Size() == 0 {
		_ = os.Remove(req.Output)
		detail := fmt.Sprintf("merged file missing (exit %d)", result.ExitCode)
		if statErr == nil {
			detail = fmt.Sprintf("merged file empty (exit %d)", result.ExitCode)
		}
		if tail := lastLine(result.Stderr); tail != "" {
			detail += ": " + tail
		}
		return 0, services.Wrap(services.ErrMergeFailed, "merge", "ffmpeg", detail, nil)
	}

	for _, intermediate := range []string{req.Video, req.Audio} {
		if err := os.Remove(intermediate); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "failed to remove intermediate after merge", "intermediate_cleanup_failed",
				logging.String("path", intermediate),
				logging.Error(err),
				logging.String(logging.FieldImpact, "intermediate left until workspace cleanup"),
			)
		}
	}
	logger.Info("streams merged",
		logging.String(logging.FieldEventType, "merge_complete"),
		logging.String("output", req.Output),
		logging.Int64("size_bytes", info.Size()),
	)
	return info.Size(), nil
}

// ThumbnailPath is the still-frame path derived from a media file.
func ThumbnailPath(input string) string {
	return input + ".jpg"
}

// Thumbnail grabs one frame at offset (HH:MM:SS) into <input>.jpg.
func (t *Tool) Thumbnail(ctx context.Context, input, offset string) (string, error) {
	if strings.TrimSpace(offset) == "" {
		offset = DefaultThumbnailOffset
	}
	output := ThumbnailPath(input)
	result, err := t.run.Run(ctx, runner.Command{
		Name: t.binary,
		Args: []string{"-y", "-i", input, "-ss", offset, "-vframes", "1", output},
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "postprocess", "thumbnail", "run", err)
	}
	if _, err := os.Stat(output); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "postprocess", "thumbnail",
			fmt.Sprintf("no frame written (exit %d)", result.ExitCode), err)
	}
	return output, nil
}

// WatermarkRequest describes a centered text overlay.
type WatermarkRequest struct {
	Input string
	Text  string
	Font  string
	Color string
	Alpha float64
}

// WatermarkPath is the output path for a watermarked copy of input.
func WatermarkPath(input string) string {
	return filepath.Join(filepath.Dir(input), WatermarkPrefix+filepath.Base(input))
}

// Watermark overlays req.Text centered on every frame at one sixth of the
// frame height, copying audio, and writes w_<name> next to the input. The
// input file is left untouched.
func (t *Tool) Watermark(ctx context.Context, req WatermarkRequest) (string, error) {
	text := sanitizeDrawtext(req.Text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "postprocess", "watermark", "watermark text required", nil)
	}
	output := WatermarkPath(req.Input)
	result, err := t.run.Run(ctx, runner.Command{
		Name: t.binary,
		Args: []string{"-y", "-i", req.Input, "-vf", DrawtextFilter(text, req.Font, req.Color, req.Alpha), "-codec:a", "copy", output},
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "postprocess", "watermark", "run", err)
	}
	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		_ = os.Remove(output)
		return "", services.Wrap(services.ErrExternalTool, "postprocess", "watermark",
			fmt.Sprintf("no output written (exit %d)", result.ExitCode), err)
	}
	return output, nil
}

// DrawtextFilter renders the ffmpeg drawtext expression for a centered overlay.
func DrawtextFilter(text, font, color string, alpha float64) string {
	if font == "" {
		font = "vidwater.ttf"
	}
	if color == "" {
		color = "white"
	}
	return fmt.Sprintf("drawtext=fontfile=%s:text='%s':fontcolor=%s@%s:fontsize=h/6:x=(w-text_w)/2:y=(h-text_h)/2",
		font, text, color, strconv.FormatFloat(alpha, 'f', -1, 64))
}

// sanitizeDrawtext drops characters that would end the quoted text value or
// start a drawtext expansion.
func sanitizeDrawtext(text string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '\'', '\\', '%', '\n', '\r':
			return -1
		}
		return r
	}, text))
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return text[idx+1:]
	}
	return text
}
