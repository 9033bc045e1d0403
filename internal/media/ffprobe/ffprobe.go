package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"mpdgrab/internal/logging"
	"mpdgrab/internal/runner"
	"mpdgrab/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r Result) countStreams(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// Dimensions returns the width and height of the first video stream.
func (r Result) Dimensions() (int, int, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") && stream.Width > 0 && stream.Height > 0 {
			return stream.Width, stream.Height, true
		}
	}
	return 0, 0, false
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// CommandRunner executes one external command.
type CommandRunner interface {
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
}

// Prober wraps the ffprobe binary.
type Prober struct {
	run    CommandRunner
	binary string
	logger *slog.Logger
}

// New constructs a Prober.
func New(binary string, run CommandRunner, logger *slog.Logger) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{run: run, binary: binary, logger: logging.NewComponentLogger(logger, "ffprobe")}
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	out, err := p.run.Run(ctx, runner.Command{
		Name: p.binary,
		Args: []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path},
	})
	if err != nil {
		return Result{}, services.Wrap(services.ErrProbe, "probe", "inspect", path, err)
	}
	if out.ExitCode != 0 {
		return Result{}, services.Wrap(services.ErrProbe, "probe", "inspect",
			fmt.Sprintf("exit %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr)), nil)
	}
	var result Result
	if err := json.Unmarshal([]byte(out.Stdout), &result); err != nil {
		return Result{}, services.Wrap(services.ErrProbe, "probe", "parse", path, err)
	}
	return result, nil
}

// Duration returns the media duration in whole seconds, rounded down. An
// empty or unparsable probe result yields 0; probe failures are logged, never
// returned.
func (p *Prober) Duration(ctx context.Context, path string) int {
	logger := logging.WithContext(ctx, p.logger).With(logging.String("path", path))
	out, err := p.run.Run(ctx, runner.Command{
		Name: p.binary,
		Args: []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path},
	})
	if err != nil {
		logging.WarnWithContext(logger, "duration probe failed", "duration_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "duration reported as 0"),
		)
		return 0
	}
	return ParseDuration(out.Stdout, logger)
}

// ParseDuration converts ffprobe's single-value duration output to whole
// seconds. logger may be nil.
func ParseDuration(output string, logger *slog.Logger) int {
	value := strings.TrimSpace(output)
	if value == "" {
		if logger != nil {
			logger.Warn("empty duration output", logging.String(logging.FieldEventType, "duration_empty"))
		}
		return 0
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		if logger != nil {
			logger.Warn("invalid duration output",
				logging.String(logging.FieldEventType, "duration_invalid"),
				logging.String("output", value),
			)
		}
		return 0
	}
	return int(math.Floor(seconds))
}

// Dimensions returns the first video stream's width and height, or the
// fallback values when probing fails.
func (p *Prober) Dimensions(ctx context.Context, path string, fallbackWidth, fallbackHeight int) (int, int) {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		logging.WithContext(ctx, p.logger).Debug("dimension probe failed; using defaults",
			logging.String("path", path),
			logging.Error(err),
		)
		return fallbackWidth, fallbackHeight
	}
	if w, h, ok := result.Dimensions(); ok {
		return w, h
	}
	return fallbackWidth, fallbackHeight
}
