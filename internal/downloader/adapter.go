package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"mpdgrab/internal/config"
	"mpdgrab/internal/logging"
	"mpdgrab/internal/runner"
	"mpdgrab/internal/services"
)

// CommandRunner executes one external command.
type CommandRunner interface {
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
}

// Option configures the adapter.
type Option func(*Adapter)

// WithSleep replaces the backoff sleep (primarily for tests).
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(a *Adapter) {
		if sleep != nil {
			a.sleep = sleep
		}
	}
}

// WithPolicies overrides the retry policy table.
func WithPolicies(table *PolicyTable) Option {
	return func(a *Adapter) {
		if table != nil {
			a.policies = table
		}
	}
}

// Adapter invokes the segmented downloader.
type Adapter struct {
	run      CommandRunner
	binary   string
	aria2c   string
	settings config.Download
	policies *PolicyTable
	sleep    func(context.Context, time.Duration) error
	logger   *slog.Logger
}

// New constructs an Adapter from configuration.
func New(cfg *config.Config, run CommandRunner, logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		run:      run,
		binary:   cfg.Tools.YTDLP,
		aria2c:   cfg.Tools.Aria2c,
		settings: cfg.Download,
		policies: NewPolicyTable(cfg.Download.RetryPolicies),
		sleep:    sleepContext,
		logger:   logging.NewComponentLogger(logger, "downloader"),
	}
	if a.aria2c == "" {
		a.aria2c = "aria2c"
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ManifestRequest asks for the elementary streams of a manifest.
type ManifestRequest struct {
	URL     string
	Quality string
	Dir     string
}

// ManifestResult lists the raw stream files the downloader left in Dir.
type ManifestResult struct {
	Files    []string
	ExitCode int
}

// FetchManifest downloads the best video stream at or below the quality
// ceiling plus the best audio stream (or the best combined stream) into
// req.Dir as file.<ext>. The tool's exit code is recorded but success is
// judged by the files it leaves behind.
func (a *Adapter) FetchManifest(ctx context.Context, req ManifestRequest) (ManifestResult, error) {
	if strings.TrimSpace(req.URL) == "" {
		return ManifestResult{}, services.Wrap(services.ErrValidation, "download", "manifest", "manifest URL required", nil)
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return ManifestResult{}, services.Wrap(services.ErrConfiguration, "download", "manifest", "create job directory", err)
	}
	quality := a.quality(req.Quality)
	args := []string{
		"-f", FormatSelector(quality),
		"-o", filepath.Join(req.Dir, "file.%(ext)s"),
		"--allow-unplayable-formats",
		"--no-check-certificate",
		"--external-downloader", a.aria2c,
		"--concurrent-fragments", strconv.Itoa(max(a.settings.ConcurrentFragments, 1)),
		req.URL,
	}
	logger := logging.WithContext(ctx, a.logger)
	logger.Info("downloading manifest",
		logging.String(logging.FieldEventType, "manifest_download_start"),
		logging.String("quality", quality),
	)
	result, err := a.run.Run(ctx, runner.Command{Name: a.binary, Args: args})
	if err != nil {
		return ManifestResult{}, services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "run", err)
	}

	files, err := listFiles(req.Dir)
	if err != nil {
		return ManifestResult{}, services.Wrap(services.ErrDownload, "download", "manifest", "list job directory", err)
	}
	if len(files) == 0 {
		return ManifestResult{ExitCode: result.ExitCode}, services.Wrap(services.ErrDownload, "download", "manifest",
			fmt.Sprintf("no streams downloaded (exit %d)", result.ExitCode), nil)
	}
	logger.Info("manifest download finished",
		logging.String(logging.FieldEventType, "manifest_download_complete"),
		logging.Int("files", len(files)),
		logging.Int("exit_code", result.ExitCode),
	)
	return ManifestResult{Files: files, ExitCode: result.ExitCode}, nil
}

// Request asks for a generic (non-DRM) download to Name.
type Request struct {
	URL     string
	Name    string
	Quality string
	// Args are extra yt-dlp arguments placed before the URL.
	Args []string
}

// Result describes what a Download produced. When Produced is false, Path is
// the requested name and no file was found under any probed variant.
type Result struct {
	Path     string
	Produced bool
	Variant  Variant
	Attempts int
	ExitCode int
	Policy   string
}

// Download runs yt-dlp with aria2c as the external downloader. A failed
// invocation is retried only when the source's policy grants retries; the
// budget is local to this call.
func (a *Adapter) Download(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Name) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "download", "video", "URL and output name required", nil)
	}
	if dir := filepath.Dir(req.Name); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, services.Wrap(services.ErrConfiguration, "download", "video", "create output directory", err)
		}
	}

	policy := a.policies.Classify(req.URL)
	budget := NewRetryBudget(policy.MaxRetries)
	cmd := runner.Command{Name: a.binary, Args: a.downloadArgs(req)}
	logger := logging.WithContext(ctx, a.logger).With(logging.String("policy", policy.Name))

	attempts := 0
	exitCode := 0
	for {
		attempts++
		result, err := a.run.Run(ctx, cmd)
		if err != nil {
			return Result{Path: req.Name, Attempts: attempts, Policy: policy.Name},
				services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "run", err)
		}
		exitCode = result.ExitCode
		if exitCode == 0 {
			break
		}
		if !budget.Take() {
			if policy.MaxRetries > 0 {
				logging.WarnWithContext(logger, "download retries exhausted", "download_retries_exhausted",
					logging.Int("attempts", attempts),
					logging.Int("exit_code", exitCode),
					logging.String(logging.FieldImpact, "output may be missing or partial"),
				)
			}
			break
		}
		logger.Info("download failed; retrying",
			logging.String(logging.FieldEventType, "download_retry"),
			logging.Int("exit_code", exitCode),
			logging.Int("retry", budget.Used()),
			logging.Int("remaining", budget.Remaining()),
			logging.Duration("backoff", policy.Backoff),
		)
		if err := a.sleep(ctx, policy.Backoff); err != nil {
			return Result{Path: req.Name, Attempts: attempts, ExitCode: exitCode, Policy: policy.Name}, err
		}
	}

	path, variant, ok := locateOutput(req.Name)
	out := Result{
		Path:     path,
		Produced: ok,
		Variant:  variant,
		Attempts: attempts,
		ExitCode: exitCode,
		Policy:   policy.Name,
	}
	logger.Info("download finished",
		logging.String(logging.FieldEventType, "download_complete"),
		logging.Bool("produced", ok),
		logging.String("variant", string(variant)),
		logging.Int("attempts", attempts),
	)
	return out, nil
}

func (a *Adapter) downloadArgs(req Request) []string {
	args := []string{
		"-f", FormatSelector(a.quality(req.Quality)),
		"-o", req.Name,
	}
	args = append(args, req.Args...)
	args = append(args,
		"-R", strconv.Itoa(a.settings.Retries),
		"--fragment-retries", strconv.Itoa(a.settings.FragmentRetries),
		"--external-downloader", a.aria2c,
		"--downloader-args", a.settings.Aria2cArgs,
		req.URL,
	)
	return args
}

// ListFormats returns the video renditions yt-dlp reports for source.
func (a *Adapter) ListFormats(ctx context.Context, source string) ([]Format, error) {
	result, err := a.run.Run(ctx, runner.Command{Name: a.binary, Args: []string{"-F", "--no-check-certificate", source}})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "list formats", err)
	}
	if result.ExitCode != 0 {
		return nil, services.Wrap(services.ErrDownload, "download", "yt-dlp",
			fmt.Sprintf("list formats exited %d: %s", result.ExitCode, lastLine(result.Stderr)), nil)
	}
	return ParseFormats(result.Stdout), nil
}

func (a *Adapter) quality(requested string) string {
	q := strings.TrimSuffix(strings.TrimSpace(requested), "p")
	if q == "" {
		q = a.settings.Quality
	}
	if q == "" {
		q = "720"
	}
	return q
}

// FormatSelector is the yt-dlp expression for the best video at or below
// height plus the best audio, falling back to the best combined stream.
func FormatSelector(height string) string {
	return "bv[height<=" + height + "]+ba/b"
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return text[idx+1:]
	}
	return text
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
