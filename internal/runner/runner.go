package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mpdgrab/internal/logging"
)

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// String renders the command line for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Name))
	for _, arg := range c.Args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if strings.ContainsAny(arg, " \t\"'") {
		return fmt.Sprintf("%q", arg)
	}
	return arg
}

// Result is the outcome of one external process invocation.
type Result struct {
	Command  Command
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	// Err is set when the process could not be run at all (RunBatch only).
	Err error
}

// Success reports whether the process ran and exited with status zero.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Output returns stdout followed by stderr, trimmed.
func (r Result) Output() string {
	switch {
	case r.Stdout == "":
		return strings.TrimSpace(r.Stderr)
	case r.Stderr == "":
		return strings.TrimSpace(r.Stdout)
	default:
		return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
	}
}

// Tagged returns stdout prefixed with "[stdout]", or stderr prefixed with
// "[stderr]" when stdout is empty. ok is false when the command exited with
// status 1 or could not be run.
func (r Result) Tagged() (string, bool) {
	if r.Err != nil || r.ExitCode == 1 {
		return "", false
	}
	if r.Stdout != "" {
		return "[stdout]\n" + r.Stdout, true
	}
	if r.Stderr != "" {
		return "[stderr]\n" + r.Stderr, true
	}
	return "", true
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithQuiet keeps even progress lines at debug level.
func WithQuiet() Option {
	return func(r *Runner) {
		r.quiet = true
	}
}

// Runner executes external commands.
type Runner struct {
	exec   Executor
	logger *slog.Logger
	quiet  bool
}

// New constructs a Runner.
func New(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(logger, "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd and waits for it to exit. The returned error is non-nil only
// when the process could not be started or the context ended; a nonzero exit
// status is reported through Result.ExitCode.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return Result{Command: cmd, ExitCode: -1}, errors.New("runner: command name required")
	}
	logger := logging.WithContext(ctx, r.logger)
	logger.Debug("running command", logging.String("command", cmd.String()))

	var stdout, stderr strings.Builder
	sampler := logging.NewProgressSampler(10)
	start := time.Now()
	code, err := r.exec.Run(ctx, cmd, func(stream Stream, line string) {
		target := &stdout
		if stream == Stderr {
			target = &stderr
		}
		target.WriteString(line)
		target.WriteByte('\n')
		r.logLine(logger, sampler, stream, line)
	})
	result := Result{
		Command:  cmd,
		ExitCode: code,
		Stdout:   strings.TrimRight(stdout.String(), "\n"),
		Stderr:   strings.TrimRight(stderr.String(), "\n"),
		Duration: time.Since(start),
		Err:      err,
	}
	if err != nil {
		return result, fmt.Errorf("run %s: %w", cmd.Name, err)
	}
	logger.Info("command exited",
		logging.String("binary", cmd.Name),
		logging.Int("exit_code", code),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (r *Runner) logLine(logger *slog.Logger, sampler *logging.ProgressSampler, stream Stream, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	percent, progress := parsePercent(trimmed)
	if progress && !sampler.ShouldLog(percent, "progress") {
		return
	}
	// Only sampled progress lines are logged at info.
	if r.quiet || !progress {
		logger.Debug(trimmed, logging.String("stream", stream.String()))
		return
	}
	logger.Info(trimmed, logging.String("stream", stream.String()))
}

// RunBatch executes cmds across at most workers concurrent processes and waits
// for all of them. Per-command failures are logged and recorded in the matching
// Result; they never stop the other commands. Results are in input order.
func (r *Runner) RunBatch(ctx context.Context, workers int, cmds []Command) []Result {
	results := make([]Result, len(cmds))
	if len(cmds) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("waiting for tasks to complete",
		logging.Int("commands", len(cmds)),
		logging.Int("workers", workers),
	)

	var group errgroup.Group
	group.SetLimit(workers)
	for i, cmd := range cmds {
		group.Go(func() error {
			result, err := r.Run(ctx, cmd)
			if err != nil {
				logging.WarnWithContext(logger, "batch command failed", "batch_command_failed",
					logging.String("command", cmd.String()),
					logging.Error(err),
					logging.String(logging.FieldImpact, "remaining commands continue"),
				)
			}
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// parsePercent extracts the first "NN.N%" token from a progress line.
func parsePercent(line string) (float64, bool) {
	idx := strings.IndexByte(line, '%')
	if idx <= 0 {
		return 0, false
	}
	start := idx
	for start > 0 {
		c := line[start-1]
		if (c >= '0' && c <= '9') || c == '.' {
			start--
			continue
		}
		break
	}
	if start == idx {
		return 0, false
	}
	value, err := strconv.ParseFloat(line[start:idx], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
