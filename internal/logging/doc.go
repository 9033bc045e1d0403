// Package logging assembles structured slog loggers and formatting helpers used
// across mpdgrab.
//
// It owns the configurable console/JSON handlers, tees terminal output into a
// JSON log file when a log directory is configured, and exposes context-aware
// helpers so pipeline code can automatically tag log lines with job IDs and
// stage names. The package also provides a no-op logger for tests and a
// progress sampler that keeps chatty external-tool output readable.
package logging
