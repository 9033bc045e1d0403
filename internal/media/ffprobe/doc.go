// Package ffprobe provides a typed wrapper around ffprobe.
//
// Key types:
//   - Result: parsed ffprobe JSON output containing streams and format metadata
//   - Prober: runs ffprobe through the command runner
//
// Duration and Dimensions never fail: an empty or unparsable probe result
// becomes 0 seconds, and missing dimensions fall back to caller defaults.
// Inspect returns services.ErrProbe for callers that need the full result.
package ffprobe
