// Package runner executes the external tools that do the heavy lifting for the
// pipeline (yt-dlp, mp4decrypt, ffmpeg, ffprobe).
//
// Run executes one command, streams its output lines into the operator log,
// and returns a Result carrying the exit status and both output streams
// decoded permissively. A nonzero exit status is reported, not treated as an
// error; callers apply their own step-specific checks. RunBatch fans a set of
// independent commands out over a bounded worker pool and waits for all of
// them, so one failing command never aborts the batch.
package runner
