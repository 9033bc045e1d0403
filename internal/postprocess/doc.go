// Package postprocess prepares a finished video for delivery: a still-frame
// thumbnail (unless the caller brings one), an optional centered watermark
// written to a new file, and probed duration and dimensions.
//
// Every step here is recoverable. A failed thumbnail leaves the video without
// one, a failed watermark ships the unmarked source, and a failed probe
// reports zero seconds and the configured default dimensions.
package postprocess
