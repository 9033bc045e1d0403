// Package main hosts the mpdgrab CLI entrypoint and command graph.
//
// The Cobra command tree builds a pipeline from configuration and runs one job
// per invocation: fetch (DRM manifest path), xor (obfuscated download path),
// pdf (bulk documents), plus inspection helpers (formats, resolve, doctor),
// maintenance (clean, logs) and configuration scaffolding.
package main
