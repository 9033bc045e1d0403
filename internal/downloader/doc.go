// Package downloader drives yt-dlp (with aria2c as the multi-connection
// transport) to fetch manifests and direct media sources.
//
// FetchManifest downloads the elementary streams of a DASH manifest into a
// job workspace for the DRM path. Download is the generic path used for
// obfuscated sources: it applies the retry policy table, then reports which
// output file, if any, was produced. yt-dlp picks the final extension itself,
// so the adapter probes a fixed list of name variants and says which one
// matched rather than trusting the requested name.
//
// Retry eligibility is looked up per source host in a PolicyTable built from
// configuration. Every Download call starts with a fresh RetryBudget, so
// concurrent jobs never share retry state.
package downloader
