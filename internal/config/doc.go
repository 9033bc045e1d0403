// Package config loads, normalizes, and validates mpdgrab configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MPDGRAB_TELEGRAM_TOKEN and MPDGRAB_KEYS_API. The Config type centralizes the
// external tool names, download retry policy table, post-processing styling,
// and delivery credentials so the CLI can discover everything in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
