// Package keys resolves a manifest locator and DRM key material from a
// third-party key API.
//
// Upstream providers answer with one of three JSON shapes ({MPD, KEYS},
// {mpd_url, keys}, {url}); each has its own entry point and Resolve dispatches
// on a Shape. Every failure mode (network error, non-2xx status, empty or
// non-JSON body, missing field) surfaces as services.ErrResolution so callers
// can treat "no result" uniformly. The resolver never retries.
package keys
