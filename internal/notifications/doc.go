// Package notifications delivers operator notifications about media jobs.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Job failures are tagged with their failure kind so operators can
// filter decryption and merge problems from transient network noise.
package notifications
