// Package textutil provides small text helpers shared by the CLI and the
// pipeline: filename sanitization, human-readable byte sizes, and
// timestamp-based default names.
package textutil
