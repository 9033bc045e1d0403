// Package logs reads the JSON job log written under the configured log
// directory.
//
// Tail returns the newest records, optionally narrowed to one job or a minimum
// level, and Follow polls for records appended after a known offset. The
// console command `mpdgrab logs` is built on both.
package logs
