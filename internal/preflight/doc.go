// Package preflight provides readiness checks for the external binaries,
// directories, and services mpdgrab depends on.
//
// The CLI "mpdgrab doctor" command runs RunAll and renders the results as a
// table. Individual checks (CheckBinary, CheckDirectoryAccess, CheckEndpoint)
// are also usable on their own.
package preflight
