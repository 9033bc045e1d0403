// Package staging inspects and prunes per-job workspaces under the work root.
//
// Every job downloads, decrypts, and merges inside <work_dir>/<job-id>. The
// pipeline removes that directory when a job ends, but a killed process leaves
// it behind. Sweep reclaims such leftovers once they exceed an age threshold.
package staging
