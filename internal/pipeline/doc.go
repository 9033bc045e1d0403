// Package pipeline orchestrates a media job from key resolution to delivery.
//
// Stages run sequentially per job: resolve, download, decrypt, merge, place,
// post-process, deliver. Every job works inside its own workspace
// (<work_dir>/<job id>) which is removed when the job ends, so concurrent jobs
// never share intermediates. The merged artifact is moved into the output
// directory under an advisory file lock.
//
// Failures surface as services markers so callers can branch with errors.Is;
// Run additionally reports them to the operator (ntfy) and back to the chat.
package pipeline
