// Package ffmpeg wraps the ffmpeg invocations of the pipeline: stream-copy
// merging of decrypted video and audio, still-frame thumbnails, and the
// centered text watermark.
//
// Merge checks its own postcondition: the merged container must exist with a
// nonzero size, otherwise the call fails with services.ErrMergeFailed. The
// decrypted intermediates are removed only after a successful merge.
package ffmpeg
