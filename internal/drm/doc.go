// Package drm decrypts the elementary streams of a downloaded manifest with
// mp4decrypt.
//
// DecryptDir takes the first .mp4 (video) and first .m4a (audio) raw stream in
// a job directory, decrypts each to video.mp4 / audio.m4a, and deletes every
// raw source after its attempt. A stream counts as decrypted when its output
// file exists. Both kinds must end up decrypted; otherwise the job fails with
// services.ErrDecryptionIncomplete and must not reach the merger.
package drm
