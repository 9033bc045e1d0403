// Package xorcrypt reverses the lightweight XOR obfuscation some providers
// apply to the head of a video file.
//
// Only the first min(28, size) bytes are touched, in place. Byte i is XORed
// with key[i] while i is inside the key, and with i itself beyond it. The
// transform is its own inverse. On unix the prefix is edited through a shared
// memory mapping; elsewhere it is read, transformed, and written back.
package xorcrypt
