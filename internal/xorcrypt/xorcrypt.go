package xorcrypt

import (
	"errors"
	"fmt"
	"os"
)

// PrefixLength is the number of leading bytes the scheme covers.
const PrefixLength = 28

// ErrKeyRange reports a key character outside the single-byte range.
var ErrKeyRange = errors.New("xorcrypt: key character above U+00FF")

// KeyBytes maps each character of key to its code point as one byte. Keys are
// indexed per character, not per UTF-8 byte.
func KeyBytes(key string) ([]byte, error) {
	out := make([]byte, 0, len(key))
	for _, r := range key {
		if r > 0xFF {
			return nil, fmt.Errorf("%w: %q", ErrKeyRange, r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

// Transform applies the scheme to buf in place. buf is the file prefix, so its
// indices are file offsets.
func Transform(buf, key []byte) {
	for i := range buf {
		if i < len(key) {
			buf[i] ^= key[i]
		} else {
			buf[i] ^= byte(i)
		}
	}
}

// DecryptFile transforms the prefix of the file at path and reports success.
// Errors are not returned; use Apply when the cause matters.
func DecryptFile(path, key string) bool {
	return Apply(path, key) == nil
}

// Apply transforms the prefix of the file at path in place.
func Apply(path, key string) error {
	keyBytes, err := KeyBytes(key)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("xorcrypt: %s is not a regular file", path)
	}
	n := min(int64(PrefixLength), info.Size())
	if n == 0 {
		return nil
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := transformPrefix(file, int(n), keyBytes); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// transformPortable is the read-modify-write path used where mmap is unavailable.
func transformPortable(file *os.File, n int, key []byte) error {
	buf := make([]byte, n)
	if _, err := file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("xorcrypt: read prefix: %w", err)
	}
	Transform(buf, key)
	written, err := file.WriteAt(buf, 0)
	if err != nil {
		return fmt.Errorf("xorcrypt: write prefix: %w", err)
	}
	if written != n {
		return errors.New("xorcrypt: short write")
	}
	return nil
}
