//go:build unix

package xorcrypt

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func transformPrefix(file *os.File, n int, key []byte) error {
	data, err := unix.Mmap(int(file.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return transformPortable(file, n, key)
	}
	Transform(data, key)
	if err := unix.Msync(data, unix.MS_SYNC); err != nil {
		_ = unix.Munmap(data)
		return fmt.Errorf("xorcrypt: msync: %w", err)
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("xorcrypt: munmap: %w", err)
	}
	return nil
}
