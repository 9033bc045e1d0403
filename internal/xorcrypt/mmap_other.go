//go:build !unix

package xorcrypt

import "os"

func transformPrefix(file *os.File, n int, key []byte) error {
	return transformPortable(file, n, key)
}
