package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters and control runes are removed. The name is NFC-normalized so
// captions pasted from different clients map to the same file.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	return strings.Trim(name, ".")
}

// BaseName strips a trailing extension, if any, from a file name.
func BaseName(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx > 0 && !strings.ContainsAny(name[idx:], "/\\") {
		return name[:idx]
	}
	return name
}
