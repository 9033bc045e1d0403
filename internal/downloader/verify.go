package downloader

import (
	"os"
	"strings"
)

// Variant names which probe matched the produced file.
type Variant string

const (
	VariantExact   Variant = "exact"
	VariantWebm    Variant = "webm"
	VariantMKV     Variant = "mkv"
	VariantMP4     Variant = "mp4"
	VariantMP4Webm Variant = "mp4.webm"
	VariantNone    Variant = ""
)

type candidate struct {
	path    string
	variant Variant
}

// candidates lists the names yt-dlp may have written for name, in probe order:
// the exact name, name+".webm", then the base name (up to the first dot) with
// ".mkv", ".mp4", and ".mp4.webm".
func candidates(name string) []candidate {
	base := baseBeforeFirstDot(name)
	return []candidate{
		{name, VariantExact},
		{name + ".webm", VariantWebm},
		{base + ".mkv", VariantMKV},
		{base + ".mp4", VariantMP4},
		{base + ".mp4.webm", VariantMP4Webm},
	}
}

// locateOutput returns the first candidate that exists as a regular file.
func locateOutput(name string) (string, Variant, bool) {
	for _, c := range candidates(name) {
		info, err := os.Stat(c.path)
		if err == nil && info.Mode().IsRegular() {
			return c.path, c.variant, true
		}
	}
	return name, VariantNone, false
}

// baseBeforeFirstDot trims everything from the first dot of the final path
// element, leaving directories untouched.
func baseBeforeFirstDot(name string) string {
	slash := strings.LastIndexAny(name, `/\`)
	if idx := strings.IndexByte(name[slash+1:], '.'); idx > 0 {
		return name[:slash+1+idx]
	}
	return name
}
