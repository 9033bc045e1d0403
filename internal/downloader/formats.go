package downloader

import (
	"strings"
)

// Format is one selectable video rendition from a yt-dlp -F listing.
type Format struct {
	ID         string
	Resolution string
}

// ParseFormats extracts (format ID, resolution) pairs from `yt-dlp -F` output.
// Bracketed log lines, dashed separators, the header row, audio-only rows, and
// repeated resolutions are skipped; the first ID listed for a resolution wins.
func ParseFormats(listing string) []Format {
	var formats []Format
	seen := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimSpace(listing), "\n") {
		id, resolution, ok := parseFormatLine(line)
		if !ok {
			continue
		}
		if _, dup := seen[resolution]; dup {
			continue
		}
		seen[resolution] = struct{}{}
		formats = append(formats, Format{ID: id, Resolution: resolution})
	}
	return formats
}

// FormatIndex maps each resolution in a yt-dlp -F listing to its format ID.
func FormatIndex(listing string) map[string]string {
	index := make(map[string]string)
	for _, format := range ParseFormats(listing) {
		index[format.Resolution] = format.ID
	}
	return index
}

// parseFormatLine handles both the native yt-dlp layout
// ("137 mp4 1280x720 30 | ...") and the compact piped layout
// ("137 | 1280x720 | mp4").
func parseFormatLine(line string) (id, resolution string, ok bool) {
	if strings.Contains(line, "[") || strings.Contains(line, "---") {
		return "", "", false
	}
	columns := strings.Split(line, "|")
	head := strings.Fields(columns[0])
	switch {
	case len(head) >= 3:
		id, resolution = head[0], head[2]
	case len(head) == 1 && len(columns) > 1:
		rest := strings.Fields(columns[1])
		if len(rest) == 0 {
			return "", "", false
		}
		id, resolution = head[0], rest[0]
	default:
		return "", "", false
	}
	if strings.Contains(resolution, "RESOLUTION") || strings.Contains(resolution, "audio") {
		return "", "", false
	}
	return id, resolution, true
}
