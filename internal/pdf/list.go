package pdf

import (
	"bufio"
	"io"
	"strings"
)

// ParseList reads one document per line, either "URL" or "Name:URL". Blank
// lines and lines starting with # are skipped, as are lines without an http(s)
// URL.
func ParseList(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "http://")
		if alt := strings.Index(line, "https://"); alt >= 0 && (idx < 0 || alt < idx) {
			idx = alt
		}
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line[:idx]), ":"))
		items = append(items, Item{URL: strings.TrimSpace(line[idx:]), Name: name})
	}
	return items, scanner.Err()
}
