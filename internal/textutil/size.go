package textutil

import (
	"fmt"
	"time"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// HumanReadableSize renders a byte count with two decimals using 1024-based
// units, e.g. 1536 -> "1.50 KB". Sizes beyond petabytes stay in PB.
func HumanReadableSize(size int64) string {
	value := float64(size)
	unit := sizeUnits[0]
	for i, u := range sizeUnits {
		unit = u
		if value < 1024 || i == len(sizeUnits)-1 {
			break
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f %s", value, unit)
}

// TimeName returns a timestamp-based default video name such as
// "2026-10-17 142233.mp4".
func TimeName(now time.Time) string {
	return now.Format("2006-01-02 150405") + ".mp4"
}
