// Package units provides binary size unit multipliers (1024-based) and
// human-readable renderings of byte counts and durations.
package units

import (
	"fmt"
	"strings"
	"time"
)

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

// byteSteps is ordered from the largest unit down.
var byteSteps = []struct {
	size   float64
	suffix string
}{
	{TiB, "TB"},
	{GiB, "GB"},
	{MiB, "MB"},
	{KiB, "KB"},
}

// FormatBytes renders a byte count (or a byte rate) with two decimals and a
// 1024-based suffix, e.g. "12.34 MB". Values below one KiB use "B".
func FormatBytes(bytes float64) string {
	for _, step := range byteSteps {
		if bytes >= step.size {
			return fmt.Sprintf("%.2f %s", bytes/step.size, step.suffix)
		}
	}

	return fmt.Sprintf("%.2f B", bytes)
}

// FormatDuration renders a duration as "2 days, 1 hour, 3 minutes, 4 seconds".
// Zero-valued components are omitted; sub-second durations render as "0 seconds".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	var parts []string

	parts = appendUnit(parts, int64(days), "day")
	parts = appendUnit(parts, int64(hours), "hour")
	parts = appendUnit(parts, int64(minutes), "minute")
	parts = appendUnit(parts, int64(seconds), "second")

	if len(parts) == 0 {
		return "0 seconds"
	}

	return strings.Join(parts, ", ")
}

func appendUnit(parts []string, value int64, name string) []string {
	switch {
	case value == 0:
		return parts
	case value == 1:
		return append(parts, "1 "+name)
	default:
		return append(parts, fmt.Sprintf("%d %ss", value, name))
	}
}
