package exporter

import (
	"strconv"
	"time"
)

// formatFloat formats a float64 value with exactly 2 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// formatDelta formats a gap in seconds; a missing predecessor is empty.
func formatDelta(d *float64) string {
	if d == nil {
		return ""
	}
	return strconv.FormatFloat(*d, 'f', 3, 64)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

// formatTime formats a timestamp with its offset.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
