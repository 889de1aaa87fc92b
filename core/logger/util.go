package logger

import (
	"strconv"
	"strings"
	"time"
)

// Took returns the time since start rounded for logging.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to whole milliseconds; non-positive values become 0.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins up to limit values. When more were given it appends
// a "+N more" marker and reports truncation.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	if limit <= 0 {
		return "+" + strconv.Itoa(len(values)) + " more", true
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	rest := len(values) - limit
	return strings.Join(values[:limit], ", ") + " +" + strconv.Itoa(rest) + " more", true
}
