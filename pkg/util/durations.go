package util

import (
	"fmt"
	"time"
)

// PrettyDuration returns a human-formatted duration string
// given a Go time.Duration value.
func PrettyDuration(duration time.Duration) string {
	seconds := duration.Seconds()

	if seconds < 1.0 {
		return fmt.Sprintf("%dms", duration.Milliseconds())
	} else if seconds < 240.0 {
		return fmt.Sprintf("%ds", int(seconds))
	} else if seconds < (2.0 * 60.0 * 60.0) {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	}
}

// PrettyCount returns a short, human-formatted version of a (message) count.
func PrettyCount(count int64) string {
	value := float64(count)

	switch {
	case value >= 1e9:
		return fmt.Sprintf("%0.1fB", value/1e9)
	case value >= 1e6:
		return fmt.Sprintf("%0.1fM", value/1e6)
	case value >= 1e4:
		return fmt.Sprintf("%0.1fK", value/1e3)
	default:
		return fmt.Sprintf("%d", count)
	}
}
