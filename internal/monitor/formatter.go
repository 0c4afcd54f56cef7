package monitor

import (
	"fmt"
	"time"
)

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatConfidence formats a classifier confidence, or "n/a" when none.
func FormatConfidence(c *float64) string {
	if c == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *c)
}

// FormatRounds formats round progress as "done/total".
func FormatRounds(done, total int) string {
	return fmt.Sprintf("%d/%d", done, total)
}

// FormatDuration formats d as "Xh Ym", "Xm Ys" or "Xs".
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
