package cli

import (
	"fmt"
	"time"
)

// FormatDuration rounds d for display: milliseconds below a second, tenths
// of a second below a minute.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d / time.Minute)
	secs := (d - time.Duration(mins)*time.Minute).Seconds()
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

// FormatBytes formats a size with binary units.
func FormatBytes(n int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.2f KB", float64(n)/KB)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatConfidence renders a similarity in [0, 1] as a percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.1f%%", c*100)
}
