package view

import (
	"fmt"
	"time"
)

// FormatAge describes how long ago t happened, relative to now. Anything
// older than a week is shown as a date.
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	d := now.Sub(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}

	return t.Local().Format("2006-01-02")
}
