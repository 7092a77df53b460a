package service

import (
	"fmt"
	"time"
)

const calendarDateLayout = "Jan 2, 2006"

// FormatRelativeTime renders t relative to now the way the ledger history shows it
func FormatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	hours := int(diff / time.Hour)
	days := hours / 24

	switch {
	case diff < time.Hour:
		return "Just now"
	case diff < 24*time.Hour:
		return plural(hours, "hour") + " ago"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return plural(days/7, "week") + " ago"
	default:
		return t.Format(calendarDateLayout)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
