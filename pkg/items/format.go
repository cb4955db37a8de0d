package items

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

var priorityLabels = []string{"Low", "Medium", "High", "Critical"}

func PriorityLabel(p int) string {
	if p < 0 || p >= len(priorityLabels) {
		return "Unknown"
	}
	return priorityLabels[p]
}

func StockpileTypeLabel(t string) string {
	switch t {
	case "SEAPORT":
		return "Seaport"
	case "STORAGE_DEPOT":
		return "Storage Depot"
	}
	return t
}

// Quantity formats n with thousands separators.
func Quantity(n int) string {
	return humanize.Comma(int64(n))
}

// RelativeTime renders t relative to now, e.g. "5 minutes ago". Times older
// than a week are printed as a date.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < 7*24*time.Hour:
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.Format("Jan 02, 2006")
}

// Duration renders d as the two most significant units, e.g. "1d 4h".
func Duration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	minutes := int(d/time.Minute) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", int(d/time.Second))
}
