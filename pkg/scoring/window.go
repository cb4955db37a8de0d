package scoring

import (
	"context"
	"strings"
	"time"
)

// Window selects which records count towards a leaderboard.
type Window string

const (
	AllTime Window = "all"
	Weekly  Window = "weekly"
	War     Window = "war"
)

// ParseWindow accepts the API and CLI spellings of a window. An empty string is AllTime.
func ParseWindow(s string) (Window, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "all_time", "all-time", "alltime":
		return AllTime, true
	case "weekly", "week":
		return Weekly, true
	case "war":
		return War, true
	}
	return "", false
}

// WarOracle reports the current war number.
type WarOracle interface {
	CurrentNumber(ctx context.Context) (int, error)
}

// Scope is a resolved window: records created at or after Since (when set)
// and stamped with WarNumber (when set).
type Scope struct {
	Window    Window
	Since     time.Time
	WarNumber *int
	// Degraded is set when a war window fell back to all time.
	Degraded bool
}

// StartOfWeek returns the most recent Sunday 00:00 in now's location.
func StartOfWeek(now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// Resolve turns w into a Scope. A war window whose oracle fails resolves to
// all time with Degraded set; it never returns an error.
func Resolve(ctx context.Context, w Window, now time.Time, oracle WarOracle, log Logger) Scope {
	switch w {
	case Weekly:
		return Scope{Window: Weekly, Since: StartOfWeek(now)}
	case War:
		if oracle == nil {
			log.Warnf("No war oracle configured, using all-time leaderboard")
			return Scope{Window: AllTime, Degraded: true}
		}
		n, err := oracle.CurrentNumber(ctx)
		if err != nil {
			log.Warnf("Could not resolve current war, using all-time leaderboard: %v", err)
			return Scope{Window: AllTime, Degraded: true}
		}
		return Scope{Window: War, WarNumber: &n}
	}
	return Scope{Window: AllTime}
}
