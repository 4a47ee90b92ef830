// Package format renders board values for people: dates, durations, deadlines
// and user initials.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
)

const dateLayout = "Jan 02, 2006"

// Date formats t as "Jan 02, 2006", or "Not set" when t is nil.
func Date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "Not set"
	}
	return t.Format(dateLayout)
}

// TimeSpent renders seconds as hours and minutes: "0m", "45m", "2h", "1h 5m".
func TimeSpent(seconds float64) string {
	if seconds <= 0 {
		return "0m"
	}
	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}

// Relative renders t relative to now, e.g. "2 days ago" or "3 hours from now".
func Relative(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}

// DaysRemaining returns the number of days until end, rounded up. Negative
// values mean the deadline has passed.
func DaysRemaining(end *time.Time, now time.Time) (int, bool) {
	if end == nil || end.IsZero() {
		return 0, false
	}
	days := end.Sub(now).Hours() / 24
	return int(math.Ceil(days)), true
}

type Deadline string

const (
	DeadlineNone    Deadline = "none"
	DeadlineOverdue Deadline = "overdue"
	DeadlineDueSoon Deadline = "due-soon"
	DeadlineOnTrack Deadline = "on-track"
)

// DeadlineFor classifies an end date: overdue, due within two days, or on track.
func DeadlineFor(end *time.Time, now time.Time) Deadline {
	days, ok := DaysRemaining(end, now)
	switch {
	case !ok:
		return DeadlineNone
	case days < 0:
		return DeadlineOverdue
	case days <= 2:
		return DeadlineDueSoon
	default:
		return DeadlineOnTrack
	}
}

// Initials returns the upper-cased first letters of the first and last word
// of name, "?" for an empty name.
func Initials(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "?"
	}
	first := firstLetter(parts[0])
	if len(parts) == 1 {
		return first
	}
	return first + firstLetter(parts[len(parts)-1])
}

func firstLetter(s string) string {
	for _, r := range s {
		return string(unicode.ToUpper(r))
	}
	return ""
}
