package format

import (
	"testing"
	"time"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestDate(t *testing.T) {
	d := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	if got := Date(&d); got != "Mar 04, 2024" {
		t.Fatalf("got %q", got)
	}
	if got := Date(nil); got != "Not set" {
		t.Fatalf("got %q", got)
	}
}

func TestTimeSpent(t *testing.T) {
	cases := map[float64]string{
		-5:     "0m",
		0:      "0m",
		59:     "0m",
		2700:   "45m",
		7200:   "2h",
		3900.9: "1h 5m",
	}
	for in, want := range cases {
		if got := TimeSpent(in); got != want {
			t.Fatalf("TimeSpent(%v) = %q want %q", in, got, want)
		}
	}
}

func TestDeadlineFor(t *testing.T) {
	cases := []struct {
		end  *time.Time
		want Deadline
		days int
	}{
		{nil, DeadlineNone, 0},
		{at(-49 * time.Hour), DeadlineOverdue, -2},
		{at(30 * time.Hour), DeadlineDueSoon, 2},
		{at(72 * time.Hour), DeadlineOnTrack, 3},
	}
	for _, tc := range cases {
		if got := DeadlineFor(tc.end, now); got != tc.want {
			t.Fatalf("DeadlineFor(%v) = %s want %s", tc.end, got, tc.want)
		}
		days, ok := DaysRemaining(tc.end, now)
		if ok != (tc.end != nil) || days != tc.days {
			t.Fatalf("DaysRemaining(%v) = %d,%v want %d", tc.end, days, ok, tc.days)
		}
	}
}

func TestRelative(t *testing.T) {
	if got := Relative(at(-48*time.Hour), now); got != "2 days ago" {
		t.Fatalf("got %q", got)
	}
	if got := Relative(at(3*time.Hour), now); got != "3 hours from now" {
		t.Fatalf("got %q", got)
	}
	if got := Relative(nil, now); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"Ada Lovelace":          "AL",
		"grace brewster hopper": "GH",
		"linus":                 "L",
		"   ":                   "?",
		"élodie durand":         "ÉD",
	}
	for in, want := range cases {
		if got := Initials(in); got != want {
			t.Fatalf("Initials(%q) = %q want %q", in, got, want)
		}
	}
}
