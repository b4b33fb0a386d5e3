package models

import (
	"fmt"
	"time"
)

// HighestUtilization returns the maximum utilization across all present
// limits, or 0 when no snapshot exists.
func HighestUtilization(s *UsageSnapshot) float64 {
	limit, ok := HighestResetLimit(s)
	if !ok {
		return 0
	}
	return limit.Utilization
}

// HighestResetLimit returns the limit owning the highest utilization.
// Ties go to the earliest limit in canonical order: only a strictly
// greater utilization replaces the running best.
func HighestResetLimit(s *UsageSnapshot) (UsageLimit, bool) {
	if s == nil {
		return UsageLimit{}, false
	}

	limits := s.Limits()
	best := limits[0].Limit
	for _, nl := range limits[1:] {
		if nl.Limit.Utilization > best.Utilization {
			best = nl.Limit
		}
	}
	return best, true
}

// FormatAgo renders the time since the last update in three buckets:
// "just now" under a minute, minutes under an hour, hours beyond.
func FormatAgo(since, now time.Time) string {
	d := now.Sub(since)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// FormatRemaining renders the time until a reset. A reset in the past (or
// right now) is "Now"; otherwise hours and minutes appear only when
// non-zero, with sub-minute remainders rounding up to "1m".
func FormatRemaining(until, now time.Time) string {
	d := until.Sub(now)
	if d <= 0 {
		return "Now"
	}

	total := int(d.Minutes())
	if total == 0 {
		total = 1
	}
	hours := total / 60
	minutes := total % 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// FormatReset renders a reset instant per the display preference: a
// countdown when countdown is true, the literal clock time otherwise.
func FormatReset(t, now time.Time, countdown bool) string {
	if countdown {
		return FormatRemaining(t, now)
	}
	return FormatClock(t, now)
}

// FormatClock renders a reset instant as a literal time: just the clock
// time when the reset falls on the same day as now, prefixed with the
// weekday otherwise.
func FormatClock(t, now time.Time) string {
	y1, m1, d1 := t.Local().Date()
	y2, m2, d2 := now.Local().Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Local().Format("3:04 PM")
	}
	return t.Local().Format("Mon 3:04 PM")
}
