// Package models defines data structures and domain types.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// UsageLimit is one rate-limit window as reported by the usage endpoint.
// Utilization is a percentage in [0,100]; the API is trusted on range, no
// clamping happens at parse time. ResetsAt is nil for windows that have
// never been touched.
type UsageLimit struct {
	Utilization float64    `json:"utilization"`
	ResetsAt    *time.Time `json:"resets_at"`
}

// The endpoint emits ISO-8601 timestamps in two shapes, with and without
// fractional seconds. Try the fractional layout first, then whole seconds.
var resetTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
}

// ParseResetTime parses a reset timestamp in either accepted shape.
func ParseResetTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range resetTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("unrecognized reset timestamp %q: %w", s, lastErr)
}

// UnmarshalJSON decodes a limit, rejecting malformed reset timestamps.
func (l *UsageLimit) UnmarshalJSON(data []byte) error {
	var raw struct {
		Utilization float64 `json:"utilization"`
		ResetsAt    *string `json:"resets_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.Utilization = raw.Utilization
	l.ResetsAt = nil
	if raw.ResetsAt != nil {
		t, err := ParseResetTime(*raw.ResetsAt)
		if err != nil {
			return err
		}
		l.ResetsAt = &t
	}
	return nil
}

// UsageSnapshot is one fetched usage result. The session and weekly windows
// are always present; the rest are per-capability windows the API reports as
// null when inactive. A snapshot is immutable once constructed and replaces
// any prior snapshot wholesale.
type UsageSnapshot struct {
	FiveHour          UsageLimit  `json:"five_hour"`
	SevenDay          UsageLimit  `json:"seven_day"`
	SevenDaySonnet    *UsageLimit `json:"seven_day_sonnet"`
	SevenDayOpus      *UsageLimit `json:"seven_day_opus"`
	SevenDayOauthApps *UsageLimit `json:"seven_day_oauth_apps"`
	SevenDayCowork    *UsageLimit `json:"seven_day_cowork"`
	IguanaNecktie     *UsageLimit `json:"iguana_necktie"`
	ExtraUsage        *UsageLimit `json:"extra_usage"`
}

// NamedLimit pairs a limit with its display name.
type NamedLimit struct {
	Name  string
	Limit UsageLimit
}

// Limits returns the present limits in canonical order: session, weekly,
// then each optional window in a fixed enumeration order. This order is the
// tie-break rule for HighestResetLimit.
func (s *UsageSnapshot) Limits() []NamedLimit {
	limits := []NamedLimit{
		{Name: "Session (5h)", Limit: s.FiveHour},
		{Name: "Weekly (7d)", Limit: s.SevenDay},
	}

	optional := []struct {
		name  string
		limit *UsageLimit
	}{
		{"Sonnet (7d)", s.SevenDaySonnet},
		{"Opus (7d)", s.SevenDayOpus},
		{"OAuth apps (7d)", s.SevenDayOauthApps},
		{"Cowork (7d)", s.SevenDayCowork},
		{"Iguana necktie", s.IguanaNecktie},
		{"Extra usage", s.ExtraUsage},
	}
	for _, o := range optional {
		if o.limit != nil {
			limits = append(limits, NamedLimit{Name: o.name, Limit: *o.limit})
		}
	}
	return limits
}
