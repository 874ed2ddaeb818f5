package calendar

import (
	"fmt"
	"time"
)

// ConfigurationError reports a ticker or exchange missing from the static
// tables. Not recoverable locally; surfaced to the caller.
type ConfigurationError struct {
	Ticker   string // Set when a ticker suffix could not be mapped
	Exchange string // Set when an exchange code is unknown
}

func (e *ConfigurationError) Error() string {
	if e.Exchange != "" {
		return fmt.Sprintf("unknown exchange %q", e.Exchange)
	}
	return fmt.Sprintf("no exchange mapping for ticker %q", e.Ticker)
}

// InvalidSessionError reports a session name not configured for an exchange.
type InvalidSessionError struct {
	Exchange string
	Session  string
}

func (e *InvalidSessionError) Error() string {
	return fmt.Sprintf("exchange %q has no session %q", e.Exchange, e.Session)
}

// TimeOfDay is a local wall-clock time within a trading day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// UnmarshalYAML parses "HH:MM".
func (t *TimeOfDay) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// On anchors the wall-clock time to a calendar date in the given location.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// SessionWindow is a named sub-window of a trading day in local time.
// End rolling past midnight is expressed by End < Start.
type SessionWindow struct {
	Start TimeOfDay `yaml:"start"`
	End   TimeOfDay `yaml:"end"`
}

// crossesMidnight reports whether the window rolls into the next calendar
// day. Equal start and end means a 24-hour session (e.g. FX).
func (w SessionWindow) crossesMidnight() bool {
	if w.End.Hour != w.Start.Hour {
		return w.End.Hour < w.Start.Hour
	}
	return w.End.Minute <= w.Start.Minute
}

// Exchange holds the static session configuration for one exchange code.
type Exchange struct {
	TZ       string                   `yaml:"tz"`
	Open     TimeOfDay                `yaml:"open"`
	Close    TimeOfDay                `yaml:"close"`
	Sessions map[string]SessionWindow `yaml:"sessions"`
	Weekend  []string                 `yaml:"weekend"`  // Weekday names, defaults to Saturday/Sunday
	Holidays []string                 `yaml:"holidays"` // "YYYY-MM-DD" dates

	loc      *time.Location
	weekend  map[time.Weekday]struct{}
	holidays map[string]struct{}
}

// Window is a resolved absolute session window.
type Window struct {
	Exchange string
	Session  string
	TZ       string
	Start    time.Time // UTC instant
	End      time.Time // UTC instant
}

// SessionDay is the canonical whole-day session name.
const SessionDay = "day"
