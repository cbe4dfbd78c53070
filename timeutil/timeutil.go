// Package timeutil is the single authority for translating between the
// configured organization time zone and the UTC instants kept in storage.
package timeutil

import (
	"fmt"
	"math"
	"time"
)

// Clock converts between local wall-clock values and UTC instants for one
// configured IANA zone. All methods are pure given the zone.
type Clock struct {
	loc *time.Location
}

func NewClock(tz string) (*Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", tz, err)
	}
	return &Clock{loc: loc}, nil
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current local-zone time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// ToLocal converts a stored instant to the local zone. Legacy naive values
// are normalized with AssumeUTC first, so they are never an error.
func (c *Clock) ToLocal(t time.Time) time.Time {
	return AssumeUTC(t).In(c.loc)
}

// Combine builds the UTC instant for a local calendar date plus an "HH:MM"
// wall-clock time. This is the only correct way to construct entry/exit
// instants from user-facing date + time input.
func (c *Clock) Combine(date time.Time, clock string) (time.Time, error) {
	mins, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	local := time.Date(date.Year(), date.Month(), date.Day(), mins/60, mins%60, 0, 0, c.loc)
	return local.UTC(), nil
}

// LocalDate returns the local calendar date of an instant, normalized with
// DateOnly so dates compare and store consistently.
func (c *Clock) LocalDate(t time.Time) time.Time {
	return DateOnly(c.ToLocal(t))
}

// AssumeUTC normalizes a possibly-naive timestamp. Values scanned from legacy
// columns without zone metadata arrive in time.Local; their wall clock is
// reinterpreted as UTC. Zone-aware values pass through unchanged.
func AssumeUTC(t time.Time) time.Time {
	if t.Location() == time.Local {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	return t
}

// DateOnly strips the time of day, keeping the calendar date as a UTC
// midnight so equality checks against stored date columns are exact.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// SameDatePtr reports whether a nullable marker date equals the given day.
func SameDatePtr(a *time.Time, b time.Time) bool {
	return a != nil && SameDate(*a, b)
}

// WeekdayIndex maps time.Weekday (Sunday=0) onto the schedule convention of
// Monday=0 .. Sunday=6.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// MinutesOfDay returns the wall-clock time as minutes since local midnight.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// FormatDuration renders a duration as "H h M min". Aggregation keeps whole
// seconds; rounding to the minute happens only here, at presentation time.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int(math.Round(d.Seconds() / 60))
	return fmt.Sprintf("%d h %d min", mins/60, mins%60)
}
