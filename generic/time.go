package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day abstraction (time-of-day is never meaningful here)
// =============================================================================

// DateLayout is the wire and storage format for a TimePoint.
const DateLayout = "2006-01-02"

// TimePoint is a calendar day in UTC. Activities happen "on a day", so
// every constructor truncates to midnight.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates any instant to its calendar day, keeping the wall date.
func DayOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return DayOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DayOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return DayOf(tp.Time.AddDate(0, 0, n)) }
func (tp TimePoint) AddMonths(n int) TimePoint { return DayOf(tp.Time.AddDate(0, n, 0)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// IsRestDay reports the two weekly rest days (Friday and Saturday).
// The working week runs Sunday through Thursday.
func (tp TimePoint) IsRestDay() bool {
	wd := tp.Weekday()
	return wd == time.Friday || wd == time.Saturday
}

func (tp TimePoint) IsWorkday() bool { return !tp.IsRestDay() }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

// MarshalJSON writes the day as "YYYY-MM-DD".
func (tp TimePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(tp.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or a full RFC3339 timestamp.
func (tp *TimePoint) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*tp = TimePoint{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*tp = DayOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// HOLIDAY CALENDAR - Read-only collaborator for the utilization dashboard
// =============================================================================

// Holiday is a named non-working day.
type Holiday struct {
	ID   string    `json:"id"`
	Date TimePoint `json:"date"`
	Name string    `json:"name"`
}

// HolidayCalendar supplies holidays for a date range. The recurrence
// generator never consults it; its holiday window is static.
type HolidayCalendar interface {
	HolidaysBetween(ctx context.Context, from, to TimePoint) ([]Holiday, error)
}

// NoHolidays is a calendar with no entries.
type NoHolidays struct{}

func (NoHolidays) HolidaysBetween(context.Context, TimePoint, TimePoint) ([]Holiday, error) {
	return nil, nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return DayOf(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}
