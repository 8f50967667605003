/*
Package recurrence turns sparse scheduling input into concrete dates.

PURPOSE:
  Three acquisition modes produce the tuples handed to the creator:
    1. Weekly rule: one weekday repeated across a pay period
    2. Picked dates: up to MaxPickedDates explicit days per entry
    3. Day grid: one row per working day, toggled symbol by symbol

HOLIDAY WINDOW:
  When Options.ExcludeHolidayWindow is set and the period reports
  January, days from Dec 28 through Jan 4 are dropped. The window is
  fixed and never read from the holiday calendar.

SEE ALSO:
  - form.go: multi-row form and composition validation
  - grid.go: day-grid mode
  - generic/period.go: PayPeriod
*/
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/warp/activity-engine/generic"
)

// MaxPickedDates bounds the explicit dates of one entry.
const MaxPickedDates = 5

// Holiday window bounds, inclusive.
const (
	holidayWindowStartDay = 28 // December
	holidayWindowEndDay   = 4  // January
)

var (
	// ErrInvalidWeekday is returned for weekdays outside Sunday..Thursday.
	ErrInvalidWeekday = errors.New("weekday must be between Sunday and Thursday")

	// ErrTooManyDates is returned when an entry picks more than MaxPickedDates days.
	ErrTooManyDates = errors.New("too many picked dates")

	// ErrDateOutsidePeriod is returned for picked dates outside the pay period.
	ErrDateOutsidePeriod = errors.New("date outside pay period")
)

// Rule repeats one class on one weekday.
type Rule struct {
	ClassID     string       `json:"class_id"`
	Weekday     time.Weekday `json:"weekday"`
	Description string       `json:"description,omitempty"`
}

// Options tune expansion. A nil ExcludeHolidayWindow means the caller
// did not choose, and DefaultHolidayWindow fills it in.
type Options struct {
	ExcludeHolidayWindow *bool `json:"exclude_holiday_window,omitempty"`
}

// WithHolidayWindow returns a copy with the window exclusion set explicitly.
func (o Options) WithHolidayWindow(exclude bool) Options {
	o.ExcludeHolidayWindow = &exclude
	return o
}

// DefaultHolidayWindow sets the exclusion only if it is still unset.
func (o Options) DefaultHolidayWindow(exclude bool) Options {
	if o.ExcludeHolidayWindow != nil {
		return o
	}
	return o.WithHolidayWindow(exclude)
}

// ExcludesHolidayWindow reports whether the window is skipped. Unset is false.
func (o Options) ExcludesHolidayWindow() bool {
	return o.ExcludeHolidayWindow != nil && *o.ExcludeHolidayWindow
}

// ValidWeekday reports whether d is a working weekday (Sunday..Thursday).
func ValidWeekday(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Thursday
}

// HolidayWindow returns the fixed exclusion window for a January period.
// ok is false for any other reporting month.
func HolidayWindow(period generic.PayPeriod) (generic.Period, bool) {
	if period.Reporting.Month != time.January {
		return generic.Period{}, false
	}
	year := period.Reporting.Year
	return generic.Period{
		Start: generic.NewTimePoint(year-1, time.December, holidayWindowStartDay),
		End:   generic.NewTimePoint(year, time.January, holidayWindowEndDay),
	}, true
}

// Expand walks every day of the period and keeps the rule's weekday.
func Expand(rule Rule, period generic.PayPeriod, opts Options) ([]generic.TimePoint, error) {
	if !ValidWeekday(rule.Weekday) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, rule.Weekday)
	}
	if period.End.Before(period.Start) {
		return nil, generic.ErrInvalidPeriod
	}

	window, exclude := HolidayWindow(period)
	exclude = exclude && opts.ExcludesHolidayWindow()

	var out []generic.TimePoint
	for d := period.Start; !d.After(period.End); d = d.AddDays(1) {
		if d.Weekday() != rule.Weekday {
			continue
		}
		if exclude && window.Contains(d) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// ExpandPicked sorts and deduplicates explicit dates and checks each lies in the period.
func ExpandPicked(picked []generic.TimePoint, period generic.PayPeriod) ([]generic.TimePoint, error) {
	out := make([]generic.TimePoint, 0, len(picked))
	seen := make(map[string]bool, len(picked))
	for _, d := range picked {
		if d.IsZero() {
			continue
		}
		if !period.Contains(d) {
			return nil, fmt.Errorf("%w: %s not in %s", ErrDateOutsidePeriod, d, period.Period)
		}
		if seen[d.String()] {
			continue
		}
		seen[d.String()] = true
		out = append(out, d)
	}
	if len(out) > MaxPickedDates {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyDates, len(out), MaxPickedDates)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}
