package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/warp/activity-engine/activity"
	"github.com/warp/activity-engine/generic"
)

// ErrRowOutOfRange is returned by index-based form edits.
var ErrRowOutOfRange = errors.New("form row out of range")

// Mode selects how an entry produces dates.
type Mode string

const (
	ModeWeekly Mode = "weekly"
	ModePicked Mode = "picked"
)

// Entry is one row of a form: a class scheduled weekly or on picked dates.
type Entry struct {
	Mode        Mode                `json:"mode" validate:"required,oneof=weekly picked"`
	ClassID     string              `json:"class_id" validate:"required"`
	Weekday     *time.Weekday       `json:"weekday,omitempty" validate:"required_if=Mode weekly"`
	Dates       []generic.TimePoint `json:"dates,omitempty" validate:"required_if=Mode picked,max=5"`
	Description string              `json:"description,omitempty"`
}

// WeeklyEntry builds a weekly row.
func WeeklyEntry(classID string, day time.Weekday, description string) Entry {
	return Entry{Mode: ModeWeekly, ClassID: classID, Weekday: &day, Description: description}
}

// PickedEntry builds a picked-dates row.
func PickedEntry(classID string, description string, dates ...generic.TimePoint) Entry {
	return Entry{Mode: ModePicked, ClassID: classID, Dates: dates, Description: description}
}

// Rule returns the weekly rule of the row. ok is false for picked rows.
func (e Entry) Rule() (Rule, bool) {
	if e.Mode != ModeWeekly || e.Weekday == nil {
		return Rule{}, false
	}
	return Rule{ClassID: e.ClassID, Weekday: *e.Weekday, Description: e.Description}, true
}

// =============================================================================
// FORM - Indexed rows, edited by replacement
// =============================================================================

// Form collects rows submitted together under one payment period.
// Edits return a new Form; the receiver is never modified.
type Form struct {
	PaymentPeriod string  `json:"payment_period" validate:"required,month_label"`
	Options       Options `json:"options"`
	Entries       []Entry `json:"entries" validate:"required,min=1,dive"`
}

func (f Form) Len() int { return len(f.Entries) }

func (f Form) with(entries []Entry) Form {
	f.Entries = entries
	return f
}

// Append adds a row at the end.
func (f Form) Append(e Entry) Form {
	out := make([]Entry, 0, len(f.Entries)+1)
	out = append(out, f.Entries...)
	return f.with(append(out, e))
}

// Replace swaps row i.
func (f Form) Replace(i int, e Entry) (Form, error) {
	if i < 0 || i >= len(f.Entries) {
		return f, fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	out := make([]Entry, len(f.Entries))
	copy(out, f.Entries)
	out[i] = e
	return f.with(out), nil
}

// Remove drops row i.
func (f Form) Remove(i int) (Form, error) {
	if i < 0 || i >= len(f.Entries) {
		return f, fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	out := make([]Entry, 0, len(f.Entries)-1)
	out = append(out, f.Entries[:i]...)
	out = append(out, f.Entries[i+1:]...)
	return f.with(out), nil
}

// Validate checks the composition of every row.
func (f Form) Validate() error {
	if err := validate.Struct(f); err != nil {
		return toValidationError(err)
	}
	return nil
}

// Dates expands row i over the period.
func (f Form) Dates(i int, period generic.PayPeriod) ([]generic.TimePoint, error) {
	if i < 0 || i >= len(f.Entries) {
		return nil, fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	e := f.Entries[i]
	if rule, ok := e.Rule(); ok {
		return Expand(rule, period, f.Options)
	}
	return ExpandPicked(e.Dates, period)
}

// Tuples validates the form and expands every row, in row order.
// Any invalid row fails the whole form and no tuple is returned.
func (f Form) Tuples(operatorID string, period generic.PayPeriod) ([]activity.Tuple, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var out []activity.Tuple
	for i, e := range f.Entries {
		dates, err := f.Dates(i, period)
		if err != nil {
			return nil, rowError(i, err)
		}
		if len(dates) == 0 {
			if e.Mode == ModePicked {
				return nil, problem(i, "dates", "required_if")
			}
			return nil, problem(i, "dates", emptyDatesTag)
		}
		for _, d := range dates {
			out = append(out, activity.Tuple{
				OperatorID:    operatorID,
				ClassID:       e.ClassID,
				Date:          d,
				Description:   e.Description,
				PaymentPeriod: f.PaymentPeriod,
			})
		}
	}
	return out, nil
}

func rowError(i int, err error) error {
	switch {
	case errors.Is(err, ErrInvalidWeekday):
		return problem(i, "weekday", workdayTag)
	case errors.Is(err, ErrTooManyDates):
		return problem(i, "dates", "max")
	case errors.Is(err, ErrDateOutsidePeriod):
		return &ValidationError{Problems: []Problem{{Row: i, Field: "dates", Message: err.Error()}}}
	default:
		return fmt.Errorf("row %d: %w", i+1, err)
	}
}
