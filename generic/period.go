package generic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - Inclusive day range
// =============================================================================

// Period is an inclusive range of calendar days [Start, End].
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// Contains returns true if the day is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// IsZero reports an unset period.
func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// MONTH - A calendar month, the input to every period calculation
// =============================================================================

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	// Normalize overflow such as month 13 or 0.
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthOf returns the calendar month of a day.
func MonthOf(d TimePoint) Month { return Month{Year: d.Year(), Month: d.Month()} }

// ParseMonth accepts "YYYY-MM" or the "MM-YY" label form.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01", s); err == nil {
		return NewMonth(t.Year(), t.Month()), nil
	}
	parts := strings.Split(s, "-")
	if len(parts) == 2 && len(parts[0]) == 2 && len(parts[1]) == 2 {
		mm, err1 := strconv.Atoi(parts[0])
		yy, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil && mm >= 1 && mm <= 12 {
			return NewMonth(2000+yy, time.Month(mm)), nil
		}
	}
	return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

// AddMonths shifts the month, rolling the year as needed.
func (m Month) AddMonths(n int) Month { return NewMonth(m.Year, m.Month+time.Month(n)) }

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// Label renders the zero-padded "MM-YY" form used on payment records.
func (m Month) Label() string {
	return fmt.Sprintf("%02d-%02d", int(m.Month), m.Year%100)
}

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func (m Month) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// =============================================================================
// PAY PERIOD - Non-calendar billing window, 26th of M-1 through 25th of M
// =============================================================================

// PayPeriodStartDay and PayPeriodEndDay bound every billing window.
const (
	PayPeriodStartDay = 26
	PayPeriodEndDay   = 25
)

// PayPeriod is the billing window for one reporting month.
//
// Reporting decides which dates fall in range; Payment is only the tag
// the records are billed to. The two are set independently.
type PayPeriod struct {
	Period
	Reporting Month  `json:"reporting"`
	Payment   Month  `json:"payment"`
	Label     string `json:"label"`
}

// PayPeriodFor returns the window for m, labelled with m.
func PayPeriodFor(m Month) PayPeriod {
	return PayPeriodWithPayment(m, m)
}

// PayPeriodWithPayment returns the window of reporting, labelled with payment.
func PayPeriodWithPayment(reporting, payment Month) PayPeriod {
	prev := reporting.AddMonths(-1)
	return PayPeriod{
		Period: Period{
			Start: NewTimePoint(prev.Year, prev.Month, PayPeriodStartDay),
			End:   NewTimePoint(reporting.Year, reporting.Month, PayPeriodEndDay),
		},
		Reporting: reporting,
		Payment:   payment,
		Label:     payment.Label(),
	}
}

// PayPeriodContaining returns the billing window whose range holds d.
func PayPeriodContaining(d TimePoint) PayPeriod {
	m := MonthOf(d)
	if d.Day() >= PayPeriodStartDay {
		m = m.AddMonths(1)
	}
	return PayPeriodFor(m)
}
