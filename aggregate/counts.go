package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/warp/activity-engine/generic"
)

// =============================================================================
// PAY PERIOD COUNTS - Raw records against billing boundaries
// =============================================================================

// MonthlyCountForOperator counts an operator's records inside the pay period.
// A zero period or an empty name counts nothing.
func MonthlyCountForOperator(records []generic.ActivityRecord, period generic.PayPeriod, operator string) int {
	return countIn(records, period, operator, generic.ActivityRecord.OperatorName)
}

// MonthlyCountForGroup counts a group's records inside the pay period.
// group is the composite symbol+name key.
func MonthlyCountForGroup(records []generic.ActivityRecord, period generic.PayPeriod, group string) int {
	return countIn(records, period, group, generic.ActivityRecord.GroupKey)
}

func countIn(records []generic.ActivityRecord, period generic.PayPeriod, name string, field func(generic.ActivityRecord) string) int {
	if period.IsZero() || name == "" {
		return 0
	}
	n := 0
	for _, rec := range records {
		if period.Contains(rec.Date) && field(rec) == name {
			n++
		}
	}
	return n
}

// =============================================================================
// UTILIZATION - Working days covered by at least one activity
// =============================================================================

// Utilization compares working days to days with activity.
type Utilization struct {
	Period      generic.Period    `json:"period"`
	Operator    string            `json:"operator,omitempty"`
	WorkingDays int               `json:"working_days"`
	ActiveDays  int               `json:"active_days"`
	Activities  int               `json:"activities"`
	Rate        decimal.Decimal   `json:"rate"`
	Holidays    []generic.Holiday `json:"holidays"`
}

var hundred = decimal.NewFromInt(100)

// Percent is the rate as a percentage rounded to one decimal.
func (u Utilization) Percent() decimal.Decimal {
	return u.Rate.Mul(hundred).Round(1)
}

// UtilizationFor computes utilization over period. Working days are Sunday
// to Thursday minus holidays. An operator of "" or All covers everyone.
func UtilizationFor(records []generic.ActivityRecord, period generic.Period, holidays []generic.Holiday, operator string) Utilization {
	u := Utilization{Period: period, Holidays: holidays, Rate: decimal.Zero}
	if enabled(operator) {
		u.Operator = operator
	}
	if period.IsZero() {
		return u
	}

	off := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		off[h.Date.String()] = true
	}
	working := make(map[string]bool)
	for _, d := range period.Days() {
		if d.IsWorkday() && !off[d.String()] {
			working[d.String()] = true
		}
	}
	u.WorkingDays = len(working)

	active := make(map[string]bool)
	for _, rec := range records {
		if !period.Contains(rec.Date) || (u.Operator != "" && rec.OperatorName() != u.Operator) {
			continue
		}
		u.Activities++
		if working[rec.Date.String()] {
			active[rec.Date.String()] = true
		}
	}
	u.ActiveDays = len(active)

	if u.WorkingDays > 0 {
		u.Rate = decimal.NewFromInt(int64(u.ActiveDays)).
			Div(decimal.NewFromInt(int64(u.WorkingDays))).
			Round(2)
	}
	return u
}
