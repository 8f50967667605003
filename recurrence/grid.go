package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/warp/activity-engine/activity"
	"github.com/warp/activity-engine/generic"
)

var (
	// ErrUnknownSymbol is returned when a grid cell names a class that does not exist.
	ErrUnknownSymbol = errors.New("unknown class symbol")

	// ErrReadOnlySymbol is returned when toggling a symbol already on record.
	ErrReadOnlySymbol = errors.New("symbol already recorded for this day")
)

// GridRow is one working day of an operator's grid.
type GridRow struct {
	Date     generic.TimePoint `json:"date"`
	Recorded []string          `json:"recorded"` // on record, read-only
	Selected []string          `json:"selected"` // pending, editable
}

// Grid lists the working days of one pay period for one operator.
// Toggle returns a new grid.
type Grid struct {
	OperatorID string            `json:"operator_id"`
	Period     generic.PayPeriod `json:"period"`
	Rows       []GridRow         `json:"rows"`

	classes map[string]generic.Class // by symbol
}

// BuildGrid builds one row per Sunday..Thursday day of the period.
// Recorded holds symbols the operator already has on record that day.
// Selected is seeded from assignments applying that day, minus what is recorded.
func BuildGrid(
	period generic.PayPeriod,
	operatorID string,
	recorded []generic.ActivityRecord,
	assignments []generic.Assignment,
	classes []generic.Class,
) Grid {
	g := Grid{OperatorID: operatorID, Period: period, classes: indexBySymbol(classes)}
	byID := make(map[string]generic.Class, len(classes))
	for _, c := range classes {
		byID[c.ID] = c
	}

	onDay := make(map[string][]string)
	for _, rec := range recorded {
		if rec.Operator.ID() != operatorID || !period.Contains(rec.Date) {
			continue
		}
		sym := rec.ClassSymbol()
		if sym == "" {
			sym = byID[rec.Class.ID()].Symbol
		}
		if sym == "" {
			continue
		}
		onDay[rec.Date.String()] = appendUnique(onDay[rec.Date.String()], sym)
	}

	for _, d := range period.Days() {
		if d.IsRestDay() {
			continue
		}
		row := GridRow{Date: d, Recorded: onDay[d.String()]}
		for _, a := range assignments {
			if a.OperatorID != operatorID || !a.AppliesOn(d) {
				continue
			}
			sym := byID[a.Class.ID()].Symbol
			if c, ok := a.Class.Get(); ok && c.Symbol != "" {
				sym = c.Symbol
			}
			if sym == "" || slices.Contains(row.Recorded, sym) {
				continue
			}
			row.Selected = appendUnique(row.Selected, sym)
		}
		sort.Strings(row.Recorded)
		sort.Strings(row.Selected)
		g.Rows = append(g.Rows, row)
	}
	return g
}

// WithClasses attaches the symbol lookup to a grid decoded from a request.
func (g Grid) WithClasses(classes []generic.Class) Grid {
	g.classes = indexBySymbol(classes)
	return g
}

func (g Grid) row(i int) (GridRow, error) {
	if i < 0 || i >= len(g.Rows) {
		return GridRow{}, fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	return g.Rows[i], nil
}

func (g Grid) withRow(i int, r GridRow) Grid {
	rows := make([]GridRow, len(g.Rows))
	copy(rows, g.Rows)
	rows[i] = r
	g.Rows = rows
	return g
}

// Toggle selects or deselects symbol on row i.
func (g Grid) Toggle(i int, symbol string) (Grid, error) {
	r, err := g.row(i)
	if err != nil {
		return g, err
	}
	if slices.Contains(r.Recorded, symbol) {
		return g, fmt.Errorf("%w: %s on %s", ErrReadOnlySymbol, symbol, r.Date)
	}
	if _, ok := g.classes[symbol]; !ok {
		return g, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if slices.Contains(r.Selected, symbol) {
		r.Selected = without(r.Selected, symbol)
	} else {
		r.Selected = appendUnique(append([]string(nil), r.Selected...), symbol)
		sort.Strings(r.Selected)
	}
	return g.withRow(i, r), nil
}

// Pending turns selected symbols into tuples, skipping those already on record.
func (g Grid) Pending(description, paymentPeriod string) ([]activity.Tuple, error) {
	var out []activity.Tuple
	for _, r := range g.Rows {
		for _, sym := range r.Selected {
			if slices.Contains(r.Recorded, sym) {
				continue
			}
			c, ok := g.classes[sym]
			if !ok {
				return nil, fmt.Errorf("%w: %s on %s", ErrUnknownSymbol, sym, r.Date)
			}
			out = append(out, activity.Tuple{
				OperatorID:    g.OperatorID,
				ClassID:       c.ID,
				Date:          r.Date,
				Description:   description,
				PaymentPeriod: paymentPeriod,
			})
		}
	}
	return out, nil
}

// PendingCount is the number of symbols that would be submitted.
func (g Grid) PendingCount() int {
	n := 0
	for _, r := range g.Rows {
		for _, sym := range r.Selected {
			if !slices.Contains(r.Recorded, sym) {
				n++
			}
		}
	}
	return n
}

// =============================================================================
// HELPERS
// =============================================================================

func indexBySymbol(classes []generic.Class) map[string]generic.Class {
	m := make(map[string]generic.Class, len(classes))
	for _, c := range classes {
		if c.Symbol != "" {
			m[c.Symbol] = c
		}
	}
	return m
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
