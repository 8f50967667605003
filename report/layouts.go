/*
Package report projects raw activity records into fixed tabular layouts.

LAYOUTS:
  1. MonthlyList:     one pay period, one operator or one group
  2. AnnualMatrix:    one group, twelve calendar months of (date, operator) pairs
  3. AcademicMatrix:  one group, Nov(Y-1) through Jun(Y) with yearly total
  4. AcademicSummary: every group against the academic months

Every layout re-filters raw records. Aggregator buckets are never reused
because their display periods differ from export periods.

SEE ALSO:
  - write.go: xlsx and csv encoders
  - aggregate/aggregate.go: display buckets
*/
package report

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/warp/activity-engine/generic"
)

// MaxPairs caps the (date, operator) pairs of one matrix row.
const MaxPairs = 10

// MatrixColumns is the fixed width of matrix rows: month, pairs, total.
const MatrixColumns = 1 + 2*MaxPairs + 1

// AcademicMonthCount is the length of the academic window.
const AcademicMonthCount = 8

// ErrSelector is returned when a monthly list names both or neither of operator and group.
var ErrSelector = errors.New("select exactly one of operator or group")

// Table is one sheet of output. Name is the deterministic file stem.
type Table struct {
	Name       string
	Sheet      string
	HeaderRows int
	Rows       [][]string
}

// Width is the longest row length.
func (t Table) Width() int {
	w := 0
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Selector picks the subject of a monthly list.
type Selector struct {
	Operator string
	Group    string // composite symbol+name key
}

func (s Selector) valid() bool { return (s.Operator == "") != (s.Group == "") }

func (s Selector) matches(rec generic.ActivityRecord) bool {
	if s.Operator != "" {
		return rec.OperatorName() == s.Operator
	}
	return rec.GroupKey() == s.Group
}

func (s Selector) name() string {
	if s.Operator != "" {
		return s.Operator
	}
	return s.Group
}

// =============================================================================
// MONTHLY LIST
// =============================================================================

// MonthlyList lists one subject's records inside a pay period, sorted by date.
func MonthlyList(records []generic.ActivityRecord, period generic.PayPeriod, sel Selector) (Table, error) {
	if !sel.valid() {
		return Table{}, ErrSelector
	}
	var picked []generic.ActivityRecord
	for _, rec := range records {
		if period.Contains(rec.Date) && sel.matches(rec) {
			picked = append(picked, rec)
		}
	}
	sortByDate(picked)

	t := Table{
		Name:       "activities_" + period.Label + "_" + slug(sel.name()),
		Sheet:      period.Label,
		HeaderRows: 1,
		Rows:       [][]string{{"Symbol", "Name", "Operator", "Date"}},
	}
	for _, rec := range picked {
		t.Rows = append(t.Rows, []string{rec.ClassSymbol(), rec.ClassName(), rec.OperatorName(), rec.Date.String()})
	}
	return t, nil
}

// =============================================================================
// MATRICES
// =============================================================================

// AnnualMatrix lays out one group over the calendar months of year.
func AnnualMatrix(records []generic.ActivityRecord, group string, year int) Table {
	months := make([]generic.Month, 12)
	for i := range months {
		months[i] = generic.NewMonth(year, time.January+time.Month(i))
	}
	symbol, name := groupParts(records, group)
	t := Table{
		Name:  "annual_" + slug(symbol, name) + "_" + strconv.Itoa(year),
		Sheet: sheetName(symbol, strconv.Itoa(year)),
	}
	t.Rows, _ = matrixRows(records, group, symbol, name, months)
	t.HeaderRows = 3
	return t
}

// AcademicMatrix lays out one group over Nov(year-1) through Jun(year) and
// appends a yearly total row.
func AcademicMatrix(records []generic.ActivityRecord, group string, year int) Table {
	symbol, name := groupParts(records, group)
	t := Table{
		Name:       "academic_" + slug(symbol, name) + "_" + academicYearLabel(year),
		Sheet:      sheetName(symbol, academicYearLabel(year)),
		HeaderRows: 3,
	}
	rows, total := matrixRows(records, group, symbol, name, AcademicMonths(year))
	t.Rows = append(rows, pad([]string{"Total"}, strconv.Itoa(total)))
	return t
}

// matrixRows builds the header block then one row per month. It returns the grand total.
func matrixRows(records []generic.ActivityRecord, group, symbol, name string, months []generic.Month) ([][]string, int) {
	header := []string{"Month"}
	for i := 1; i <= MaxPairs; i++ {
		header = append(header, "Date "+strconv.Itoa(i), "Operator "+strconv.Itoa(i))
	}
	header = append(header, "Total")

	rows := [][]string{
		pad([]string{"Symbol", symbol}, ""),
		pad([]string{"Name", name}, ""),
		header,
	}

	byMonth := make(map[generic.Month][]generic.ActivityRecord)
	for _, rec := range records {
		if rec.GroupKey() == group {
			m := generic.MonthOf(rec.Date)
			byMonth[m] = append(byMonth[m], rec)
		}
	}

	total := 0
	for _, m := range months {
		recs := byMonth[m]
		sortByDate(recs)
		row := []string{m.Label()}
		for i, rec := range recs {
			if i == MaxPairs {
				break
			}
			row = append(row, rec.Date.String(), rec.OperatorName())
		}
		rows = append(rows, pad(row, strconv.Itoa(len(recs))))
		total += len(recs)
	}
	return rows, total
}

// pad blank-fills row to MatrixColumns with last in the final column.
func pad(row []string, last string) []string {
	out := make([]string, MatrixColumns)
	copy(out, row)
	out[MatrixColumns-1] = last
	return out
}

// =============================================================================
// ACADEMIC SUMMARY
// =============================================================================

// AcademicMonths returns Nov(year-1) through Jun(year).
func AcademicMonths(year int) []generic.Month {
	out := make([]generic.Month, AcademicMonthCount)
	start := generic.NewMonth(year-1, time.November)
	for i := range out {
		out[i] = start.AddMonths(i)
	}
	return out
}

// AcademicSummary counts every group per academic month, with row and column totals.
func AcademicSummary(records []generic.ActivityRecord, year int) Table {
	months := AcademicMonths(year)
	col := make(map[generic.Month]int, len(months))
	header := []string{"Group"}
	for i, m := range months {
		col[m] = i
		header = append(header, m.Label())
	}
	header = append(header, "Total")

	counts := make(map[string][]int)
	for _, rec := range records {
		i, ok := col[generic.MonthOf(rec.Date)]
		if !ok {
			continue
		}
		g := rec.GroupKey()
		if counts[g] == nil {
			counts[g] = make([]int, len(months))
		}
		counts[g][i]++
	}
	groups := make([]string, 0, len(counts))
	for g := range counts {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	t := Table{
		Name:       "academic_summary_" + academicYearLabel(year),
		Sheet:      sheetName("summary", academicYearLabel(year)),
		HeaderRows: 1,
		Rows:       [][]string{header},
	}
	colTotals := make([]int, len(months))
	grand := 0
	for _, g := range groups {
		row := []string{g}
		sum := 0
		for i, n := range counts[g] {
			row = append(row, strconv.Itoa(n))
			sum += n
			colTotals[i] += n
		}
		grand += sum
		t.Rows = append(t.Rows, append(row, strconv.Itoa(sum)))
	}
	footer := []string{"Total"}
	for _, n := range colTotals {
		footer = append(footer, strconv.Itoa(n))
	}
	t.Rows = append(t.Rows, append(footer, strconv.Itoa(grand)))
	return t
}

// =============================================================================
// HELPERS
// =============================================================================

func sortByDate(recs []generic.ActivityRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.Before(recs[j].Date)
		}
		return recs[i].GroupKey() < recs[j].GroupKey()
	})
}

// groupParts recovers symbol and name from the records, or splits the key.
func groupParts(records []generic.ActivityRecord, group string) (string, string) {
	for _, rec := range records {
		if rec.GroupKey() == group {
			return rec.ClassSymbol(), rec.ClassName()
		}
	}
	if symbol, name, ok := strings.Cut(group, " "); ok {
		return symbol, name
	}
	return "", group
}

func academicYearLabel(year int) string {
	return fmt.Sprintf("%d-%d", year-1, year)
}

// slug joins parts into a lower-case file name fragment.
func slug(parts ...string) string {
	var b strings.Builder
	dash := false
	for _, p := range parts {
		for _, r := range strings.ToLower(p) {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				b.WriteRune(r)
				dash = false
			case r > 127:
				b.WriteRune(r)
				dash = false
			default:
				if !dash && b.Len() > 0 {
					b.WriteByte('-')
					dash = true
				}
			}
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "all"
	}
	return s
}

// sheetName keeps within the 31 character xlsx limit and drops reserved runes.
func sheetName(parts ...string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(strings.Join(parts, " ")))
	if name == "" {
		name = "Sheet1"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}
