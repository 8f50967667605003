/*
Package aggregate groups activity records for dashboards.

DISPLAY PERIODS:
  Buckets use DisplayLabel: a record dated on or after the 26th shows
  under the next calendar month, otherwise under its own month. This is
  a display rule only. Billing counts (counts.go) use generic.PayPeriod
  boundaries instead, and the two can disagree for the same record.

PURITY:
  Every function here is a pure computation over a record slice.
  Nothing is cached; callers recompute on every query.

SEE ALSO:
  - filter.go: vocabularies, filters and detail views
  - counts.go: pay period counts and utilization
*/
package aggregate

import (
	"fmt"

	"github.com/warp/activity-engine/generic"
)

// DisplayLabel returns the "MM-YY" month a record is shown under.
func DisplayLabel(d generic.TimePoint) string {
	m := generic.MonthOf(d)
	if d.Day() >= generic.PayPeriodStartDay {
		m = m.AddMonths(1)
	}
	return m.Label()
}

// Key identifies a bucket.
type Key struct {
	Label       string
	Operator    string
	GroupName   string
	GroupSymbol string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Label, k.Operator, k.GroupName, k.GroupSymbol)
}

// Bucket counts the records of one operator in one group under one display label.
type Bucket struct {
	Label        string                   `json:"label"`
	OperatorName string                   `json:"operator"`
	GroupName    string                   `json:"group_name"`
	GroupSymbol  string                   `json:"group_symbol"`
	Count        int                      `json:"count"`
	Records      []generic.ActivityRecord `json:"records"`
}

func (b Bucket) Key() Key {
	return Key{Label: b.Label, Operator: b.OperatorName, GroupName: b.GroupName, GroupSymbol: b.GroupSymbol}
}

// GroupKey is the composite symbol+name of the bucket's group.
func (b Bucket) GroupKey() string { return generic.GroupKey(b.GroupSymbol, b.GroupName) }

// Aggregate buckets records in order of first appearance.
// Every record lands in exactly one bucket.
func Aggregate(records []generic.ActivityRecord) []Bucket {
	index := make(map[Key]int)
	var out []Bucket
	for _, rec := range records {
		k := Key{
			Label:       DisplayLabel(rec.Date),
			Operator:    rec.OperatorName(),
			GroupName:   rec.ClassName(),
			GroupSymbol: rec.ClassSymbol(),
		}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Bucket{
				Label:        k.Label,
				OperatorName: k.Operator,
				GroupName:    k.GroupName,
				GroupSymbol:  k.GroupSymbol,
			})
		}
		out[i].Count++
		out[i].Records = append(out[i].Records, rec)
	}
	return out
}

// Total sums bucket counts.
func Total(buckets []Bucket) int {
	n := 0
	for _, b := range buckets {
		n += b.Count
	}
	return n
}
