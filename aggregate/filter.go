package aggregate

// All disables a filter dimension. The empty string does too.
const All = "all"

// Vocabularies lists the distinct values present in a set of buckets.
type Vocabularies struct {
	Labels    []string `json:"labels"`
	Operators []string `json:"operators"`
	Groups    []string `json:"groups"`
}

// VocabulariesOf collects labels, operator names and group keys in order of first appearance.
func VocabulariesOf(buckets []Bucket) Vocabularies {
	var v Vocabularies
	seenL, seenO, seenG := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, b := range buckets {
		if !seenL[b.Label] {
			seenL[b.Label] = true
			v.Labels = append(v.Labels, b.Label)
		}
		if !seenO[b.OperatorName] {
			seenO[b.OperatorName] = true
			v.Operators = append(v.Operators, b.OperatorName)
		}
		if g := b.GroupKey(); !seenG[g] {
			seenG[g] = true
			v.Groups = append(v.Groups, g)
		}
	}
	return v
}

// Filter narrows buckets. Group matches the composite group key.
type Filter struct {
	Label    string `json:"label"`
	Operator string `json:"operator"`
	Group    string `json:"group"`
}

func enabled(v string) bool { return v != "" && v != All }

// IsZero reports whether every dimension is disabled.
func (f Filter) IsZero() bool {
	return !enabled(f.Label) && !enabled(f.Operator) && !enabled(f.Group)
}

func (f Filter) matches(b Bucket) bool {
	if enabled(f.Label) && b.Label != f.Label {
		return false
	}
	if enabled(f.Operator) && b.OperatorName != f.Operator {
		return false
	}
	if enabled(f.Group) && b.GroupKey() != f.Group {
		return false
	}
	return true
}

// FilterBuckets keeps buckets matching every enabled dimension.
// With every dimension disabled the input is returned unchanged.
func FilterBuckets(buckets []Bucket, f Filter) []Bucket {
	if f.IsZero() {
		return buckets
	}
	var out []Bucket
	for _, b := range buckets {
		if f.matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// Detail summarizes one operator or one group.
type Detail struct {
	Operator  string   `json:"operator,omitempty"`
	Group     string   `json:"group,omitempty"`
	Total     int      `json:"total"`
	Groups    []string `json:"groups,omitempty"`
	Operators []string `json:"operators,omitempty"`
}

// DetailInfo returns an operator view when only Operator is set, a group view
// when only Group is set, and nil otherwise. The label dimension narrows both.
func DetailInfo(buckets []Bucket, f Filter) *Detail {
	byOperator, byGroup := enabled(f.Operator), enabled(f.Group)
	if byOperator == byGroup {
		return nil
	}

	d := &Detail{}
	seen := map[string]bool{}
	for _, b := range FilterBuckets(buckets, f) {
		d.Total += b.Count
		if byOperator {
			if g := b.GroupKey(); !seen[g] {
				seen[g] = true
				d.Groups = append(d.Groups, g)
			}
		} else if !seen[b.OperatorName] {
			seen[b.OperatorName] = true
			d.Operators = append(d.Operators, b.OperatorName)
		}
	}
	if byOperator {
		d.Operator = f.Operator
	} else {
		d.Group = f.Group
	}
	return d
}
