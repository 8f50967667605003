package generic

import "time"

// =============================================================================
// ASSIGNMENT - An operator's standing weekly class
// =============================================================================

// Assignment links an operator to a class on one weekday.
// An operator can have several assignments on the same weekday.
type Assignment struct {
	ID         string       `json:"id"`
	OperatorID string       `json:"operator_id"`
	Class      Ref[Class]   `json:"class"`
	Weekday    time.Weekday `json:"weekday"`

	// When this assignment is effective
	EffectiveFrom TimePoint  `json:"effective_from"`
	EffectiveTo   *TimePoint `json:"effective_to,omitempty"` // nil = still active
}

// IsActive returns true if the assignment is active on the given day
func (a Assignment) IsActive(at TimePoint) bool {
	if !a.EffectiveFrom.IsZero() && at.Before(a.EffectiveFrom) {
		return false
	}
	if a.EffectiveTo != nil && at.After(*a.EffectiveTo) {
		return false
	}
	return true
}

// Overlaps reports whether the assignment is effective on any day of p.
func (a Assignment) Overlaps(p Period) bool {
	if !a.EffectiveFrom.IsZero() && a.EffectiveFrom.After(p.End) {
		return false
	}
	if a.EffectiveTo != nil && a.EffectiveTo.Before(p.Start) {
		return false
	}
	return true
}

// AppliesOn reports whether the assignment covers the given day.
func (a Assignment) AppliesOn(day TimePoint) bool {
	return a.Weekday == day.Weekday() && a.IsActive(day)
}
