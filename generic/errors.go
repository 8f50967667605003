/*
errors.go - Centralized error types for the activity engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Store errors - uniqueness and lookup failures
  2. Input errors - malformed months, dates, weekdays

DUPLICATES ARE NOT FAILURES:
  A create that collides with an existing (class, day) record returns a
  DuplicateActivityError carrying the existing record. Callers that batch
  creates treat it as success:

    var dup *generic.DuplicateActivityError
    if errors.As(err, &dup) {
        rec = dup.Existing
    }

SEE ALSO:
  - store.go: Stores return these errors
  - activity/creator.go: Resolves duplicates to the existing record
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateActivity is returned when a record for the same class and
	// day already exists.
	ErrDuplicateActivity = errors.New("activity already exists for class on this day")

	// ErrRecordNotFound is returned when deleting or loading a missing record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrEntityNotFound is returned when a referenced operator or class doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidMonth is returned for months that cannot be parsed.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidDate is returned for dates that cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateActivityError carries the record that already occupies the slot.
type DuplicateActivityError struct {
	Existing ActivityRecord
}

func (e *DuplicateActivityError) Error() string {
	return fmt.Sprintf("activity already recorded: %s %s on %s by %s",
		e.Existing.ClassSymbol(), e.Existing.ClassName(), e.Existing.Date, e.Existing.OperatorName())
}

func (e *DuplicateActivityError) Unwrap() error {
	return ErrDuplicateActivity
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDuplicate extracts the existing record from a duplicate error.
func IsDuplicate(err error) (ActivityRecord, bool) {
	var dup *DuplicateActivityError
	if errors.As(err, &dup) {
		return dup.Existing, true
	}
	return ActivityRecord{}, false
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrDuplicateActivity)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrEntityNotFound)
}
