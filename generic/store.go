/*
store.go - Persistence ports for activity records and standing assignments

PURPOSE:
  Defines the interface between the domain logic and the database.
  The record store is the sole source of truth; this module holds no
  durable state of its own and performs no multi-record transactions.

KEY INTERFACES:
  RecordStore:     create / delete / list activity records
  EntityStore:     operators and classes, needed to resolve references
  AssignmentStore: standing weekly operator-to-class assignments

CREATE CONTRACT:
  Create distinguishes "already exists" from every other failure.
  A (class, day) collision returns *DuplicateActivityError with the
  existing record attached, never a second row.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with versioned migrations
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - errors.go: DuplicateActivityError
  - activity/creator.go: Batch submission on top of RecordStore
*/
package generic

import "context"

// =============================================================================
// RECORD STORE
// =============================================================================

// RecordStore persists activity records.
type RecordStore interface {
	// Create persists one record. On a (class, day) collision it returns
	// *DuplicateActivityError holding the existing record.
	Create(ctx context.Context, rec NewRecord) (ActivityRecord, error)

	// Delete removes one record. Returns ErrRecordNotFound if missing.
	Delete(ctx context.Context, id string) error

	// List returns records matching filter ordered by date, references resolved
	// where the referenced entity still exists.
	List(ctx context.Context, filter RecordFilter) ([]ActivityRecord, error)
}

// =============================================================================
// ENTITY STORE
// =============================================================================

// EntityStore holds the operators and classes records point at.
type EntityStore interface {
	SaveOperator(ctx context.Context, op Operator) error
	ListOperators(ctx context.Context) ([]Operator, error)
	SaveClass(ctx context.Context, c Class) error
	ListClasses(ctx context.Context) ([]Class, error)
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

// AssignmentStore persists standing weekly assignments.
type AssignmentStore interface {
	SaveAssignment(ctx context.Context, a Assignment) error

	// AssignmentsDuring returns the operator's assignments effective on at
	// least one day of the period.
	AssignmentsDuring(ctx context.Context, operatorID string, period Period) ([]Assignment, error)
}
