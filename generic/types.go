/*
Package generic provides the core activity engine.

PURPOSE:
  Domain-agnostic types shared by every other package: calendar days,
  pay periods, activity records, entity references and the store ports.
  Scheduling, aggregation and reporting packages build on these types
  and never on a concrete store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Operator / Class: the two entities an activity links together
  - Ref[T]: a reference that is either an opaque id or a resolved entity
  - ActivityRecord: one operator delivering one class on one day
  - NewRecord: the create payload handed to a RecordStore

REFERENCES:
  The record store may or may not expand references. Display code calls
  OperatorName/ClassName/ClassSymbol, which fall back to UnknownName
  instead of failing when only the id is known.

SEE ALSO:
  - period.go: Month and PayPeriod
  - store.go: RecordStore and AssignmentStore ports
  - errors.go: sentinel and structured errors
*/
package generic

import (
	"encoding/json"
	"time"
)

// UnknownName is displayed for references that the store did not resolve.
const UnknownName = "Unknown"

// =============================================================================
// ENTITIES
// =============================================================================

// Operator runs classes.
type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (o Operator) EntityID() string { return o.ID }

// Class is a group receiving sessions. Symbol is a short code shown in grids.
type Class struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

func (c Class) EntityID() string { return c.ID }

// Key is the composite group key used by filters and exports.
func (c Class) Key() string { return GroupKey(c.Symbol, c.Name) }

// GroupKey composes the symbol+name pairing that identifies a group.
func GroupKey(symbol, name string) string {
	if symbol == "" {
		return name
	}
	return symbol + " " + name
}

// =============================================================================
// REF - Tagged variant over {opaque id, resolved entity}
// =============================================================================

// Entity is anything a Ref can point at.
type Entity interface {
	EntityID() string
}

// Ref is either an opaque id or a fully resolved entity.
type Ref[T Entity] struct {
	id       string
	resolved *T
}

// IDRef builds an unresolved reference.
func IDRef[T Entity](id string) Ref[T] { return Ref[T]{id: id} }

// Resolved builds a reference carrying the entity itself.
func Resolved[T Entity](v T) Ref[T] { return Ref[T]{id: v.EntityID(), resolved: &v} }

// ID returns the referenced id whether or not the entity is resolved.
func (r Ref[T]) ID() string { return r.id }

// Get returns the entity when resolved.
func (r Ref[T]) Get() (T, bool) {
	if r.resolved == nil {
		var zero T
		return zero, false
	}
	return *r.resolved, true
}

func (r Ref[T]) IsResolved() bool { return r.resolved != nil }

func (r Ref[T]) IsZero() bool { return r.id == "" && r.resolved == nil }

// MarshalJSON writes the entity when resolved and the bare id otherwise.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.resolved != nil {
		return json.Marshal(r.resolved)
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON accepts both shapes: a string id or an expanded object.
func (r *Ref[T]) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		*r = IDRef[T](id)
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Resolved(v)
	return nil
}

// =============================================================================
// ACTIVITY RECORD
// =============================================================================

// ActivityRecord is one operator delivering one class on one day.
//
// PaymentPeriod is the "MM-YY" billing label. It is set independently of
// Date and is never derived from it.
type ActivityRecord struct {
	ID            string        `json:"id"`
	Operator      Ref[Operator] `json:"operator"`
	Class         Ref[Class]    `json:"class"`
	Date          TimePoint     `json:"date"`
	Description   string        `json:"description,omitempty"`
	PaymentPeriod string        `json:"payment_period,omitempty"`
	CreatedAt     time.Time     `json:"created_at,omitempty"`
}

// OperatorName degrades to UnknownName when unresolved.
func (r ActivityRecord) OperatorName() string {
	if op, ok := r.Operator.Get(); ok && op.Name != "" {
		return op.Name
	}
	return UnknownName
}

// ClassName degrades to UnknownName when unresolved.
func (r ActivityRecord) ClassName() string {
	if c, ok := r.Class.Get(); ok && c.Name != "" {
		return c.Name
	}
	return UnknownName
}

// ClassSymbol is empty when unresolved.
func (r ActivityRecord) ClassSymbol() string {
	if c, ok := r.Class.Get(); ok {
		return c.Symbol
	}
	return ""
}

// GroupKey returns the composite symbol+name key of the record's class.
func (r ActivityRecord) GroupKey() string {
	return GroupKey(r.ClassSymbol(), r.ClassName())
}

// NewRecord is the create payload. The store assigns the id.
type NewRecord struct {
	OperatorID    string
	ClassID       string
	Date          TimePoint
	Description   string
	PaymentPeriod string
}

// RecordFilter narrows List. Zero fields do not filter.
type RecordFilter struct {
	OperatorID string
	ClassID    string
	From       TimePoint
	To         TimePoint
}

// Matches applies the filter to a record in memory.
func (f RecordFilter) Matches(r ActivityRecord) bool {
	if f.OperatorID != "" && r.Operator.ID() != f.OperatorID {
		return false
	}
	if f.ClassID != "" && r.Class.ID() != f.ClassID {
		return false
	}
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	return true
}
