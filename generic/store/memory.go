// Package store provides Store implementations.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/activity-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	records     []generic.ActivityRecord // ordered by Date
	slots       map[slot]string          // (class, day) -> record id
	operators   map[string]generic.Operator
	classes     map[string]generic.Class
	assignments []generic.Assignment
	holidays    []generic.Holiday

	now func() time.Time
}

type slot struct {
	ClassID string
	Day     string
}

func NewMemory() *Memory {
	return &Memory{
		slots:     make(map[slot]string),
		operators: make(map[string]generic.Operator),
		classes:   make(map[string]generic.Class),
		now:       time.Now,
	}
}

// Create adds a record unless its (class, day) slot is taken.
func (m *Memory) Create(_ context.Context, rec generic.NewRecord) (generic.ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := slot{ClassID: rec.ClassID, Day: rec.Date.String()}
	if id, taken := m.slots[k]; taken {
		existing, _ := m.findLocked(id)
		return generic.ActivityRecord{}, &generic.DuplicateActivityError{Existing: m.resolveLocked(existing)}
	}

	stored := generic.ActivityRecord{
		ID:            uuid.NewString(),
		Operator:      generic.IDRef[generic.Operator](rec.OperatorID),
		Class:         generic.IDRef[generic.Class](rec.ClassID),
		Date:          rec.Date,
		Description:   rec.Description,
		PaymentPeriod: rec.PaymentPeriod,
		CreatedAt:     m.now().UTC(),
	}

	// Binary search for insertion point keeps records ordered by date
	i := sort.Search(len(m.records), func(i int) bool {
		return m.records[i].Date.After(stored.Date)
	})
	m.records = append(m.records, generic.ActivityRecord{})
	copy(m.records[i+1:], m.records[i:])
	m.records[i] = stored
	m.slots[k] = stored.ID

	return m.resolveLocked(stored), nil
}

// Delete removes a record by id.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, i := m.findLocked(id)
	if i < 0 {
		return generic.ErrRecordNotFound
	}
	m.records = append(m.records[:i], m.records[i+1:]...)
	delete(m.slots, slot{ClassID: rec.Class.ID(), Day: rec.Date.String()})
	return nil
}

// List returns matching records with references resolved where possible.
func (m *Memory) List(_ context.Context, filter generic.RecordFilter) ([]generic.ActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.ActivityRecord
	for _, rec := range m.records {
		if filter.Matches(rec) {
			result = append(result, m.resolveLocked(rec))
		}
	}
	return result, nil
}

func (m *Memory) findLocked(id string) (generic.ActivityRecord, int) {
	for i, rec := range m.records {
		if rec.ID == id {
			return rec, i
		}
	}
	return generic.ActivityRecord{}, -1
}

// resolveLocked expands references whose entity is known; others stay ids.
func (m *Memory) resolveLocked(rec generic.ActivityRecord) generic.ActivityRecord {
	if op, ok := m.operators[rec.Operator.ID()]; ok {
		rec.Operator = generic.Resolved(op)
	}
	if c, ok := m.classes[rec.Class.ID()]; ok {
		rec.Class = generic.Resolved(c)
	}
	return rec
}

// =============================================================================
// ENTITIES
// =============================================================================

func (m *Memory) SaveOperator(_ context.Context, op generic.Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operators[op.ID] = op
	return nil
}

func (m *Memory) ListOperators(_ context.Context) ([]generic.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Operator, 0, len(m.operators))
	for _, op := range m.operators {
		result = append(result, op)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) SaveClass(_ context.Context, c generic.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[c.ID] = c
	return nil
}

func (m *Memory) ListClasses(_ context.Context) ([]generic.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Class, 0, len(m.classes))
	for _, c := range m.classes {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key() < result[j].Key() })
	return result, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (m *Memory) SaveAssignment(_ context.Context, a generic.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	for i, existing := range m.assignments {
		if existing.ID == a.ID {
			m.assignments[i] = a
			return nil
		}
	}
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *Memory) AssignmentsDuring(_ context.Context, operatorID string, period generic.Period) ([]generic.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Assignment
	for _, a := range m.assignments {
		if a.OperatorID != operatorID || !a.Overlaps(period) {
			continue
		}
		if c, ok := m.classes[a.Class.ID()]; ok {
			a.Class = generic.Resolved(c)
		}
		result = append(result, a)
	}
	return result, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) SaveHoliday(_ context.Context, h generic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	m.holidays = append(m.holidays, h)
	sort.Slice(m.holidays, func(i, j int) bool { return m.holidays[i].Date.Before(m.holidays[j].Date) })
	return nil
}

func (m *Memory) HolidaysBetween(_ context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := generic.Period{Start: from, End: to}
	var result []generic.Holiday
	for _, h := range m.holidays {
		if p.Contains(h.Date) {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.holidays = slices.DeleteFunc(m.holidays, func(h generic.Holiday) bool { return h.ID == id })
	return nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	m.slots = make(map[slot]string)
	m.operators = make(map[string]generic.Operator)
	m.classes = make(map[string]generic.Class)
	m.assignments = nil
	m.holidays = nil
	return nil
}
