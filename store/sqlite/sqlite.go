/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

INTERFACES IMPLEMENTED:
  generic.RecordStore:     activity records
  generic.EntityStore:     operators and classes
  generic.AssignmentStore: standing weekly assignments
  generic.HolidayCalendar: holidays for the utilization view

UNIQUENESS:
  idx_unique_class_day rejects a second record for the same class and
  day. Create turns that violation into *generic.DuplicateActivityError
  carrying the row that already holds the slot.

REFERENCES:
  List joins operators and classes. A record whose operator or class
  row is gone comes back with an unresolved Ref holding only the id.

MIGRATIONS:
  Versioned SQL files under migrations/ are embedded and applied with
  golang-migrate on New().

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The mutex also serializes the
  insert-then-lookup of a duplicate create.

USAGE:
  store, err := sqlite.New("./data/activities.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/activity-engine/generic"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded migrations. The migrate instance is not
// closed because closing it closes the shared *sql.DB.
func (s *Store) migrate() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// =============================================================================
// RECORD STORE IMPLEMENTATION
// =============================================================================

const selectActivities = `
	SELECT a.id, a.operator_id, a.class_id, a.day, a.description, a.payment_period, a.created_at,
		o.name, c.name, c.symbol
	FROM activities a
	LEFT JOIN operators o ON o.id = a.operator_id
	LEFT JOIN classes c ON c.id = a.class_id
`

// Create inserts one record. A (class, day) collision returns the existing row.
func (s *Store) Create(ctx context.Context, rec generic.NewRecord) (generic.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	created := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, operator_id, class_id, day, description, payment_period, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		rec.OperatorID,
		rec.ClassID,
		rec.Date.String(),
		rec.Description,
		rec.PaymentPeriod,
		created.Format(time.RFC3339Nano),
	)
	if isUniqueConstraintError(err) {
		existing, lookupErr := s.getOne(ctx, "a.class_id = ? AND a.day = ?", rec.ClassID, rec.Date.String())
		if lookupErr != nil {
			return generic.ActivityRecord{}, fmt.Errorf("load existing activity: %w", lookupErr)
		}
		return generic.ActivityRecord{}, &generic.DuplicateActivityError{Existing: existing}
	}
	if err != nil {
		return generic.ActivityRecord{}, fmt.Errorf("insert activity: %w", err)
	}

	return s.getOne(ctx, "a.id = ?", id)
}

// Delete removes one record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM activities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrRecordNotFound
	}
	return nil
}

// List returns records matching filter ordered by day.
func (s *Store) List(ctx context.Context, filter generic.RecordFilter) ([]generic.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.OperatorID != "" {
		where = append(where, "a.operator_id = ?")
		args = append(args, filter.OperatorID)
	}
	if filter.ClassID != "" {
		where = append(where, "a.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if !filter.From.IsZero() {
		where = append(where, "a.day >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		where = append(where, "a.day <= ?")
		args = append(args, filter.To.String())
	}

	query := selectActivities
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.day, a.created_at, a.id"

	return s.queryActivities(ctx, query, args...)
}

func (s *Store) getOne(ctx context.Context, cond string, args ...any) (generic.ActivityRecord, error) {
	recs, err := s.queryActivities(ctx, selectActivities+" WHERE "+cond+" LIMIT 1", args...)
	if err != nil {
		return generic.ActivityRecord{}, err
	}
	if len(recs) == 0 {
		return generic.ActivityRecord{}, generic.ErrRecordNotFound
	}
	return recs[0], nil
}

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]generic.ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.ActivityRecord
	for rows.Next() {
		rec, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanActivity(rows *sql.Rows) (generic.ActivityRecord, error) {
	var (
		rec                     generic.ActivityRecord
		operatorID, classID     string
		day, createdAt          string
		opName, clsName, clsSym sql.NullString
	)
	if err := rows.Scan(&rec.ID, &operatorID, &classID, &day, &rec.Description, &rec.PaymentPeriod, &createdAt,
		&opName, &clsName, &clsSym); err != nil {
		return rec, err
	}

	date, err := generic.ParseDate(day)
	if err != nil {
		return rec, err
	}
	rec.Date = date
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rec.Operator = generic.IDRef[generic.Operator](operatorID)
	if opName.Valid {
		rec.Operator = generic.Resolved(generic.Operator{ID: operatorID, Name: opName.String})
	}
	rec.Class = generic.IDRef[generic.Class](classID)
	if clsName.Valid {
		rec.Class = generic.Resolved(generic.Class{ID: classID, Name: clsName.String, Symbol: clsSym.String})
	}
	return rec, nil
}

// =============================================================================
// ENTITY STORE IMPLEMENTATION
// =============================================================================

// SaveOperator upserts an operator.
func (s *Store) SaveOperator(ctx context.Context, op generic.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, op.ID, op.Name, s.now().UTC().Format(time.RFC3339))
	return err
}

// ListOperators returns operators ordered by name.
func (s *Store) ListOperators(ctx context.Context) ([]generic.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM operators ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Operator
	for rows.Next() {
		var op generic.Operator
		if err := rows.Scan(&op.ID, &op.Name); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// SaveClass upserts a class.
func (s *Store) SaveClass(ctx context.Context, c generic.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classes (id, name, symbol, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, symbol = excluded.symbol
	`, c.ID, c.Name, c.Symbol, s.now().UTC().Format(time.RFC3339))
	return err
}

// ListClasses returns classes ordered by symbol.
func (s *Store) ListClasses(ctx context.Context) ([]generic.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, symbol FROM classes ORDER BY symbol, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Class
	for rows.Next() {
		var c generic.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Symbol); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// ASSIGNMENT STORE IMPLEMENTATION
// =============================================================================

// SaveAssignment upserts an assignment. An empty ID gets a new uuid.
func (s *Store) SaveAssignment(ctx context.Context, a generic.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var effectiveTo sql.NullString
	if a.EffectiveTo != nil {
		effectiveTo = sql.NullString{String: a.EffectiveTo.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, operator_id, class_id, weekday, effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			operator_id = excluded.operator_id,
			class_id = excluded.class_id,
			weekday = excluded.weekday,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to
	`,
		a.ID,
		a.OperatorID,
		a.Class.ID(),
		int(a.Weekday),
		a.EffectiveFrom.String(),
		effectiveTo,
		s.now().UTC().Format(time.RFC3339),
	)
	return err
}

// AssignmentsDuring returns the operator's assignments effective during
// period, with classes resolved where they still exist.
func (s *Store) AssignmentsDuring(ctx context.Context, operatorID string, period generic.Period) ([]generic.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.operator_id, a.class_id, a.weekday, a.effective_from, a.effective_to, c.name, c.symbol
		FROM assignments a
		LEFT JOIN classes c ON c.id = a.class_id
		WHERE a.operator_id = ?
		  AND (a.effective_from = '' OR a.effective_from <= ?)
		  AND (a.effective_to IS NULL OR a.effective_to >= ?)
		ORDER BY a.weekday, a.class_id
	`, operatorID, period.End.String(), period.Start.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Assignment
	for rows.Next() {
		var (
			a               generic.Assignment
			classID, from   string
			weekday         int
			to              sql.NullString
			clsName, clsSym sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.OperatorID, &classID, &weekday, &from, &to, &clsName, &clsSym); err != nil {
			return nil, err
		}
		a.Weekday = time.Weekday(weekday)
		if from != "" {
			if a.EffectiveFrom, err = generic.ParseDate(from); err != nil {
				return nil, err
			}
		}
		if to.Valid {
			end, err := generic.ParseDate(to.String)
			if err != nil {
				return nil, err
			}
			a.EffectiveTo = &end
		}
		a.Class = generic.IDRef[generic.Class](classID)
		if clsName.Valid {
			a.Class = generic.Resolved(generic.Class{ID: classID, Name: clsName.String, Symbol: clsSym.String})
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAY CALENDAR IMPLEMENTATION
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, day, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(day, name) DO NOTHING
	`,
		h.ID,
		h.Date.String(),
		h.Name,
		s.now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// HolidaysBetween returns holidays in [from, to] ordered by day.
func (s *Store) HolidaysBetween(ctx context.Context, from, to generic.TimePoint) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, day, name FROM holidays WHERE day >= ? AND day <= ? ORDER BY day, name",
		from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Holiday
	for rows.Next() {
		var (
			h   generic.Holiday
			day string
		)
		if err := rows.Scan(&h.ID, &day, &h.Name); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseDate(day); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"activities", "assignments", "holidays", "classes", "operators"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
