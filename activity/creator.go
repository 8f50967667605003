/*
creator.go - Duplicate-safe batch submission of activity tuples

PURPOSE:
  Submits tuples one by one to the record store. A tuple that collides
  with an existing (class, day) record resolves to that record and
  produces a Notice. Any other store error becomes a Failure. The batch
  never stops early and never rolls back.

INVALIDATION:
  Dependent read state (the cached record list) is invalidated exactly
  once, after every tuple has resolved.

SESSION:
  The submitting operator comes from an explicit Session. Tuples with an
  empty OperatorID are recorded for the session operator.

SEE ALSO:
  - generic/store.go: RecordStore contract
  - cache/records.go: the Invalidator used in production
*/
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/activity-engine/generic"
	"github.com/warp/activity-engine/logging"
	"github.com/warp/activity-engine/observability"
)

var (
	// ErrMissingOperator is returned for tuples with no operator and no session operator.
	ErrMissingOperator = errors.New("no operator for activity")

	// ErrForbidden is returned when a session records activities for another operator.
	ErrForbidden = errors.New("session may not record activities for this operator")
)

// Invalidator drops read state that depends on the record collection.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context) {}

// =============================================================================
// RESULT
// =============================================================================

// Notice explains why a tuple did not add a new record.
type Notice struct {
	Record  generic.ActivityRecord `json:"record"`
	Message string                 `json:"message"`
}

// Failure is a tuple the store rejected.
type Failure struct {
	Tuple   Tuple  `json:"tuple"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Result summarizes a batch.
type Result struct {
	Records  []generic.ActivityRecord `json:"records"`
	Created  int                      `json:"created"`
	Notices  []Notice                 `json:"notices"`
	Failures []Failure                `json:"failures"`
}

// OK is true when every tuple resolved to a record.
func (r Result) OK() bool { return len(r.Failures) == 0 }

func (r Result) Summary() string {
	return fmt.Sprintf("%d created, %d already recorded, %d failed",
		r.Created, len(r.Notices), len(r.Failures))
}

// =============================================================================
// CREATOR
// =============================================================================

// Creator submits tuples to a RecordStore.
type Creator struct {
	store    generic.RecordStore
	entities generic.EntityStore
	inv      Invalidator
}

// Option configures a Creator.
type Option func(*Creator)

// WithInvalidator sets the read state dropped after each batch.
func WithInvalidator(inv Invalidator) Option {
	return func(c *Creator) {
		if inv != nil {
			c.inv = inv
		}
	}
}

// WithEntities lets failure messages name operators and classes.
func WithEntities(es generic.EntityStore) Option {
	return func(c *Creator) { c.entities = es }
}

func NewCreator(store generic.RecordStore, opts ...Option) *Creator {
	c := &Creator{store: store, inv: nopInvalidator{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit creates every tuple in order.
// The returned error is non-nil only when ctx is already done on entry.
func (c *Creator) Submit(ctx context.Context, session Session, tuples []Tuple) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	log := logging.C(ctx)
	names := c.nameLookup()

	res := Result{Records: make([]generic.ActivityRecord, 0, len(tuples))}
	for _, t := range tuples {
		if t.OperatorID == "" {
			t.OperatorID = session.OperatorID
		}
		if err := checkTuple(session, t); err != nil {
			res.Failures = append(res.Failures, names.failure(ctx, t, err))
			observability.RecordTupleOutcome(observability.OutcomeFailed)
			continue
		}

		rec, err := c.store.Create(ctx, t.newRecord())
		if existing, dup := generic.IsDuplicate(err); dup {
			n := Notice{Record: existing, Message: duplicateMessage(existing)}
			res.Records = append(res.Records, existing)
			res.Notices = append(res.Notices, n)
			observability.RecordTupleOutcome(observability.OutcomeDuplicate)
			log.Info().Str("record_id", existing.ID).Msg(n.Message)
			continue
		}
		if err != nil {
			f := names.failure(ctx, t, err)
			res.Failures = append(res.Failures, f)
			observability.RecordTupleOutcome(observability.OutcomeFailed)
			log.Warn().Err(err).Str("class_id", t.ClassID).Str("date", t.Date.String()).Msg(f.Message)
			continue
		}
		res.Records = append(res.Records, rec)
		res.Created++
		observability.RecordTupleOutcome(observability.OutcomeCreated)
	}

	c.inv.Invalidate(ctx)
	log.Info().
		Str("subject", session.Subject).
		Int("tuples", len(tuples)).
		Int("created", res.Created).
		Int("duplicates", len(res.Notices)).
		Int("failures", len(res.Failures)).
		Msg("batch submitted")
	return res, nil
}

func checkTuple(session Session, t Tuple) error {
	if t.OperatorID == "" {
		return ErrMissingOperator
	}
	if !session.CanActFor(t.OperatorID) {
		return ErrForbidden
	}
	return nil
}

// Delete removes one record and invalidates read state.
func (c *Creator) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete activity %s: %w", id, err)
	}
	c.inv.Invalidate(ctx)
	return nil
}

// DeleteMany removes records by id, continuing past failures.
// It returns how many were deleted and the joined errors of the rest.
func (c *Creator) DeleteMany(ctx context.Context, ids []string) (int, error) {
	var (
		deleted int
		errs    []error
	)
	for _, id := range ids {
		if err := c.store.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete activity %s: %w", id, err))
			continue
		}
		deleted++
	}
	if deleted > 0 {
		c.inv.Invalidate(ctx)
	}
	logging.C(ctx).Info().Int("requested", len(ids)).Int("deleted", deleted).Msg("bulk delete")
	return deleted, errors.Join(errs...)
}

// =============================================================================
// MESSAGES
// =============================================================================

func duplicateMessage(rec generic.ActivityRecord) string {
	return fmt.Sprintf("%s was already recorded on %s by %s",
		rec.GroupKey(), rec.Date, rec.OperatorName())
}

// names resolves ids for failure messages. Lookups are loaded lazily, once per batch.
type names struct {
	entities generic.EntityStore
	loaded   bool
	ops      map[string]generic.Operator
	classes  map[string]generic.Class
}

func (c *Creator) nameLookup() *names {
	return &names{entities: c.entities}
}

func (n *names) load(ctx context.Context) {
	if n.loaded || n.entities == nil {
		return
	}
	n.loaded = true
	n.ops = map[string]generic.Operator{}
	n.classes = map[string]generic.Class{}
	if ops, err := n.entities.ListOperators(ctx); err == nil {
		for _, op := range ops {
			n.ops[op.ID] = op
		}
	}
	if cls, err := n.entities.ListClasses(ctx); err == nil {
		for _, c := range cls {
			n.classes[c.ID] = c
		}
	}
}

func (n *names) failure(ctx context.Context, t Tuple, err error) Failure {
	n.load(ctx)
	group, operator := generic.UnknownName, generic.UnknownName
	if c, ok := n.classes[t.ClassID]; ok {
		group = c.Key()
	}
	if op, ok := n.ops[t.OperatorID]; ok {
		operator = op.Name
	}
	msg := fmt.Sprintf("could not record %s on %s for %s: %s",
		group, t.Date, operator, strings.TrimSpace(err.Error()))
	return Failure{Tuple: t, Message: msg, Err: err}
}
