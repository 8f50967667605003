/*
handlers.go - HTTP API handlers for the activity engine

PURPOSE:
  Exposes scheduling, submission, aggregation and reporting via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the recurrence, activity, aggregate and report packages.

ENDPOINTS:
  Periods:
    GET    /api/periods/{month}          Pay period for a reporting month

  Activities:
    POST   /api/recurrences/preview      Expand a form without submitting
    POST   /api/activities/batch         Submit a form
    GET    /api/activities/grid          Operator grid for a month
    POST   /api/activities/grid          Apply toggles and submit the grid
    GET    /api/activities               List records
    DELETE /api/activities/{id}          Delete one record
    POST   /api/activities/delete        Delete several records

  Aggregates:
    GET    /api/aggregates               Buckets, vocabularies and detail
    GET    /api/counts/operator          Monthly count for one operator
    GET    /api/counts/group             Monthly count for one group
    GET    /api/utilization              Working-day utilization

  Reference data:
    GET|POST /api/operators, /api/classes, /api/holidays
    DELETE   /api/holidays/{id}
    POST     /api/assignments

ARCHITECTURE:
  Handler holds the store, the record cache and the creator. Reads go
  through the cache; writes go through the creator (records) or the store
  (reference data) and then invalidate the cache.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid bearer token
  - 403: Session may not act for the operator
  - 404: Resource not found
  - 409: Conflict (duplicate)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - reports.go: Report downloads
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/activity-engine/activity"
	"github.com/warp/activity-engine/aggregate"
	"github.com/warp/activity-engine/cache"
	"github.com/warp/activity-engine/generic"
	"github.com/warp/activity-engine/logging"
	"github.com/warp/activity-engine/recurrence"
	"github.com/warp/activity-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API needs from persistence.
type Store interface {
	generic.RecordStore
	generic.EntityStore
	generic.AssignmentStore
	generic.HolidayCalendar
	SaveHoliday(ctx context.Context, h generic.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
}

// Settings tunes handler behavior.
type Settings struct {
	RecordCacheTTL time.Duration
	HolidayWindow  bool
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Records  *cache.Records
	Creator  *activity.Creator
	settings Settings
}

// NewHandler wires the record cache and the creator around store.
func NewHandler(store Store, settings Settings) *Handler {
	records := cache.NewRecords(store, settings.RecordCacheTTL)
	return &Handler{
		Store:    store,
		Records:  records,
		Creator:  activity.NewCreator(store, activity.WithInvalidator(records), activity.WithEntities(store)),
		settings: settings,
	}
}

var validate = validator.New()

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// GetPeriod returns the pay period of a reporting month.
// ?payment=MM-YY labels it with another month.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	month, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month", err)
		return
	}
	payment := month
	if p := r.URL.Query().Get("payment"); p != "" {
		if payment, err = generic.ParseMonth(p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payment month", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, generic.PayPeriodWithPayment(month, payment))
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

// PreviewRecurrence expands a form into tuples without creating anything.
func (h *Handler) PreviewRecurrence(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	period, tuples, err := h.expand(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if tuples == nil {
		tuples = []activity.Tuple{}
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Period: period, Tuples: tuples})
}

// SubmitBatch expands a form and submits every tuple.
// Duplicates are reported as notices; other failures do not stop the batch.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	_, tuples, err := h.expand(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.submit(w, r, tuples)
}

func (h *Handler) expand(ctx context.Context, req BatchRequest) (generic.PayPeriod, []activity.Tuple, error) {
	session := SessionFrom(ctx)
	operatorID := req.OperatorID
	if operatorID == "" {
		operatorID = session.OperatorID
	}

	form := req.Form
	if req.ExcludeHolidayWindow != nil {
		form.Options = form.Options.WithHolidayWindow(*req.ExcludeHolidayWindow)
	}
	form.Options = form.Options.DefaultHolidayWindow(h.settings.HolidayWindow)
	if err := form.Validate(); err != nil {
		return generic.PayPeriod{}, nil, err
	}

	payment, err := generic.ParseMonth(form.PaymentPeriod)
	if err != nil {
		return generic.PayPeriod{}, nil, err
	}
	reporting := req.Month
	if reporting.IsZero() {
		reporting = payment
	}
	period := generic.PayPeriodWithPayment(reporting, payment)

	tuples, err := form.Tuples(operatorID, period)
	return period, tuples, err
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, tuples []activity.Tuple) {
	res, err := h.Creator.Submit(r.Context(), SessionFrom(r.Context()), tuples)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "request cancelled", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(res))
}

// =============================================================================
// GRID HANDLERS
// =============================================================================

// GetGrid returns the operator's grid for ?month=, seeded from assignments.
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month", err)
		return
	}
	operatorID := r.URL.Query().Get("operator")
	if operatorID == "" {
		operatorID = SessionFrom(r.Context()).OperatorID
	}
	if operatorID == "" {
		writeError(w, http.StatusBadRequest, "operator is required", nil)
		return
	}

	grid, err := h.buildGrid(r.Context(), operatorID, generic.PayPeriodFor(month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build grid", err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// SubmitGrid rebuilds the grid, applies the toggles and submits every
// pending selection. Recorded symbols cannot be toggled.
func (h *Handler) SubmitGrid(w http.ResponseWriter, r *http.Request) {
	var req GridSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Month.IsZero() {
		writeError(w, http.StatusBadRequest, "month is required", nil)
		return
	}
	if req.OperatorID == "" {
		req.OperatorID = SessionFrom(r.Context()).OperatorID
	}
	if req.OperatorID == "" {
		writeError(w, http.StatusBadRequest, "operator is required", nil)
		return
	}
	period := generic.PayPeriodFor(req.Month)
	if req.PaymentPeriod == "" {
		req.PaymentPeriod = period.Label
	}

	grid, err := h.buildGrid(r.Context(), req.OperatorID, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build grid", err)
		return
	}
	for _, t := range req.Toggles {
		if grid, err = grid.Toggle(t.Row, t.Symbol); err != nil {
			writeError(w, http.StatusBadRequest, "invalid toggle", err)
			return
		}
	}
	tuples, err := grid.Pending(req.Description, req.PaymentPeriod)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid selection", err)
		return
	}
	h.submit(w, r, tuples)
}

func (h *Handler) buildGrid(ctx context.Context, operatorID string, period generic.PayPeriod) (recurrence.Grid, error) {
	recorded, err := h.Records.List(ctx, generic.RecordFilter{OperatorID: operatorID, From: period.Start, To: period.End})
	if err != nil {
		return recurrence.Grid{}, err
	}
	assignments, err := h.Store.AssignmentsDuring(ctx, operatorID, period.Period)
	if err != nil {
		return recurrence.Grid{}, err
	}
	classes, err := h.Store.ListClasses(ctx)
	if err != nil {
		return recurrence.Grid{}, err
	}
	return recurrence.BuildGrid(period, operatorID, recorded, assignments, classes), nil
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListActivities returns records filtered by ?operator=&class=&from=&to=.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.RecordFilter{OperatorID: q.Get("operator"), ClassID: q.Get("class")}
	var err error
	if filter.From, err = optionalDate(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date", err)
		return
	}
	if filter.To, err = optionalDate(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date", err)
		return
	}

	recs, err := h.Records.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list activities", err)
		return
	}
	if recs == nil {
		recs = []generic.ActivityRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// DeleteActivity removes one record.
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.Creator.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteActivities removes several records, continuing past failures.
func (h *Handler) DeleteActivities(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	deleted, err := h.Creator.DeleteMany(r.Context(), req.IDs)
	resp := DeleteResponse{Deleted: deleted}
	if err != nil {
		resp.Errors = unjoin(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// AGGREGATE HANDLERS
// =============================================================================

// GetAggregates buckets every record and applies ?label=&operator=&group=.
// Vocabularies always describe the unfiltered buckets.
func (h *Handler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := aggregate.Filter{Label: q.Get("label"), Operator: q.Get("operator"), Group: q.Get("group")}

	recs, err := h.Records.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load activities", err)
		return
	}
	buckets := aggregate.Aggregate(recs)
	filtered := aggregate.FilterBuckets(buckets, filter)
	if filtered == nil {
		filtered = []aggregate.Bucket{}
	}
	writeJSON(w, http.StatusOK, AggregateResponse{
		Filter:       filter,
		Buckets:      filtered,
		Total:        aggregate.Total(filtered),
		Vocabularies: aggregate.VocabulariesOf(buckets),
		Detail:       aggregate.DetailInfo(buckets, filter),
	})
}

// CountForOperator counts one operator's records in the pay period of ?month=.
func (h *Handler) CountForOperator(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, aggregate.MonthlyCountForOperator)
}

// CountForGroup counts one group's records in the pay period of ?month=.
func (h *Handler) CountForGroup(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, aggregate.MonthlyCountForGroup)
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request, fn func([]generic.ActivityRecord, generic.PayPeriod, string) int) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month", err)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	recs, err := h.Records.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load activities", err)
		return
	}
	period := generic.PayPeriodFor(month)
	writeJSON(w, http.StatusOK, CountResponse{Period: period.Label, Name: name, Count: fn(recs, period, name)})
}

// GetUtilization reports working-day utilization for ?month=&operator=.
func (h *Handler) GetUtilization(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month", err)
		return
	}
	period := generic.PayPeriodFor(month).Period

	holidays, err := h.Store.HolidaysBetween(r.Context(), period.Start, period.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load holidays", err)
		return
	}
	recs, err := h.Records.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load activities", err)
		return
	}
	u := aggregate.UtilizationFor(recs, period, holidays, r.URL.Query().Get("operator"))
	writeJSON(w, http.StatusOK, UtilizationResponse{Utilization: u, Percent: u.Percent().String()})
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

// ListOperators returns every operator.
func (h *Handler) ListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := h.Store.ListOperators(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list operators", err)
		return
	}
	if ops == nil {
		ops = []generic.Operator{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// CreateOperator upserts an operator. Records pick up the new name.
func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req CreateOperatorRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	op := generic.Operator{ID: req.ID, Name: req.Name}
	if err := h.Store.SaveOperator(r.Context(), op); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save operator", err)
		return
	}
	h.Records.Invalidate(r.Context())
	writeJSON(w, http.StatusCreated, op)
}

// ListClasses returns every class.
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.Store.ListClasses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list classes", err)
		return
	}
	if classes == nil {
		classes = []generic.Class{}
	}
	writeJSON(w, http.StatusOK, classes)
}

// CreateClass upserts a class.
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	c := generic.Class{ID: req.ID, Name: req.Name, Symbol: req.Symbol}
	if err := h.Store.SaveClass(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save class", err)
		return
	}
	h.Records.Invalidate(r.Context())
	writeJSON(w, http.StatusCreated, c)
}

// CreateAssignment adds a standing weekly assignment.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if !SessionFrom(r.Context()).CanActFor(req.OperatorID) {
		writeError(w, http.StatusForbidden, "forbidden", activity.ErrForbidden)
		return
	}
	a := generic.Assignment{
		OperatorID:    req.OperatorID,
		Class:         generic.IDRef[generic.Class](req.ClassID),
		Weekday:       time.Weekday(*req.Weekday),
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
	}
	if a.EffectiveTo != nil && !a.EffectiveFrom.IsZero() && a.EffectiveTo.Before(a.EffectiveFrom) {
		writeError(w, http.StatusBadRequest, "invalid assignment", generic.ErrInvalidPeriod)
		return
	}
	if err := h.Store.SaveAssignment(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListHolidays returns holidays in ?from=&to=, defaulting to the current year.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := generic.Today().Year()
	from, err := optionalDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date", err)
		return
	}
	to, err := optionalDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date", err)
		return
	}
	if from.IsZero() {
		from = generic.NewTimePoint(year, time.January, 1)
	}
	if to.IsZero() {
		to = generic.NewTimePoint(year, time.December, 31)
	}

	holidays, err := h.Store.HolidaysBetween(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list holidays", err)
		return
	}
	if holidays == nil {
		holidays = []generic.Holiday{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

// CreateHoliday adds a named holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required", generic.ErrInvalidDate)
		return
	}
	holiday := generic.Holiday{Date: req.Date, Name: req.Name}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

// DeleteHoliday removes a holiday by id.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *recurrence.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message(), Details: verr.Error(), Problems: verr.Problems})
	case errors.Is(err, generic.ErrDuplicateActivity):
		writeError(w, http.StatusConflict, "already recorded", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, activity.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err)
	case generic.IsClientError(err),
		errors.Is(err, report.ErrSelector),
		errors.Is(err, recurrence.ErrInvalidComposition),
		errors.Is(err, recurrence.ErrRowOutOfRange):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	default:
		logging.C(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func decodeAndValidate(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	return validate.Struct(v)
}

func monthParam(r *http.Request) (generic.Month, error) {
	return generic.ParseMonth(r.URL.Query().Get("month"))
}

func yearParam(r *http.Request) (int, error) {
	s := r.URL.Query().Get("year")
	if s == "" {
		return generic.Today().Year(), nil
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 2000 || y > 9999 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return y, nil
}

func optionalDate(s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(s)
}

// unjoin flattens an errors.Join result into messages.
func unjoin(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
