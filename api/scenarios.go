/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates operators, classes, standing
	assignments and holidays, and submits recorded activities through the
	same Creator the batch endpoint uses.

AVAILABLE SCENARIOS:

	school-year:     Two operators, three classes, a term of recorded sessions
	holiday-window:  One Thursday club across the December/January break

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create operators and classes
 3. Add weekly assignments and holidays
 4. Submit activities through the Creator

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "school-year"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and Store
  - recurrence/form.go: Forms used to expand the recorded sessions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/activity-engine/activity"
	"github.com/warp/activity-engine/generic"
	"github.com/warp/activity-engine/logging"
	"github.com/warp/activity-engine/recurrence"
)

// Resetter clears every table. Scenario loading needs it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "school-year",
		Name:        "School Year",
		Description: "Two operators and three classes with sessions recorded November to January",
	},
	{
		ID:          "holiday-window",
		Name:        "Holiday Window",
		Description: "Weekly Thursday club across the Dec 28 - Jan 4 break",
	},
}

var scenarioLoaders = map[string]func(context.Context, *Handler) error{
	"school-year":    loadSchoolYearScenario,
	"holiday-window": loadHolidayWindowScenario,
}

// scenarioSession may record for any operator.
var scenarioSession = activity.Session{Subject: "scenario", Admin: true}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown scenario", nil)
		return
	}
	resetter, ok := h.Store.(Resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "store cannot be reset", nil)
		return
	}

	ctx := r.Context()
	if err := resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database", err)
		return
	}
	h.Records.Invalidate(ctx)

	if err := load(ctx, h); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load scenario: %v", err), err)
		return
	}
	logging.C(ctx).Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadSchoolYearScenario(ctx context.Context, h *Handler) error {
	operators := []generic.Operator{{ID: "op-dana", Name: "Dana"}, {ID: "op-lior", Name: "Lior"}}
	classes := []generic.Class{
		{ID: "cls-chess", Name: "Chess", Symbol: "C1"},
		{ID: "cls-robotics", Name: "Robotics", Symbol: "R2"},
		{ID: "cls-drama", Name: "Drama", Symbol: "D3"},
	}
	assignments := []generic.Assignment{
		{OperatorID: "op-dana", Class: generic.IDRef[generic.Class]("cls-chess"), Weekday: time.Sunday},
		{OperatorID: "op-dana", Class: generic.IDRef[generic.Class]("cls-robotics"), Weekday: time.Tuesday},
		{OperatorID: "op-lior", Class: generic.IDRef[generic.Class]("cls-drama"), Weekday: time.Wednesday},
	}
	if err := seedReference(ctx, h, operators, classes, assignments); err != nil {
		return err
	}
	if err := h.Store.SaveHoliday(ctx, generic.Holiday{Date: generic.NewTimePoint(2024, time.December, 25), Name: "Winter break"}); err != nil {
		return err
	}

	for _, month := range []generic.Month{
		generic.NewMonth(2024, time.November),
		generic.NewMonth(2024, time.December),
		generic.NewMonth(2025, time.January),
	} {
		period := generic.PayPeriodFor(month)
		if err := submitForm(ctx, h, "op-dana", period, recurrence.Form{PaymentPeriod: period.Label}.
			Append(recurrence.WeeklyEntry("cls-chess", time.Sunday, "")).
			Append(recurrence.WeeklyEntry("cls-robotics", time.Tuesday, ""))); err != nil {
			return err
		}
		if err := submitForm(ctx, h, "op-lior", period, recurrence.Form{PaymentPeriod: period.Label}.
			Append(recurrence.WeeklyEntry("cls-drama", time.Wednesday, ""))); err != nil {
			return err
		}
	}
	return nil
}

func loadHolidayWindowScenario(ctx context.Context, h *Handler) error {
	if err := seedReference(ctx, h,
		[]generic.Operator{{ID: "op-noa", Name: "Noa"}},
		[]generic.Class{{ID: "cls-science", Name: "Science Club", Symbol: "S1"}},
		[]generic.Assignment{{OperatorID: "op-noa", Class: generic.IDRef[generic.Class]("cls-science"), Weekday: time.Thursday}},
	); err != nil {
		return err
	}

	period := generic.PayPeriodFor(generic.NewMonth(2025, time.January))
	form := recurrence.Form{PaymentPeriod: period.Label, Options: recurrence.Options{}.WithHolidayWindow(true)}.
		Append(recurrence.WeeklyEntry("cls-science", time.Thursday, "weekly club"))
	return submitForm(ctx, h, "op-noa", period, form)
}

func seedReference(ctx context.Context, h *Handler, ops []generic.Operator, classes []generic.Class, assignments []generic.Assignment) error {
	for _, op := range ops {
		if err := h.Store.SaveOperator(ctx, op); err != nil {
			return fmt.Errorf("save operator %s: %w", op.ID, err)
		}
	}
	for _, c := range classes {
		if err := h.Store.SaveClass(ctx, c); err != nil {
			return fmt.Errorf("save class %s: %w", c.ID, err)
		}
	}
	for _, a := range assignments {
		if err := h.Store.SaveAssignment(ctx, a); err != nil {
			return fmt.Errorf("save assignment: %w", err)
		}
	}
	return nil
}

func submitForm(ctx context.Context, h *Handler, operatorID string, period generic.PayPeriod, form recurrence.Form) error {
	tuples, err := form.Tuples(operatorID, period)
	if err != nil {
		return err
	}
	res, err := h.Creator.Submit(ctx, scenarioSession, tuples)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s: %s", res.Summary(), res.Failures[0].Message)
	}
	return nil
}
