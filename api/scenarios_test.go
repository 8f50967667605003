package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/activity-engine/generic"
)

func TestScenario_HolidayWindow(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})

	resp := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "holiday-window"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// THEN: Reference data from the setup is gone and Jan 2 was skipped
	ops := decode[[]generic.Operator](t, do(t, srv, http.MethodGet, "/api/operators", nil, ""))
	assert.Equal(t, []generic.Operator{{ID: "op-noa", Name: "Noa"}}, ops)

	recs := decode[[]generic.ActivityRecord](t, do(t, srv, http.MethodGet, "/api/activities", nil, ""))
	require.Len(t, recs, 4)
	for _, r := range recs {
		assert.NotEqual(t, "2025-01-02", r.Date.String())
		assert.Equal(t, "01-25", r.PaymentPeriod)
	}
}

func TestScenario_SchoolYear(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})

	resp := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "school-year"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	agg := decode[AggregateResponse](t, do(t, srv, http.MethodGet, "/api/aggregates", nil, ""))
	assert.Equal(t, []string{"11-24", "12-24", "01-25"}, agg.Vocabularies.Labels)
	assert.ElementsMatch(t, []string{"Dana", "Lior"}, agg.Vocabularies.Operators)
	assert.Positive(t, agg.Total)

	// Loading twice resets instead of piling up duplicates.
	resp = do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "school-year"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again := decode[AggregateResponse](t, do(t, srv, http.MethodGet, "/api/aggregates", nil, ""))
	assert.Equal(t, agg.Total, again.Total)
}

func TestScenario_Unknown(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})

	resp := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	list := decode[[]ScenarioDTO](t, do(t, srv, http.MethodGet, "/api/scenarios", nil, ""))
	assert.Len(t, list, 2)
}
