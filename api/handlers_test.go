/*
handlers_test.go - HTTP tests for the API

Tests for:
- Batch submission, duplicate notices and validation problems
- Grid seeding from assignments
- Aggregates, counts and report downloads
- Bearer token sessions
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/activity-engine/generic"
	"github.com/warp/activity-engine/store/sqlite"
)

const testSecret = "test-secret"

func setupServer(t *testing.T, opts RouterOptions) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveOperator(ctx, generic.Operator{ID: "op1", Name: "Dana"}))
	require.NoError(t, store.SaveOperator(ctx, generic.Operator{ID: "op2", Name: "Lior"}))
	require.NoError(t, store.SaveClass(ctx, generic.Class{ID: "cls1", Name: "Chess", Symbol: "C1"}))
	require.NoError(t, store.SaveClass(ctx, generic.Class{ID: "cls2", Name: "Robotics", Symbol: "R2"}))

	h := NewHandler(store, Settings{HolidayWindow: true})
	srv := httptest.NewServer(NewRouter(h, opts))
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func thursdayForm(operatorID string) map[string]any {
	return map[string]any{
		"operator_id": operatorID,
		"month":       "2025-01",
		"form": map[string]any{
			"payment_period": "01-25",
			"entries": []map[string]any{
				{"mode": "weekly", "class_id": "cls1", "weekday": 4, "description": "club"},
			},
		},
	}
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

// =============================================================================
// PERIODS AND PREVIEW
// =============================================================================

func TestGetPeriod(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})

	resp := do(t, srv, http.MethodGet, "/api/periods/2025-01?payment=02-25", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)

	assert.Equal(t, "2024-12-26", got["start"])
	assert.Equal(t, "2025-01-25", got["end"])
	assert.Equal(t, "02-25", got["label"])

	resp = do(t, srv, http.MethodGet, "/api/periods/13-25", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreview_SkipsHolidayWindow(t *testing.T) {
	srv, store := setupServer(t, RouterOptions{})

	resp := do(t, srv, http.MethodPost, "/api/recurrences/preview", thursdayForm("op1"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[PreviewResponse](t, resp)

	require.Len(t, got.Tuples, 4)
	assert.Equal(t, "2024-12-26", got.Tuples[0].Date.String())
	assert.Equal(t, "2025-01-09", got.Tuples[1].Date.String())
	assert.Equal(t, "01-25", got.Tuples[0].PaymentPeriod)

	recs, err := store.List(context.Background(), generic.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs, "preview creates nothing")
}

func TestPreview_FormOptionsOverrideServerDefault(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})

	// The server excludes the window by default; the form turns it off.
	req := thursdayForm("op1")
	req["form"].(map[string]any)["options"] = map[string]any{"exclude_holiday_window": false}
	resp := do(t, srv, http.MethodPost, "/api/recurrences/preview", req, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[PreviewResponse](t, resp)
	require.Len(t, got.Tuples, 5)
	assert.Equal(t, "2025-01-02", got.Tuples[1].Date.String())

	// The top-level flag wins over the form.
	req["exclude_holiday_window"] = true
	resp = do(t, srv, http.MethodPost, "/api/recurrences/preview", req, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[PreviewResponse](t, resp).Tuples, 4)
}

func TestPreview_RejectsBadPaymentLabel(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})

	req := thursdayForm("op1")
	req["form"].(map[string]any)["payment_period"] = "13-25"
	resp := do(t, srv, http.MethodPost, "/api/recurrences/preview", req, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// BATCH SUBMISSION
// =============================================================================

func TestSubmitBatch_SecondSubmitReportsDuplicates(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})

	// GIVEN: A weekly Thursday rule already submitted once
	resp := do(t, srv, http.MethodPost, "/api/activities/batch", thursdayForm("op1"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[BatchResponse](t, resp)
	assert.Equal(t, "4 created, 0 already recorded, 0 failed", first.Summary)
	assert.True(t, first.OK)

	// WHEN: Another operator submits the same class and days
	resp = do(t, srv, http.MethodPost, "/api/activities/batch", thursdayForm("op2"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[BatchResponse](t, resp)

	// THEN: Every tuple resolves to the existing record
	assert.Equal(t, "0 created, 4 already recorded, 0 failed", second.Summary)
	require.Len(t, second.Notices, 4)
	assert.Contains(t, second.Notices[0].Message, "by Dana")
	assert.Equal(t, first.Records[0].ID, second.Records[0].ID)

	resp = do(t, srv, http.MethodGet, "/api/activities?operator=op1", nil, "")
	assert.Len(t, decode[[]generic.ActivityRecord](t, resp), 4)
}

func TestSubmitBatch_InvalidFormCreatesNothing(t *testing.T) {
	srv, store := setupServer(t, RouterOptions{})
	body := map[string]any{
		"operator_id": "op1",
		"month":       "2025-01",
		"form": map[string]any{
			"payment_period": "01-25",
			"entries": []map[string]any{
				{"mode": "weekly", "class_id": "cls1", "weekday": 0},
				{"mode": "picked", "class_id": "cls2"},
			},
		},
	}

	resp := do(t, srv, http.MethodPost, "/api/activities/batch", body, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got := decode[ErrorResponse](t, resp)

	require.NotEmpty(t, got.Problems)
	assert.Equal(t, 1, got.Problems[0].Row)
	assert.Equal(t, "pick at least one date", got.Error)

	recs, err := store.List(context.Background(), generic.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// =============================================================================
// GRID
// =============================================================================

func TestGrid_SeededFromAssignments(t *testing.T) {
	srv, store := setupServer(t, RouterOptions{})
	ctx := context.Background()
	require.NoError(t, store.SaveAssignment(ctx, generic.Assignment{
		OperatorID: "op1", Class: generic.IDRef[generic.Class]("cls1"), Weekday: time.Sunday,
	}))

	resp := do(t, srv, http.MethodGet, "/api/activities/grid?operator=op1&month=2025-01", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	grid := decode[map[string]any](t, resp)
	assert.Len(t, grid["rows"], 21)

	// Row 0 is Thursday 2024-12-26: add R2 there, keep the four seeded Sundays.
	resp = do(t, srv, http.MethodPost, "/api/activities/grid", GridSubmitRequest{
		OperatorID: "op1",
		Month:      generic.NewMonth(2025, time.January),
		Toggles:    []Toggle{{Row: 0, Symbol: "R2"}},
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[BatchResponse](t, resp)
	assert.Equal(t, 5, got.Created)

	// Recorded symbols are read-only afterwards.
	resp = do(t, srv, http.MethodPost, "/api/activities/grid", GridSubmitRequest{
		OperatorID: "op1",
		Month:      generic.NewMonth(2025, time.January),
		Toggles:    []Toggle{{Row: 0, Symbol: "R2"}},
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteActivities(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})
	first := decode[BatchResponse](t, do(t, srv, http.MethodPost, "/api/activities/batch", thursdayForm("op1"), ""))
	require.Len(t, first.Records, 4)

	resp := do(t, srv, http.MethodDelete, "/api/activities/"+first.Records[0].ID, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, srv, http.MethodDelete, "/api/activities/"+first.Records[0].ID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/activities/delete", DeleteRequest{IDs: []string{first.Records[1].ID, "missing"}}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[DeleteResponse](t, resp)
	assert.Equal(t, 1, got.Deleted)
	assert.Len(t, got.Errors, 1)

	resp = do(t, srv, http.MethodGet, "/api/activities", nil, "")
	assert.Len(t, decode[[]generic.ActivityRecord](t, resp), 2, "cache sees the deletes")
}

// =============================================================================
// AGGREGATES AND REPORTS
// =============================================================================

func TestAggregatesAndCounts(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})
	do(t, srv, http.MethodPost, "/api/activities/batch", thursdayForm("op1"), "")

	resp := do(t, srv, http.MethodGet, "/api/aggregates?label=all&operator=Dana", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	agg := decode[AggregateResponse](t, resp)

	// 2024-12-26 displays under 01-25 like the January days.
	require.Len(t, agg.Buckets, 1)
	assert.Equal(t, "01-25", agg.Buckets[0].Label)
	assert.Equal(t, 4, agg.Total)
	require.NotNil(t, agg.Detail)
	assert.Equal(t, []string{"C1 Chess"}, agg.Detail.Groups)
	assert.Equal(t, []string{"Dana"}, agg.Vocabularies.Operators)

	resp = do(t, srv, http.MethodGet, "/api/counts/group?month=2025-01&name=C1+Chess", nil, "")
	assert.Equal(t, 4, decode[CountResponse](t, resp).Count)

	resp = do(t, srv, http.MethodGet, "/api/counts/operator?month=2025-02&name=Dana", nil, "")
	assert.Equal(t, 0, decode[CountResponse](t, resp).Count)
}

func TestUtilization(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})
	do(t, srv, http.MethodPost, "/api/activities/batch", thursdayForm("op1"), "")

	resp := do(t, srv, http.MethodGet, "/api/utilization?month=2025-01&operator=Dana", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)

	assert.EqualValues(t, 21, got["working_days"])
	assert.EqualValues(t, 4, got["active_days"])
}

func TestMonthlyReport(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{})
	do(t, srv, http.MethodPost, "/api/activities/batch", thursdayForm("op1"), "")

	resp := do(t, srv, http.MethodGet, "/api/reports/monthly?month=2025-01&group=C1+Chess&format=csv", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attachment; filename=activities_01-25_c1-chess.csv", resp.Header.Get("Content-Disposition"))

	var body bytes.Buffer
	_, err := body.ReadFrom(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(body.String()), "\n")
	assert.Len(t, lines, 1+4)

	resp = do(t, srv, http.MethodGet, "/api/reports/monthly?month=2025-01&group=C1+Chess&operator=Dana", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/reports/summary?year=2025", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "academic_summary_2024-2025.xlsx")
}

func TestMonthlyReport_NonASCIIFilename(t *testing.T) {
	srv, store := setupServer(t, RouterOptions{})
	require.NoError(t, store.SaveClass(context.Background(), generic.Class{ID: "cls3", Name: "שחמט", Symbol: "H1"}))
	form := thursdayForm("op1")
	form["form"].(map[string]any)["entries"] = []map[string]any{{"mode": "weekly", "class_id": "cls3", "weekday": 4}}
	do(t, srv, http.MethodPost, "/api/activities/batch", form, "")

	resp := do(t, srv, http.MethodGet, "/api/reports/monthly?month=2025-01&format=csv&group="+url.QueryEscape("H1 שחמט"), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	header := resp.Header.Get("Content-Disposition")
	assert.Contains(t, header, "filename*=utf-8''")
	disposition, params, err := mime.ParseMediaType(header)
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "activities_01-25_h1-שחמט.csv", params["filename"])
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_TokenScopesOperator(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{Auth: AuthConfig{Secret: testSecret, Issuer: "activity-engine"}})

	resp := do(t, srv, http.MethodGet, "/api/activities", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := sign(t, jwt.MapClaims{
		"sub": "user-1", "operator_id": "op1", "iss": "activity-engine",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	// Own operator, taken from the token.
	resp = do(t, srv, http.MethodPost, "/api/activities/batch", thursdayForm(""), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, decode[BatchResponse](t, resp).Created)

	// Someone else's operator fails per tuple.
	form := thursdayForm("op2")
	form["form"].(map[string]any)["entries"] = []map[string]any{{"mode": "weekly", "class_id": "cls2", "weekday": 1}}
	resp = do(t, srv, http.MethodPost, "/api/activities/batch", form, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[BatchResponse](t, resp)
	assert.False(t, got.OK)
	assert.Equal(t, 0, got.Created)
	assert.NotEmpty(t, got.Failures)

	wrongIssuer := sign(t, jwt.MapClaims{"sub": "user-1", "iss": "elsewhere", "exp": time.Now().Add(time.Hour).Unix()})
	resp = do(t, srv, http.MethodGet, "/api/activities", nil, wrongIssuer)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_SharedDataRequiresAdmin(t *testing.T) {
	srv, store := setupServer(t, RouterOptions{Auth: AuthConfig{Secret: testSecret}})
	operator := sign(t, jwt.MapClaims{"sub": "u1", "operator_id": "op2"})
	admin := sign(t, jwt.MapClaims{"sub": "admin", "admin": true})

	resp := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "holiday-window"}, operator)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = do(t, srv, http.MethodPost, "/api/operators", CreateOperatorRequest{ID: "op9", Name: "Mallory"}, operator)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = do(t, srv, http.MethodPost, "/api/classes", CreateClassRequest{ID: "cls9", Name: "Art", Symbol: "A9"}, operator)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = do(t, srv, http.MethodPost, "/api/holidays", map[string]any{"date": "2025-01-12", "name": "Closed"}, operator)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Nothing was reset or overwritten.
	ops, err := store.ListOperators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []generic.Operator{{ID: "op1", Name: "Dana"}, {ID: "op2", Name: "Lior"}}, ops)

	// Reads stay open to operators.
	resp = do(t, srv, http.MethodGet, "/api/operators", nil, operator)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/operators", CreateOperatorRequest{ID: "op9", Name: "Mallory"}, admin)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "holiday-window"}, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t, RouterOptions{Auth: AuthConfig{Secret: testSecret}})
	do(t, srv, http.MethodPost, "/api/activities/batch", thursdayForm("op1"), sign(t, jwt.MapClaims{"sub": "admin", "admin": true}))

	resp := do(t, srv, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body bytes.Buffer
	_, err := body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "activity_engine_batch_tuples_total")
}
