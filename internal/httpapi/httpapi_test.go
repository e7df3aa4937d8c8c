package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/ragcore/internal/config"
	"github.com/fabfab/ragcore/internal/cost"
	"github.com/fabfab/ragcore/internal/model"
	"github.com/fabfab/ragcore/internal/runtime"
)

// fakeLedger implements cost's unexported ledger interface structurally so
// httpapi tests can exercise the costs handlers without a real database.
type fakeLedger struct {
	monthly, daily float64
	breakdown      []cost.Breakdown
	alerts         []model.BudgetAlert
}

func (f *fakeLedger) InsertCostRecord(ctx context.Context, r model.CostRecord) error { return nil }
func (f *fakeLedger) MonthlySpend(ctx context.Context, at time.Time) (float64, error) {
	return f.monthly, nil
}
func (f *fakeLedger) DailySpend(ctx context.Context, at time.Time) (float64, error) {
	return f.daily, nil
}
func (f *fakeLedger) CostBreakdown(ctx context.Context, since, until time.Time) ([]cost.Breakdown, error) {
	return f.breakdown, nil
}
func (f *fakeLedger) RecentAlert(ctx context.Context, alertType model.AlertType, period string) (bool, error) {
	return false, nil
}
func (f *fakeLedger) InsertAlert(ctx context.Context, a model.BudgetAlert) error { return nil }
func (f *fakeLedger) ListAlerts(ctx context.Context) ([]model.BudgetAlert, error) {
	return f.alerts, nil
}

func newTestServer(ledger *fakeLedger, budget float64) *Server {
	tracker := cost.NewTracker(ledger, runtime.NewStore(), budget, true, nil)
	return New(Deps{
		Config: config.Config{Cost: config.CostConfig{MonthlyBudgetUSD: budget}},
		Cost:   tracker,
	})
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	srv := newTestServer(&fakeLedger{}, 50)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleCostsSummary_ReturnsMonthlyAndDailySpend(t *testing.T) {
	ledger := &fakeLedger{monthly: 12.5, daily: 1.1}
	srv := newTestServer(ledger, 50)

	req := httptest.NewRequest(http.MethodGet, "/api/costs/summary", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 12.5, body["monthly_spend_usd"])
	assert.Equal(t, 1.1, body["daily_spend_usd"])
	assert.Equal(t, 50.0, body["monthly_budget_usd"])
	assert.Equal(t, false, body["fallback_mode"])
}

func TestHandleCostsHistory_RejectsInvalidStartParam(t *testing.T) {
	srv := newTestServer(&fakeLedger{}, 50)

	req := httptest.NewRequest(http.MethodGet, "/api/costs/history?start=not-a-date", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCostsHistory_DefaultsToTrailingMonth(t *testing.T) {
	ledger := &fakeLedger{breakdown: []cost.Breakdown{{Provider: "local", Operation: "embed", RequestCount: 3}}}
	srv := newTestServer(ledger, 50)

	req := httptest.NewRequest(http.MethodGet, "/api/costs/history", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	breakdown := body["breakdown"].([]any)
	require.Len(t, breakdown, 1)

	start, err := time.Parse(time.RFC3339, body["start"].(string))
	require.NoError(t, err)
	end, err := time.Parse(time.RFC3339, body["end"].(string))
	require.NoError(t, err)
	assert.True(t, end.AddDate(0, -1, 0).Equal(start), "start should be one month before end")
}

func TestHandleCostsAlerts_ReturnsLedgerAlerts(t *testing.T) {
	ledger := &fakeLedger{alerts: []model.BudgetAlert{
		{AlertType: model.AlertWarning, Period: "monthly", ThresholdUSD: 50, CurrentSpendUSD: 41},
	}}
	srv := newTestServer(ledger, 50)

	req := httptest.NewRequest(http.MethodGet, "/api/costs/alerts", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	alerts := body["alerts"].([]any)
	require.Len(t, alerts, 1)
}

func TestHandleNotFoundRoute_Returns404(t *testing.T) {
	srv := newTestServer(&fakeLedger{}, 50)

	req := httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
