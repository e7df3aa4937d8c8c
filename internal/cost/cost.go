// Package cost implements the Cost Tracker & Budget Guard (spec §4.M): a
// pricing table, an append-only ledger, and the 80%/100% budget alerts that
// flip the process into fallback mode.
package cost

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fabfab/ragcore/internal/model"
	"github.com/fabfab/ragcore/internal/runtime"
)

// ledger is the subset of storage.Store the tracker needs. Kept narrow so
// tests can supply an in-memory fake.
type ledger interface {
	InsertCostRecord(ctx context.Context, r model.CostRecord) error
	MonthlySpend(ctx context.Context, at time.Time) (float64, error)
	DailySpend(ctx context.Context, at time.Time) (float64, error)
	CostBreakdown(ctx context.Context, since, until time.Time) ([]Breakdown, error)
	RecentAlert(ctx context.Context, alertType model.AlertType, period string) (bool, error)
	InsertAlert(ctx context.Context, a model.BudgetAlert) error
	ListAlerts(ctx context.Context) ([]model.BudgetAlert, error)
}

// Breakdown summarizes spend for one (provider, operation) pair over a
// window (spec §4.M aggregation).
type Breakdown struct {
	Provider         string
	Operation        string
	RequestCount     int
	TotalTokens      int
	TotalCostUSD     float64
	AvgCostPerReqUSD float64
}

// priceKey identifies one (provider, model) pricing table entry.
type priceKey struct {
	provider string
	model    string
}

// Tracker computes and records the cost of every billable provider call.
type Tracker struct {
	store          ledger
	overrides      *runtime.Store
	monthlyBudget  float64
	alertsEnabled  bool
	prices         map[priceKey]float64 // USD per 1K tokens, or per-request for rerank
	perRequestKeys map[priceKey]bool
	log            *zap.Logger
}

// NewTracker builds a Tracker with the standard pricing table (spec §4.M).
// Unknown (provider, model) pairs are priced at 0 and logged. A nil logger
// falls back to zap.NewNop().
func NewTracker(store ledger, overrides *runtime.Store, monthlyBudgetUSD float64, alertsEnabled bool, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	prices := map[priceKey]float64{
		{"local", "*"}: 0,
		{"general_cloud", "text-embedding-3-large"}: 0.00013,
		{"code_cloud", "text-embedding-3-small"}:    0.00002,
		{"cloud_rerank", "*"}:                       0.001, // per request
		{"local_rerank", "*"}:                       0,
		{"anthropic", "claude-3-7-sonnet-latest"}:   0.003, // per 1K input tokens
	}
	perRequest := map[priceKey]bool{
		{"cloud_rerank", "*"}: true,
	}
	return &Tracker{
		store:          store,
		overrides:      overrides,
		monthlyBudget:  monthlyBudgetUSD,
		alertsEnabled:  alertsEnabled,
		prices:         prices,
		perRequestKeys: perRequest,
		log:            logger,
	}
}

// TrackInput describes one billable call.
type TrackInput struct {
	Provider     string
	Operation    string // embed | rerank | generate
	Tokens       int
	Model        string
	CollectionID *string
}

// Track records a cost row and, if alerts are enabled, asynchronously
// recomputes monthly spend and raises budget alerts. It never blocks the
// caller on the alert recomputation.
func (t *Tracker) Track(ctx context.Context, in TrackInput) error {
	costUSD := t.priceFor(in.Provider, in.Model, in.Tokens)

	rec := model.CostRecord{
		Provider:     in.Provider,
		Operation:    in.Operation,
		TokensUsed:   in.Tokens,
		CostUSD:      costUSD,
		Model:        in.Model,
		CollectionID: in.CollectionID,
	}
	if err := t.store.InsertCostRecord(ctx, rec); err != nil {
		return err
	}

	if t.alertsEnabled {
		go t.checkBudget(context.WithoutCancel(ctx))
	}
	return nil
}

func (t *Tracker) priceFor(provider, modelID string, tokens int) float64 {
	key := priceKey{provider, modelID}
	rate, ok := t.prices[key]
	if !ok {
		key = priceKey{provider, "*"}
		rate, ok = t.prices[key]
	}
	if !ok {
		t.log.Warn("unknown pricing entry, recording zero cost", zap.String("provider", provider), zap.String("model", modelID))
		return 0
	}
	if t.perRequestKeys[key] {
		return rate
	}
	return float64(tokens) / 1000 * rate
}

func (t *Tracker) checkBudget(ctx context.Context) {
	spend, err := t.store.MonthlySpend(ctx, time.Now())
	if err != nil {
		t.log.Error("recompute monthly spend failed", zap.Error(err))
		return
	}
	if t.monthlyBudget <= 0 {
		return
	}

	ratio := spend / t.monthlyBudget
	switch {
	case ratio >= 1.0:
		t.raiseAlert(ctx, model.AlertLimitReached, spend)
		t.overrides.EnableFallback()
	case ratio >= 0.8:
		t.raiseAlert(ctx, model.AlertWarning, spend)
	}
}

func (t *Tracker) raiseAlert(ctx context.Context, alertType model.AlertType, spend float64) {
	recent, err := t.store.RecentAlert(ctx, alertType, "monthly")
	if err != nil {
		t.log.Error("recent alert lookup failed", zap.Error(err))
		return
	}
	if recent {
		return
	}
	alert := model.BudgetAlert{
		AlertType:       alertType,
		Period:          "monthly",
		ThresholdUSD:    t.monthlyBudget,
		CurrentSpendUSD: spend,
	}
	if err := t.store.InsertAlert(ctx, alert); err != nil {
		t.log.Error("insert budget alert failed", zap.Error(err))
	}
}

// MonthlySpend exposes the current month's total spend.
func (t *Tracker) MonthlySpend(ctx context.Context) (float64, error) {
	return t.store.MonthlySpend(ctx, time.Now())
}

// DailySpend exposes total spend for the calendar day containing at.
func (t *Tracker) DailySpend(ctx context.Context, at time.Time) (float64, error) {
	return t.store.DailySpend(ctx, at)
}

// Breakdown exposes per-(provider, operation) spend over [since, until).
func (t *Tracker) Breakdown(ctx context.Context, since, until time.Time) ([]Breakdown, error) {
	return t.store.CostBreakdown(ctx, since, until)
}

// Alerts exposes every budget alert ever raised, newest first.
func (t *Tracker) Alerts(ctx context.Context) ([]model.BudgetAlert, error) {
	return t.store.ListAlerts(ctx)
}

// FallbackActive reports whether the process is currently in fallback mode.
func (t *Tracker) FallbackActive() bool {
	return t.overrides != nil && t.overrides.Load().FallbackMode
}
