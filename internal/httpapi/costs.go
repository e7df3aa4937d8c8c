package httpapi

import (
	"net/http"
	"time"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/cost"
)

type breakdownDTO struct {
	Provider         string  `json:"provider"`
	Operation        string  `json:"operation"`
	RequestCount     int     `json:"request_count"`
	TotalTokens      int     `json:"total_tokens"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	AvgCostPerReqUSD float64 `json:"avg_cost_per_request_usd"`
}

func toBreakdownDTOs(breakdown []cost.Breakdown) []breakdownDTO {
	out := make([]breakdownDTO, len(breakdown))
	for i, b := range breakdown {
		out[i] = breakdownDTO{
			Provider:         b.Provider,
			Operation:        b.Operation,
			RequestCount:     b.RequestCount,
			TotalTokens:      b.TotalTokens,
			TotalCostUSD:     b.TotalCostUSD,
			AvgCostPerReqUSD: b.AvgCostPerReqUSD,
		}
	}
	return out
}

func (s *Server) handleCostsSummary(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	monthly, err := s.cost.MonthlySpend(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	daily, err := s.cost.DailySpend(r.Context(), now)
	if err != nil {
		s.writeError(w, err)
		return
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	breakdown, err := s.cost.Breakdown(r.Context(), monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"monthly_budget_usd": s.cfg.Cost.MonthlyBudgetUSD,
		"monthly_spend_usd":  monthly,
		"daily_spend_usd":    daily,
		"fallback_mode":      s.cost.FallbackActive(),
		"breakdown":          toBreakdownDTOs(breakdown),
	})
}

func (s *Server) handleCostsHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseTimeParam(q.Get("start"))
	if err != nil {
		s.writeError(w, apperr.Validation("invalid start parameter", err))
		return
	}
	until, err := parseTimeParam(q.Get("end"))
	if err != nil {
		s.writeError(w, apperr.Validation("invalid end parameter", err))
		return
	}
	if until.IsZero() {
		until = s.now()
	}
	if start.IsZero() {
		start = until.AddDate(0, -1, 0)
	}

	breakdown, err := s.cost.Breakdown(r.Context(), start, until)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"start":     start.UTC().Format(timeLayout),
		"end":       until.UTC().Format(timeLayout),
		"breakdown": toBreakdownDTOs(breakdown),
	})
}

func (s *Server) handleCostsAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.cost.Alerts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]any, len(alerts))
	for i, a := range alerts {
		out[i] = map[string]any{
			"alert_type":        a.AlertType,
			"period":            a.Period,
			"threshold_usd":     a.ThresholdUSD,
			"current_spend_usd": a.CurrentSpendUSD,
			"triggered_at":      a.TriggeredAt.UTC().Format(timeLayout),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
