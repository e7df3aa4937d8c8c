package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/search"
	"github.com/fabfab/ragcore/internal/synthesis"
)

type sourceDTO struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

type approachDTO struct {
	Topic     string      `json:"topic"`
	Method    string      `json:"method,omitempty"`
	Summary   string      `json:"summary"`
	Sources   []sourceDTO `json:"sources"`
	Consensus float64     `json:"consensus"`
}

type conflictDTO struct {
	ApproachA   string  `json:"approach_a"`
	ApproachB   string  `json:"approach_b"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

func toApproachDTO(a synthesis.Approach) approachDTO {
	sources := make([]sourceDTO, len(a.Sources))
	for i, src := range a.Sources {
		sources[i] = sourceDTO{Title: src.Title, URL: src.URL, Snippet: src.Snippet}
	}
	return approachDTO{Topic: a.Topic, Method: a.Method, Summary: a.Summary, Sources: sources, Consensus: a.Consensus}
}

func toConflictDTO(c synthesis.Conflict) conflictDTO {
	return conflictDTO{
		ApproachA:   c.ApproachA,
		ApproachB:   c.ApproachB,
		Severity:    c.Severity,
		Confidence:  c.Confidence,
		Explanation: c.Explanation,
	}
}

// handleSynthesisCompare runs component L over the top results of a hybrid
// search. The endpoint is feature-gated: 404 when ENABLE_SYNTHESIS is off
// (spec §6).
func (s *Server) handleSynthesisCompare(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.Synthesis {
		http.NotFound(w, r)
		return
	}

	start := s.now()

	var req struct {
		Query        string `json:"query"`
		CollectionID string `json:"collection_id"`
		TopK         int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Validation("decode request body", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" || req.CollectionID == "" {
		s.writeError(w, apperr.Validation("query and collection_id are required", nil))
		return
	}
	if req.TopK <= 0 {
		req.TopK = 50
	}

	results, err := s.hybrid.Search(r.Context(), search.HybridQuery{
		Query: req.Query, CollectionID: req.CollectionID, TopK: req.TopK,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.cfg.Features.TrustScoring && s.rescorer != nil {
		results = s.rescorer.Rescore(results)
	}

	out, err := s.synthesis.Synthesize(r.Context(), req.Query, results, synthesis.Options{
		MaxResults:             req.TopK,
		ContradictionDetection: s.cfg.Features.ContradictionDetection,
		MinOverlap:             s.cfg.Contradiction.MinOverlap,
		MaxOverlap:             s.cfg.Contradiction.MaxOverlap,
		MaxPairs:               s.cfg.Contradiction.MaxPairs,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	approaches := make([]approachDTO, len(out.Approaches))
	totalSources := 0
	for i, a := range out.Approaches {
		approaches[i] = toApproachDTO(a)
		totalSources += len(a.Sources)
	}
	conflicts := make([]conflictDTO, len(out.Conflicts))
	for i, c := range out.Conflicts {
		conflicts[i] = toConflictDTO(c)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":       req.Query,
		"approaches":  approaches,
		"conflicts":   conflicts,
		"recommended": out.Recommended,
		"metadata": map[string]any{
			"total_sources":     totalSources,
			"approaches_found":  len(approaches),
			"conflicts_found":   len(conflicts),
			"synthesis_time_ms": time.Since(start).Milliseconds(),
		},
	})
}
