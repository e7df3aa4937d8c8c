package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/config"
	"github.com/fabfab/ragcore/internal/search"
)

type searchRequest struct {
	Query         string  `json:"query"`
	CollectionID  string  `json:"collection_id"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
	Mode          string  `json:"mode"`
	Weights       *struct {
		Vector float64 `json:"vector"`
		BM25   float64 `json:"bm25"`
	} `json:"weights"`
	RRFK int `json:"rrf_k"`
}

type citationDTO struct {
	Title   string `json:"title,omitempty"`
	Page    string `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

type searchResultDTO struct {
	ChunkID        int64       `json:"chunk_id"`
	DocumentID     string      `json:"document_id"`
	Text           string      `json:"text"`
	DocTitle       string      `json:"doc_title"`
	Citation       citationDTO `json:"citation"`
	Similarity     float64     `json:"similarity"`
	Source         string      `json:"source,omitempty"`
	FusedScore     float64     `json:"fused_score,omitempty"`
	BaseSimilarity float64     `json:"base_similarity"`
	TrustWeight    float64     `json:"trust_weight,omitempty"`
	RecencyWeight  float64     `json:"recency_weight,omitempty"`
	RerankScore    float64     `json:"rerank_score,omitempty"`
	RerankProvider string      `json:"rerank_provider,omitempty"`
}

func toSearchResultDTO(r search.Result) searchResultDTO {
	return searchResultDTO{
		ChunkID:    r.ChunkID,
		DocumentID: r.DocumentID,
		Text:       r.Text,
		DocTitle:   r.DocTitle,
		Citation: citationDTO{
			Title:   r.Citation.Title,
			Page:    r.Citation.Page,
			Section: r.Citation.Section,
		},
		Similarity:     r.Similarity,
		Source:         r.Source,
		FusedScore:     r.FusedScore,
		BaseSimilarity: r.BaseSimilarity,
		TrustWeight:    r.TrustWeight,
		RecencyWeight:  r.RecencyWeight,
		RerankScore:    r.RerankScore,
		RerankProvider: r.RerankProvider,
	}
}

// handleSearch runs components G/H/I (vector, BM25, hybrid fusion), then J
// (trust/recency rescoring, feature-gated) and K (cross-encoder reranking,
// when a reranker is configured), per spec §4 and §6.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := s.now()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Validation("decode request body", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" || req.CollectionID == "" {
		s.writeError(w, apperr.Validation("query and collection_id are required", nil))
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = string(s.cfg.Hybrid.DefaultMode)
	}

	metadata := map[string]any{"search_mode": mode}
	var results []search.Result
	var err error

	switch config.SearchMode(mode) {
	case config.SearchModeVector:
		results, err = s.vector.Search(r.Context(), search.VectorQuery{
			Query: req.Query, CollectionID: req.CollectionID, TopK: normalizedTopK(req.TopK), MinSimilarity: req.MinSimilarity,
		})
		metadata["vector_count"] = len(results)
	default:
		weights := search.DefaultWeights
		if req.Weights != nil {
			weights = search.Weights{Vector: req.Weights.Vector, BM25: req.Weights.BM25}
		}
		results, err = s.hybrid.Search(r.Context(), search.HybridQuery{
			Query: req.Query, CollectionID: req.CollectionID, TopK: normalizedTopK(req.TopK),
			Weights: weights, RRFK: req.RRFK, MinSimilarity: req.MinSimilarity,
		})
		vectorCount, bm25Count := 0, 0
		for _, res := range results {
			if res.VectorRank >= 0 {
				vectorCount++
			}
			if res.BM25Rank >= 0 {
				bm25Count++
			}
		}
		metadata["vector_count"] = vectorCount
		metadata["bm25_count"] = bm25Count
		metadata["fused_count"] = len(results)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.cfg.Features.TrustScoring && s.rescorer != nil {
		results = s.rescorer.Rescore(results)
		metadata["trust_scoring_applied"] = true
	}

	if s.reranker != nil && s.cfg.Rerank.Provider != config.RerankerNone {
		provider := string(s.cfg.Rerank.Provider)
		if s.cfg.Rerank.ProviderOverride != "" {
			provider = string(s.cfg.Rerank.ProviderOverride)
		}
		results, err = s.reranker.Rerank(r.Context(), req.Query, results, search.Options{
			Provider:      provider,
			TopK:          normalizedTopK(req.TopK),
			MaxCandidates: s.cfg.Rerank.MaxCandidates,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	if provider, ok, err := s.store.CollectionEmbeddingProvider(r.Context(), req.CollectionID); err == nil && ok {
		metadata["embedding_provider"] = provider
	}

	out := make([]searchResultDTO, len(results))
	for i, res := range results {
		out[i] = toSearchResultDTO(res)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":          req.Query,
		"results":        out,
		"total_results":  len(out),
		"search_time_ms": time.Since(start).Milliseconds(),
		"metadata":       metadata,
	})
}

func normalizedTopK(topK int) int {
	if topK <= 0 {
		return 10
	}
	return topK
}
