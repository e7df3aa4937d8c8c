package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/storage"
)

// textStore is the subset of storage.Store component H needs.
type textStore interface {
	FullTextQuery(ctx context.Context, collectionID, queryText string, limit int) ([]storage.VectorHit, error)
}

// BM25Searcher is component H.
type BM25Searcher struct {
	store    textStore
	language string
}

// NewBM25Searcher builds a BM25Searcher defaulting to the given FTS
// language when a query does not override it.
func NewBM25Searcher(store textStore, language string) *BM25Searcher {
	if language == "" {
		language = "english"
	}
	return &BM25Searcher{store: store, language: language}
}

// reservedOperators strips characters the underlying tsquery syntax treats
// specially, leaving plain terms (spec §4.H).
var reservedOperators = regexp.MustCompile(`[&|!():'"<>*]`)

// prefixOperator marks every term with trailing-wildcard tsquery syntax, so
// e.g. "auth" also matches "authentication" (spec §2, §4.H: "prefix-token-
// expanded full-text query").
const prefixOperator = ":*"

// TextQuery describes one BM25-search invocation.
type TextQuery struct {
	Query        string
	CollectionID string
	TopK         int
}

// Search normalizes the query into a term list and runs a ranked
// full-text query, returning scores normalized to [0,1] within the
// response (spec §4.H).
func (s *BM25Searcher) Search(ctx context.Context, q TextQuery) ([]Result, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 30
	}

	terms := normalizeTerms(q.Query)
	if len(terms) == 0 {
		return nil, apperr.Validation("query contains no searchable terms", nil)
	}

	hits, err := s.store.FullTextQuery(ctx, q.CollectionID, strings.Join(terms, " & "), topK)
	if err != nil {
		return nil, err
	}

	// score = raw_rank / max(raw_rank over result set, 1), per spec §4.H —
	// ts_rank_cd values are normally well under 1, so the denominator is
	// only ever raised, never lowered, by the result set's own top score.
	var maxRank float64
	for _, h := range hits {
		if h.Similarity > maxRank {
			maxRank = h.Similarity
		}
	}
	if maxRank < 1 {
		maxRank = 1
	}

	out := make([]Result, 0, len(hits))
	for i, h := range hits {
		r := toResult(h, -1)
		r.VectorRank = -1
		r.BM25Rank = i
		r.BM25Score = h.Similarity / maxRank
		out = append(out, r)
	}
	return out, nil
}

// normalizeTerms sanitizes query into tsquery-safe, prefix-expanded,
// AND-combinable terms: each term comes back as "term:*" (spec §4.H).
func normalizeTerms(query string) []string {
	stripped := reservedOperators.ReplaceAllString(query, " ")
	fields := strings.Fields(stripped)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f+prefixOperator)
		}
	}
	return out
}
