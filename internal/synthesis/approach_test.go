package synthesis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fabfab/ragcore/internal/model"
	"github.com/fabfab/ragcore/internal/search"
)

func TestBuildApproach_PrefersTopicMetadataOverDocTitle(t *testing.T) {
	cluster := []search.Result{
		{DocTitle: "Doc A", Text: "some chunk text", Metadata: model.Metadata{"topic": "distributed consensus"}},
	}

	approach := buildApproach("query", cluster)

	assert.Equal(t, "distributed consensus", approach.Topic)
}

func TestBuildApproach_FallsBackToDocTitleThenQuery(t *testing.T) {
	withTitle := buildApproach("query", []search.Result{{DocTitle: "Doc A", Text: "x"}})
	assert.Equal(t, "Doc A", withTitle.Topic)

	withNeither := buildApproach("fallback query", []search.Result{})
	assert.Equal(t, "fallback query", withNeither.Topic)
}

func TestBuildApproach_CollectsSourcesFromEachResult(t *testing.T) {
	url1 := "https://example.com/a"
	cluster := []search.Result{
		{DocTitle: "Doc A", Text: "chunk one", SourceURL: &url1},
		{DocTitle: "Doc B", Text: "chunk two"},
	}

	approach := buildApproach("q", cluster)

	assert.Len(t, approach.Sources, 2)
	assert.Equal(t, "https://example.com/a", approach.Sources[0].URL)
	assert.Equal(t, "", approach.Sources[1].URL)
}

func TestConsensusScore_OfficialFreshHighSimilarityScoresHigh(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, -1, 0).Format("2006-01-02")
	cluster := []search.Result{
		{Metadata: model.Metadata{"source_quality": "official", "last_verified": recent}},
	}
	centroid := []float64{1, 0}
	vectors := [][]float64{{1, 0}}

	score := consensusScore(cluster, vectors, centroid, now)

	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestConsensusScore_CommunityStaleLowSimilarityScoresLow(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	stale := now.AddDate(-3, 0, 0).Format("2006-01-02")
	cluster := []search.Result{
		{Metadata: model.Metadata{"source_quality": "community", "last_verified": stale}},
	}
	centroid := []float64{1, 0}
	vectors := [][]float64{{0, 1}}

	score := consensusScore(cluster, vectors, centroid, now)

	assert.Less(t, score, 0.5)
}

func TestConsensusScore_EmptyClusterScoresZero(t *testing.T) {
	score := consensusScore(nil, nil, nil, time.Now())
	assert.Equal(t, 0.0, score)
}

func TestFreshnessWeight_MissingLastVerifiedDefaultsToMidTier(t *testing.T) {
	r := search.Result{Metadata: model.Metadata{}}
	w := freshnessWeight(r, time.Now())
	assert.Equal(t, 0.7, w)
}

func TestSelectRecommended_PicksHighestConsensusMinusPenalty(t *testing.T) {
	approaches := []Approach{
		{Topic: "a", Consensus: 0.9},
		{Topic: "b", Consensus: 0.8},
	}
	conflicts := []Conflict{{ApproachA: "a", ApproachB: "b", Severity: "high"}}

	// a: 0.9 - 0.3 = 0.6, b: 0.8 - 0.3 = 0.5 -> a still wins
	recommended := selectRecommended(approaches, conflicts)

	assert.Equal(t, "a", recommended)
}

func TestSelectRecommended_PenaltyCanFlipWinner(t *testing.T) {
	approaches := []Approach{
		{Topic: "a", Consensus: 0.7},
		{Topic: "b", Consensus: 0.65},
	}
	conflicts := []Conflict{{ApproachA: "a", ApproachB: "b", Severity: "high"}}

	// a: 0.7 - 0.3 = 0.4, b: 0.65 - 0.3 = 0.35 -> a still wins since both penalized equally
	// use an asymmetric conflict instead: only a is penalized
	conflicts = []Conflict{{ApproachA: "a", ApproachB: "nonexistent", Severity: "high"}}

	recommended := selectRecommended(approaches, conflicts)

	assert.Equal(t, "b", recommended)
}

func TestSelectRecommended_EmptyApproachesReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", selectRecommended(nil, nil))
}

func TestMonthsBetween_HandlesDayOfMonthRollback(t *testing.T) {
	now := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	then := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 5, monthsBetween(now, then))
}
