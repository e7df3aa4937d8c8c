package search

import (
	"sort"
	"time"
)

var trustWeights = map[string]float64{
	"official":  1.0,
	"verified":  0.85,
	"community": 0.6,
}

const defaultTrustWeight = 0.5

// Rescorer is component J: trust/recency multiplicative rescoring.
type Rescorer struct {
	now func() time.Time
}

// NewRescorer builds a Rescorer. now is injectable for deterministic tests;
// nil uses time.Now.
func NewRescorer(now func() time.Time) *Rescorer {
	if now == nil {
		now = time.Now
	}
	return &Rescorer{now: now}
}

// Rescore multiplies each result's similarity (and fused_score, if present)
// by trust and recency weights, then re-sorts descending by the rescored
// similarity (spec §4.J).
func (r *Rescorer) Rescore(results []Result) []Result {
	out := make([]Result, len(results))
	for i, res := range results {
		trust := defaultTrustWeight
		if sq, ok := res.Metadata.SourceQualityOf(); ok {
			if w, ok := trustWeights[string(sq)]; ok {
				trust = w
			}
		}

		recency := 0.7
		if lv, ok := res.Metadata.LastVerified(); ok {
			months := monthsBetween(r.now(), lv)
			switch {
			case months < 6:
				recency = 1.0
			case months < 12:
				recency = 0.9
			default:
				recency = 0.7
			}
		}

		if res.BaseSimilarity == 0 {
			res.BaseSimilarity = res.Similarity
		}
		res.TrustWeight = trust
		res.RecencyWeight = recency
		res.Similarity = res.Similarity * trust * recency
		if res.FusedScore > 0 {
			res.FusedScore = res.FusedScore * trust * recency
		}
		out[i] = res
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

func monthsBetween(now, then time.Time) int {
	years := now.Year() - then.Year()
	months := int(now.Month()) - int(then.Month())
	total := years*12 + months
	if now.Day() < then.Day() {
		total--
	}
	if total < 0 {
		total = 0
	}
	return total
}
