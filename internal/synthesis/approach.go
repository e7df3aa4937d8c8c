package synthesis

import (
	"time"

	"github.com/fabfab/ragcore/internal/search"
)

// buildApproach assembles topic/method/summary/sources for one cluster
// (spec §4.L step 4).
func buildApproach(query string, cluster []search.Result) Approach {
	topic := firstMetadataValue(cluster, "topic")
	if topic == "" && len(cluster) > 0 {
		topic = cluster[0].DocTitle
	}
	if topic == "" {
		topic = query
	}

	method := firstMetadataValue(cluster, "approach")
	if method == "" {
		method = firstMetadataValue(cluster, "method")
	}
	if method == "" && len(cluster) > 0 {
		method = cluster[0].DocTitle
	}
	if method == "" {
		method = topic
	}

	summary := buildSummary(cluster)

	sources := make([]Source, 0, len(cluster))
	for _, r := range cluster {
		url := ""
		if r.SourceURL != nil {
			url = *r.SourceURL
		}
		sources = append(sources, Source{
			Title:   r.DocTitle,
			URL:     url,
			Snippet: truncate(collapseWhitespace(r.Text), sourceSnippetChars),
		})
	}

	return Approach{Topic: topic, Method: method, Summary: summary, Sources: sources}
}

func firstMetadataValue(cluster []search.Result, key string) string {
	for _, r := range cluster {
		if v, ok := r.Metadata.String(key); ok && len(v) > 3 {
			return v
		}
	}
	return ""
}

func buildSummary(cluster []search.Result) string {
	var parts []string
	for i, r := range cluster {
		if i >= 2 {
			break
		}
		snippet := collapseWhitespace(r.Text)
		if snippet != "" {
			parts = append(parts, snippet)
		}
	}
	summary := truncate(joinSpace(parts), summaryChars)
	if summary == "" && len(cluster) > 0 {
		summary = truncate(collapseWhitespace(cluster[0].Text), summaryChars)
	}
	return summary
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

var trustWeightByQuality = map[string]float64{
	"official":  1.0,
	"verified":  0.85,
	"community": 0.6,
}

const defaultTrustWeight = 0.5

// consensusScore computes 0.4*quality + 0.4*similarity + 0.2*freshness,
// clamped to [0,1] (spec §4.L step 5).
func consensusScore(cluster []search.Result, vectors [][]float64, centroid []float64, now time.Time) float64 {
	if len(cluster) == 0 {
		return 0
	}

	var quality, similarity, freshness float64
	for i, r := range cluster {
		w := defaultTrustWeight
		if sq, ok := r.Metadata.SourceQualityOf(); ok {
			if v, ok := trustWeightByQuality[string(sq)]; ok {
				w = v
			}
		}
		quality += w

		sim := 0.7
		if len(centroid) > 0 {
			sim = clamp01(cosineSimilarity(vectors[i], centroid))
		}
		similarity += sim

		freshness += freshnessWeight(r, now)
	}

	n := float64(len(cluster))
	quality /= n
	similarity /= n
	freshness /= n

	score := 0.4*quality + 0.4*similarity + 0.2*freshness
	return clamp01(score)
}

func freshnessWeight(r search.Result, now time.Time) float64 {
	lv, ok := r.Metadata.LastVerified()
	if !ok {
		return 0.7
	}
	months := monthsBetween(now, lv)
	switch {
	case months <= 6:
		return 1.0
	case months <= 12:
		return 0.85
	case months <= 24:
		return 0.7
	default:
		return 0.5
	}
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

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// selectRecommended picks argmax(consensus - penalty(conflicts)) (spec §4.L
// step 7).
func selectRecommended(approaches []Approach, conflicts []Conflict) string {
	if len(approaches) == 0 {
		return ""
	}
	best := approaches[0]
	bestScore := scoreWithPenalty(best, conflicts)
	for _, a := range approaches[1:] {
		s := scoreWithPenalty(a, conflicts)
		if s > bestScore {
			best, bestScore = a, s
		}
	}
	return best.Topic
}

func scoreWithPenalty(a Approach, conflicts []Conflict) float64 {
	penalty := 0.0
	for _, c := range conflicts {
		if c.ApproachA != a.Topic && c.ApproachB != a.Topic {
			continue
		}
		switch c.Severity {
		case "high":
			penalty = maxFloat(penalty, 0.3)
		case "medium":
			penalty = maxFloat(penalty, 0.15)
		case "low":
			penalty = maxFloat(penalty, 0.05)
		}
	}
	return a.Consensus - penalty
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
