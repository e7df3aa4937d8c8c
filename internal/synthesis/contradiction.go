package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenSet(s string) map[string]struct{} {
	tokens := tokenPattern.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// jaccard returns the lexical overlap of two token sets over lowercased
// alphanumeric tokens (spec §4.L "Contradiction detector").
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var intersection int
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

type candidatePair struct {
	i, j    int
	overlap float64
	rank    float64
}

// detectContradictions ranks approach pairs by overlap + |consensus diff|,
// keeps pairs within [min_overlap, max_overlap], takes the top max_pairs,
// and asks the LLM to judge each one (spec §4.L "Contradiction detector").
func (e *Engine) detectContradictions(ctx context.Context, approaches []Approach, opts Options) []Conflict {
	if len(approaches) < 2 {
		return nil
	}

	tokens := make([]map[string]struct{}, len(approaches))
	for i, a := range approaches {
		tokens[i] = tokenSet(a.Summary)
	}

	var candidates []candidatePair
	for i := 0; i < len(approaches); i++ {
		for j := i + 1; j < len(approaches); j++ {
			overlap := jaccard(tokens[i], tokens[j])
			if overlap < opts.MinOverlap || overlap > opts.MaxOverlap {
				continue
			}
			rank := overlap + math.Abs(approaches[i].Consensus-approaches[j].Consensus)
			candidates = append(candidates, candidatePair{i: i, j: j, overlap: overlap, rank: rank})
		}
	}

	sort.Slice(candidates, func(a, b int) bool { return candidates[a].rank > candidates[b].rank })
	if len(candidates) > opts.MaxPairs {
		candidates = candidates[:opts.MaxPairs]
	}

	conflicts := make([]Conflict, 0, len(candidates))
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return conflicts
		default:
		}

		a, b := approaches[c.i], approaches[c.j]
		conflict, ok := e.judgeContradiction(ctx, a, b)
		if ok {
			conflicts = append(conflicts, conflict)
		}
	}
	return conflicts
}

const contradictionSystemPrompt = `You compare two research approaches and judge whether they contradict each other.
Respond with a single JSON object and nothing else, in this exact shape:
{"contradiction": true|false, "severity": "high"|"medium"|"low", "confidence": 0.0-1.0, "explanation": "..."}`

func (e *Engine) judgeContradiction(ctx context.Context, a, b Approach) (Conflict, bool) {
	prompt := fmt.Sprintf(
		"Approach A — method: %s; topic: %s; summary: %s\n\nApproach B — method: %s; topic: %s; summary: %s\n\nDo these approaches contradict each other?",
		a.Method, a.Topic, a.Summary, b.Method, b.Topic, b.Summary,
	)

	reply, err := e.llm.Complete(ctx, contradictionSystemPrompt, prompt)
	if err != nil {
		e.log.Warn("contradiction detection LLM call failed", zap.Error(err))
		return Conflict{}, false
	}

	parsed, ok := parseContradictionJSON(reply)
	if !ok || !parsed.Contradiction {
		return Conflict{}, false
	}

	severity := normalizeSeverity(parsed.Severity)
	confidence := parsed.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	confidence = clamp01(confidence)

	return Conflict{
		ApproachA:   a.Topic,
		ApproachB:   b.Topic,
		Severity:    severity,
		Confidence:  confidence,
		Explanation: parsed.Explanation,
	}, true
}

type contradictionJSON struct {
	Contradiction bool    `json:"contradiction"`
	Severity      string  `json:"severity"`
	Confidence    float64 `json:"confidence"`
	Explanation   string  `json:"explanation"`
}

// parseContradictionJSON parses the span of text from the first "{" to the
// last "}", tolerating surrounding prose the model may add despite
// instructions. A reply holding more than one JSON object does not parse.
func parseContradictionJSON(text string) (contradictionJSON, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return contradictionJSON{}, false
	}
	var out contradictionJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return contradictionJSON{}, false
	}
	return out, true
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}
