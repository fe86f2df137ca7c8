package service

import (
	"math"
	"sort"

	"github.com/siderealhq/genesis/internal/domain"
)

const (
	coreFieldBoost      = 0.1
	evidenceBonusWeight = 0.1
)

// DefaultCoreFields are the fields whose resolution unlocks the most
// downstream recomputation.
var DefaultCoreFields = map[string]bool{
	"rising_sign": true,
	"moon_sign":   true,
	"birth_hour":  true,
}

// PriorityScore computes how informative probing a hypothesis is right now.
// Closeness peaks as confidence approaches the threshold from either side:
// a hypothesis on the verge of resolution outranks one far from it. The
// evidence bonus diminishes once contradictions accumulate. Resolved
// hypotheses score zero.
func PriorityScore(h *domain.Hypothesis, coreFields map[string]bool) float64 {
	if h.Resolved {
		return 0
	}
	closeness := 1 - math.Abs(float64(h.Threshold)-float64(h.Confidence))
	score := closeness
	if coreFields[h.Field] {
		score += coreFieldBoost
	}
	score += evidenceBonusWeight * float64(len(h.Evidence)) / float64(len(h.Contradictions)+1)
	return score
}

// Rank orders open hypotheses by descending priority score. Resolved entries
// are excluded. Ties break toward the least-probed hypothesis, then by field
// identifier, so identical inputs always produce identical output.
func Rank(open []domain.Hypothesis, coreFields map[string]bool) []domain.Hypothesis {
	ranked := make([]domain.Hypothesis, 0, len(open))
	for _, h := range open {
		if !h.Resolved {
			ranked = append(ranked, h)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := PriorityScore(&ranked[i], coreFields), PriorityScore(&ranked[j], coreFields)
		if si != sj {
			return si > sj
		}
		if ranked[i].ProbesAttempted != ranked[j].ProbesAttempted {
			return ranked[i].ProbesAttempted < ranked[j].ProbesAttempted
		}
		return ranked[i].Field < ranked[j].Field
	})
	return ranked
}
