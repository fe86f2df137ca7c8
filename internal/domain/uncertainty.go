package domain

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultConfidenceThreshold is the probability above which a candidate
	// counts as confirmed when the declaring module does not set one.
	DefaultConfidenceThreshold float32 = 0.80

	// MaterializationFloor is the minimum prior a candidate needs to get its
	// own hypothesis. The top candidate is always materialized regardless.
	MaterializationFloor float32 = 0.05

	// ProbabilityTolerance bounds the allowed drift of a candidate
	// distribution away from summing to 1.0.
	ProbabilityTolerance = 0.01
)

// UncertaintyField is a calculation module's declaration that one of its
// output fields cannot be determined with certainty. Immutable once declared;
// redeclaring the same user+field replaces the prior snapshot.
type UncertaintyField struct {
	ID                  uuid.UUID          `json:"id"`
	UserID              uuid.UUID          `json:"user_id"`
	Module              string             `json:"module"`
	Field               string             `json:"field"`
	Candidates          map[string]float32 `json:"candidates"`
	ConfidenceThreshold float32            `json:"confidence_threshold"`
	Strategies          []string           `json:"refinement_strategies,omitempty"`
	DeclaredAt          time.Time          `json:"declared_at"`
}

// ValidDistribution reports whether the candidate priors sum to 1.0 within
// tolerance and every prior is a sane probability.
func (f *UncertaintyField) ValidDistribution() bool {
	if len(f.Candidates) == 0 {
		return false
	}
	var sum float64
	for _, p := range f.Candidates {
		if p < 0 || p > 1 || math.IsNaN(float64(p)) {
			return false
		}
		sum += float64(p)
	}
	return math.Abs(sum-1.0) <= ProbabilityTolerance
}

// RankedCandidates returns candidate values ordered by descending prior,
// ties broken alphabetically for determinism.
func (f *UncertaintyField) RankedCandidates() []string {
	values := make([]string, 0, len(f.Candidates))
	for v := range f.Candidates {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		pi, pj := f.Candidates[values[i]], f.Candidates[values[j]]
		if pi != pj {
			return pi > pj
		}
		return values[i] < values[j]
	})
	return values
}

// Threshold returns the declared confidence threshold, or the default when
// the declaring module left it unset.
func (f *UncertaintyField) Threshold() float32 {
	if f.ConfidenceThreshold > 0 && f.ConfidenceThreshold <= 1 {
		return f.ConfidenceThreshold
	}
	return DefaultConfidenceThreshold
}
