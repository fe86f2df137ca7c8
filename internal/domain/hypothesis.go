package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxProbes caps how many probes a single hypothesis may consume
// before it is resolved by exhaustion.
const DefaultMaxProbes = 3

// Hypothesis is a tracked belief that an uncertain field equals a specific
// value. Created from a declaration's top candidates and mutated only through
// the confidence updater. Never deleted: a resolved hypothesis is the audit
// trail of how the belief settled.
type Hypothesis struct {
	ID                uuid.UUID   `json:"id"`
	UserID            uuid.UUID   `json:"user_id"`
	Field             string      `json:"field"`
	SuspectedValue    string      `json:"suspected_value"`
	Confidence        float32     `json:"confidence"`
	InitialConfidence float32     `json:"initial_confidence"`
	Threshold         float32     `json:"threshold"`
	Candidates        []string    `json:"candidates"`
	Evidence          []uuid.UUID `json:"evidence"`
	Contradictions    []uuid.UUID `json:"contradictions"`
	ProbesAttempted   int         `json:"probes_attempted"`
	MaxProbes         int         `json:"max_probes"`
	Resolved          bool        `json:"resolved"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Confirmed reports whether the hypothesis resolved by crossing its
// threshold, as opposed to exhausting its probe budget.
func (h *Hypothesis) Confirmed() bool {
	return h.Resolved && h.Confidence >= h.Threshold
}

// Exhausted reports whether the probe budget for this hypothesis is spent.
func (h *Hypothesis) Exhausted() bool {
	return h.ProbesAttempted >= h.MaxProbes
}

// ClampConfidence bounds a confidence value to [0,1].
func ClampConfidence(c float32) float32 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
