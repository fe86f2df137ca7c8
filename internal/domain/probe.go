package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProbeType string

const (
	ProbeBinaryChoice ProbeType = "binary_choice"
	ProbeSlider       ProbeType = "slider"
	ProbeReflection   ProbeType = "reflection"
	ProbeConfirmation ProbeType = "confirmation"
)

func ValidProbeType(t string) bool {
	switch ProbeType(t) {
	case ProbeBinaryChoice, ProbeSlider, ProbeReflection, ProbeConfirmation:
		return true
	}
	return false
}

// ProbePacket is one conversational question issued against a hypothesis.
// Immutable once issued and consumed exactly once by the confidence updater.
// Mappings maps each acceptable answer token to per-candidate confidence
// deltas.
type ProbePacket struct {
	ID           uuid.UUID                     `json:"id"`
	SessionID    uuid.UUID                     `json:"session_id"`
	HypothesisID uuid.UUID                     `json:"hypothesis_id"`
	Type         ProbeType                     `json:"probe_type"`
	Question     string                        `json:"question"`
	Options      []string                      `json:"options,omitempty"`
	StrategyUsed string                        `json:"strategy_used"`
	Mappings     map[string]map[string]float32 `json:"confidence_mappings"`
	Fallback     bool                          `json:"fallback"`
	Consumed     bool                          `json:"consumed"`
	IssuedAt     time.Time                     `json:"issued_at"`
}

// DeltasFor returns the per-candidate delta map for an answer token.
func (p *ProbePacket) DeltasFor(answer string) (map[string]float32, bool) {
	deltas, ok := p.Mappings[answer]
	return deltas, ok
}
