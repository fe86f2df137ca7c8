package domain

import (
	"time"

	"github.com/google/uuid"
)

type FieldOutcome string

const (
	OutcomeConfirmed            FieldOutcome = "confirmed"
	OutcomeInsufficientEvidence FieldOutcome = "insufficient_evidence"
)

// FieldResult is the terminal verdict for one probed field.
type FieldResult struct {
	Field      string       `json:"field"`
	Value      string       `json:"value"`
	Confidence float32      `json:"confidence"`
	Outcome    FieldOutcome `json:"outcome"`
	ProbesUsed int          `json:"probes_used"`
}

// GenesisSummary is emitted once a session completes. Downstream calculation
// modules substitute confirmed values for their probability distributions and
// recompute; unresolved fields are reported, never silently dropped.
type GenesisSummary struct {
	SessionID       uuid.UUID     `json:"session_id"`
	UserID          uuid.UUID     `json:"user_id"`
	Confirmed       []FieldResult `json:"confirmed"`
	Unresolved      []FieldResult `json:"unresolved"`
	TotalProbesSent int           `json:"total_probes_sent"`
	CompletedAt     time.Time     `json:"completed_at"`
}

type EventType string

const (
	EventProbeIssued        EventType = "probe_issued"
	EventHypothesisResolved EventType = "hypothesis_resolved"
	EventFieldConfirmed     EventType = "field_confirmed"
	EventSessionCompleted   EventType = "session_completed"
)

// Event is an outbound side effect recorded by a session manager operation.
// The caller dispatches events onto whatever bus it owns; the engine itself
// never publishes.
type Event struct {
	Type       EventType      `json:"type"`
	SessionID  uuid.UUID      `json:"session_id"`
	UserID     uuid.UUID      `json:"user_id"`
	Field      string         `json:"field,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
