package domain

import (
	"context"

	"github.com/google/uuid"
)

// DeclarationStore holds uncertainty declarations. Upsert replaces the prior
// snapshot for the same user+field.
type DeclarationStore interface {
	Upsert(ctx context.Context, f *UncertaintyField) error
	GetByUserAndField(ctx context.Context, userID uuid.UUID, field string) (*UncertaintyField, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]UncertaintyField, error)
}

// HypothesisStore persists hypotheses. Hypotheses are never deleted; resolved
// rows remain as the audit trail.
type HypothesisStore interface {
	Create(ctx context.Context, h *Hypothesis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hypothesis, error)
	ListOpenByUserAndField(ctx context.Context, userID uuid.UUID, field string) ([]Hypothesis, error)
	ListOpenByUser(ctx context.Context, userID uuid.UUID) ([]Hypothesis, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Hypothesis, error)
	Update(ctx context.Context, h *Hypothesis) error
}

// SessionStore persists sessions. The mutual-exclusion requirement for
// concurrent mutation of one session is enforced above this interface by the
// session manager, not by implementations.
type SessionStore interface {
	Create(ctx context.Context, s *GenesisSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*GenesisSession, error)
	GetOpenByUser(ctx context.Context, userID uuid.UUID) (*GenesisSession, error)
	Update(ctx context.Context, s *GenesisSession) error
}

// ProbeStore persists issued probe packets so an answer can be replayed
// against the exact mapping that was issued.
type ProbeStore interface {
	Create(ctx context.Context, p *ProbePacket) error
	GetByID(ctx context.Context, id uuid.UUID) (*ProbePacket, error)
	GetLatestOpenBySession(ctx context.Context, sessionID uuid.UUID) (*ProbePacket, error)
	MarkConsumed(ctx context.Context, id uuid.UUID) error
}

// QuestionRequest carries everything the text-generation backend may see.
// The underlying field name is deliberately absent: the backend must phrase
// the probe without knowing what it is resolving.
type QuestionRequest struct {
	SuspectedValue string    `json:"suspected_value"`
	Candidates     []string  `json:"candidates"`
	ProbeType      ProbeType `json:"probe_type"`
	Options        []string  `json:"options,omitempty"`
	Tone           string    `json:"tone,omitempty"`
}

// GeneratedQuestion is the untrusted output of the text-generation backend.
// It is validated against the issuing strategy before use.
type GeneratedQuestion struct {
	Question string                        `json:"question"`
	Options  []string                      `json:"options,omitempty"`
	Mappings map[string]map[string]float32 `json:"confidence_mappings"`
}

// QuestionClient is the pluggable text-generation capability. Implementations
// are treated as unreliable: any error or contract violation falls back to the
// strategy's static template.
type QuestionClient interface {
	GenerateQuestion(ctx context.Context, req QuestionRequest) (*GeneratedQuestion, error)
}
