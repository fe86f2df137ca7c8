package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderealhq/genesis/internal/domain"
)

// ConfidenceUpdater applies a user's answer to a probe against the probe's
// confidence mapping. Updates are all-or-nothing: the hypothesis passed in is
// only mutated after the store write succeeds, so a failed update can never
// leave a half-applied delta behind.
type ConfidenceUpdater struct {
	hypotheses domain.HypothesisStore
	logger     *zap.Logger
}

func NewConfidenceUpdater(hs domain.HypothesisStore, logger *zap.Logger) *ConfidenceUpdater {
	return &ConfidenceUpdater{hypotheses: hs, logger: logger}
}

// Apply looks up the delta map for the answer token, applies the suspected
// value's net delta, records the probe as evidence or contradiction, bumps the
// probe counter, and evaluates resolution. Only the suspected value's
// confidence is tracked as a scalar; deltas for other candidates influence
// nothing beyond the mapping itself.
func (u *ConfidenceUpdater) Apply(ctx context.Context, h *domain.Hypothesis, p *domain.ProbePacket, answer string) (*domain.Hypothesis, error) {
	deltas, ok := p.DeltasFor(answer)
	if !ok {
		return nil, ErrInvalidAnswer
	}

	updated := *h
	updated.Evidence = append([]uuid.UUID(nil), h.Evidence...)
	updated.Contradictions = append([]uuid.UUID(nil), h.Contradictions...)

	net := deltas[h.SuspectedValue]
	updated.Confidence = domain.ClampConfidence(h.Confidence + net)
	if net > 0 {
		updated.Evidence = append(updated.Evidence, p.ID)
	} else {
		updated.Contradictions = append(updated.Contradictions, p.ID)
	}
	updated.ProbesAttempted = h.ProbesAttempted + 1

	// Resolution is monotonic: once resolved, never un-resolved.
	if !updated.Resolved {
		updated.Resolved = updated.Confidence >= updated.Threshold || updated.ProbesAttempted >= updated.MaxProbes
	}

	if err := u.hypotheses.Update(ctx, &updated); err != nil {
		return nil, err
	}

	u.logger.Debug("confidence updated",
		zap.String("hypothesis_id", h.ID.String()),
		zap.String("field", h.Field),
		zap.String("answer", answer),
		zap.Float32("old_confidence", h.Confidence),
		zap.Float32("new_confidence", updated.Confidence),
		zap.Bool("resolved", updated.Resolved))

	*h = updated
	return h, nil
}
