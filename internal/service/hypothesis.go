package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderealhq/genesis/internal/domain"
	"github.com/siderealhq/genesis/internal/store"
)

// HypothesisService materializes hypotheses from uncertainty declarations and
// answers lookups. One hypothesis per candidate above the materialization
// floor; the top candidate always gets one. Redeclaring a field reuses the
// open hypotheses instead of creating duplicates.
type HypothesisService struct {
	hypotheses domain.HypothesisStore
	logger     *zap.Logger
}

func NewHypothesisService(hs domain.HypothesisStore, logger *zap.Logger) *HypothesisService {
	return &HypothesisService{hypotheses: hs, logger: logger}
}

func (s *HypothesisService) Get(ctx context.Context, id uuid.UUID) (*domain.Hypothesis, error) {
	h, err := s.hypotheses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrHypothesisNotFound
		}
		return nil, err
	}
	return h, nil
}

// CreateFromDeclaration materializes hypotheses for a declaration. If the
// field already has open hypotheses for this user they are returned as-is:
// a hypothesis is never duplicated across redeclarations or sessions.
func (s *HypothesisService) CreateFromDeclaration(ctx context.Context, f *domain.UncertaintyField, maxProbes int) ([]domain.Hypothesis, error) {
	if !f.ValidDistribution() {
		return nil, ErrInvalidDistribution
	}

	existing, err := s.hypotheses.ListOpenByUserAndField(ctx, f.UserID, f.Field)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		s.logger.Debug("reusing open hypotheses",
			zap.String("field", f.Field),
			zap.String("user_id", f.UserID.String()),
			zap.Int("count", len(existing)))
		return existing, nil
	}

	if maxProbes <= 0 {
		maxProbes = domain.DefaultMaxProbes
	}

	ranked := f.RankedCandidates()
	var created []domain.Hypothesis
	for i, value := range ranked {
		prior := f.Candidates[value]
		if i > 0 && prior < domain.MaterializationFloor {
			continue
		}
		h := domain.Hypothesis{
			UserID:            f.UserID,
			Field:             f.Field,
			SuspectedValue:    value,
			Confidence:        prior,
			InitialConfidence: prior,
			Threshold:         f.Threshold(),
			Candidates:        ranked,
			Evidence:          []uuid.UUID{},
			Contradictions:    []uuid.UUID{},
			MaxProbes:         maxProbes,
		}
		if err := s.hypotheses.Create(ctx, &h); err != nil {
			return nil, err
		}
		created = append(created, h)
	}

	s.logger.Info("hypotheses materialized",
		zap.String("field", f.Field),
		zap.String("user_id", f.UserID.String()),
		zap.Int("count", len(created)))
	return created, nil
}

// ListOpen returns every unresolved hypothesis for a user.
func (s *HypothesisService) ListOpen(ctx context.Context, userID uuid.UUID) ([]domain.Hypothesis, error) {
	return s.hypotheses.ListOpenByUser(ctx, userID)
}

func (s *HypothesisService) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Hypothesis, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.hypotheses.ListByIDs(ctx, ids)
}
