package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siderealhq/genesis/internal/domain"
)

type HypothesisStore struct {
	db *pgxpool.Pool
}

func NewHypothesisStore(db *pgxpool.Pool) *HypothesisStore {
	return &HypothesisStore{db: db}
}

const hypothesisColumns = `id, user_id, field, suspected_value, confidence, initial_confidence,
	threshold, candidates, evidence, contradictions, probes_attempted, max_probes, resolved,
	created_at, updated_at`

func (s *HypothesisStore) Create(ctx context.Context, h *domain.Hypothesis) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO hypotheses (user_id, field, suspected_value, confidence, initial_confidence,
		                         threshold, candidates, evidence, contradictions, probes_attempted, max_probes, resolved)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		h.UserID, h.Field, h.SuspectedValue, h.Confidence, h.InitialConfidence,
		h.Threshold, h.Candidates, h.Evidence, h.Contradictions, h.ProbesAttempted, h.MaxProbes, h.Resolved,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
}

func scanHypothesis(row pgx.Row) (*domain.Hypothesis, error) {
	var h domain.Hypothesis
	err := row.Scan(&h.ID, &h.UserID, &h.Field, &h.SuspectedValue, &h.Confidence, &h.InitialConfidence,
		&h.Threshold, &h.Candidates, &h.Evidence, &h.Contradictions, &h.ProbesAttempted, &h.MaxProbes, &h.Resolved,
		&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (s *HypothesisStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Hypothesis, error) {
	return scanHypothesis(s.db.QueryRow(ctx,
		`SELECT `+hypothesisColumns+` FROM hypotheses WHERE id = $1`, id))
}

func (s *HypothesisStore) ListOpenByUserAndField(ctx context.Context, userID uuid.UUID, field string) ([]domain.Hypothesis, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+hypothesisColumns+` FROM hypotheses
		 WHERE user_id = $1 AND field = $2 AND resolved = FALSE
		 ORDER BY initial_confidence DESC, created_at ASC`,
		userID, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHypotheses(rows)
}

func (s *HypothesisStore) ListOpenByUser(ctx context.Context, userID uuid.UUID) ([]domain.Hypothesis, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+hypothesisColumns+` FROM hypotheses
		 WHERE user_id = $1 AND resolved = FALSE
		 ORDER BY initial_confidence DESC, created_at ASC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHypotheses(rows)
}

func (s *HypothesisStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Hypothesis, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+hypothesisColumns+` FROM hypotheses WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHypotheses(rows)
}

func collectHypotheses(rows pgx.Rows) ([]domain.Hypothesis, error) {
	var hs []domain.Hypothesis
	for rows.Next() {
		h, err := scanHypothesis(rows)
		if err != nil {
			return nil, err
		}
		hs = append(hs, *h)
	}
	return hs, rows.Err()
}

func (s *HypothesisStore) Update(ctx context.Context, h *domain.Hypothesis) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE hypotheses
		 SET confidence = $2, evidence = $3, contradictions = $4,
		     probes_attempted = $5, resolved = $6, updated_at = NOW()
		 WHERE id = $1`,
		h.ID, h.Confidence, h.Evidence, h.Contradictions, h.ProbesAttempted, h.Resolved,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
