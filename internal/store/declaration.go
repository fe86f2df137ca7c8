package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siderealhq/genesis/internal/domain"
)

type DeclarationStore struct {
	db *pgxpool.Pool
}

func NewDeclarationStore(db *pgxpool.Pool) *DeclarationStore {
	return &DeclarationStore{db: db}
}

func (s *DeclarationStore) Upsert(ctx context.Context, f *domain.UncertaintyField) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO uncertainty_declarations (user_id, module, field, candidates, confidence_threshold, strategies)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, field) DO UPDATE
		 SET module = EXCLUDED.module,
		     candidates = EXCLUDED.candidates,
		     confidence_threshold = EXCLUDED.confidence_threshold,
		     strategies = EXCLUDED.strategies,
		     declared_at = NOW()
		 RETURNING id, declared_at`,
		f.UserID, f.Module, f.Field, f.Candidates, f.ConfidenceThreshold, f.Strategies,
	).Scan(&f.ID, &f.DeclaredAt)
}

func (s *DeclarationStore) GetByUserAndField(ctx context.Context, userID uuid.UUID, field string) (*domain.UncertaintyField, error) {
	var f domain.UncertaintyField
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, module, field, candidates, confidence_threshold, strategies, declared_at
		 FROM uncertainty_declarations WHERE user_id = $1 AND field = $2`,
		userID, field,
	).Scan(&f.ID, &f.UserID, &f.Module, &f.Field, &f.Candidates, &f.ConfidenceThreshold, &f.Strategies, &f.DeclaredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *DeclarationStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.UncertaintyField, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, module, field, candidates, confidence_threshold, strategies, declared_at
		 FROM uncertainty_declarations WHERE user_id = $1
		 ORDER BY declared_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []domain.UncertaintyField
	for rows.Next() {
		var f domain.UncertaintyField
		if err := rows.Scan(&f.ID, &f.UserID, &f.Module, &f.Field, &f.Candidates, &f.ConfidenceThreshold, &f.Strategies, &f.DeclaredAt); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
