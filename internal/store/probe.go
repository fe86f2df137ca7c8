package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siderealhq/genesis/internal/domain"
)

type ProbeStore struct {
	db *pgxpool.Pool
}

func NewProbeStore(db *pgxpool.Pool) *ProbeStore {
	return &ProbeStore{db: db}
}

func (s *ProbeStore) Create(ctx context.Context, p *domain.ProbePacket) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO probe_packets (session_id, hypothesis_id, probe_type, question, options,
		                            strategy_used, confidence_mappings, fallback, consumed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		 RETURNING id, issued_at`,
		p.SessionID, p.HypothesisID, p.Type, p.Question, p.Options,
		p.StrategyUsed, p.Mappings, p.Fallback,
	).Scan(&p.ID, &p.IssuedAt)
}

func (s *ProbeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProbePacket, error) {
	var p domain.ProbePacket
	err := s.db.QueryRow(ctx,
		`SELECT id, session_id, hypothesis_id, probe_type, question, options,
		        strategy_used, confidence_mappings, fallback, consumed, issued_at
		 FROM probe_packets WHERE id = $1`, id,
	).Scan(&p.ID, &p.SessionID, &p.HypothesisID, &p.Type, &p.Question, &p.Options,
		&p.StrategyUsed, &p.Mappings, &p.Fallback, &p.Consumed, &p.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetLatestOpenBySession returns the most recently issued unconsumed packet
// for a session, i.e. the question the user is currently being asked.
func (s *ProbeStore) GetLatestOpenBySession(ctx context.Context, sessionID uuid.UUID) (*domain.ProbePacket, error) {
	var p domain.ProbePacket
	err := s.db.QueryRow(ctx,
		`SELECT id, session_id, hypothesis_id, probe_type, question, options,
		        strategy_used, confidence_mappings, fallback, consumed, issued_at
		 FROM probe_packets
		 WHERE session_id = $1 AND consumed = FALSE
		 ORDER BY issued_at DESC
		 LIMIT 1`, sessionID,
	).Scan(&p.ID, &p.SessionID, &p.HypothesisID, &p.Type, &p.Question, &p.Options,
		&p.StrategyUsed, &p.Mappings, &p.Fallback, &p.Consumed, &p.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MarkConsumed flips the consumed flag; it refuses to consume twice so an
// answer can never be applied against the same packet more than once.
func (s *ProbeStore) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE probe_packets SET consumed = TRUE WHERE id = $1 AND consumed = FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
