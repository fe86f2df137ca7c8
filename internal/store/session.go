package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siderealhq/genesis/internal/domain"
)

type SessionStore struct {
	db *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, user_id, state, total_probes_sent, max_probes_per_session,
	max_probes_per_field, fields_probed, fields_confirmed, open_hypothesis_ids, hypothesis_ids, created_at, updated_at`

func (s *SessionStore) Create(ctx context.Context, sess *domain.GenesisSession) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO genesis_sessions (user_id, state, total_probes_sent, max_probes_per_session,
		                               max_probes_per_field, fields_probed, fields_confirmed, open_hypothesis_ids, hypothesis_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		sess.UserID, sess.State, sess.TotalProbesSent, sess.MaxProbesPerSession,
		sess.MaxProbesPerField, sess.FieldsProbed, sess.FieldsConfirmed, sess.OpenHypothesisIDs, sess.HypothesisIDs,
	).Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt)
}

func scanSession(row pgx.Row) (*domain.GenesisSession, error) {
	var sess domain.GenesisSession
	err := row.Scan(&sess.ID, &sess.UserID, &sess.State, &sess.TotalProbesSent, &sess.MaxProbesPerSession,
		&sess.MaxProbesPerField, &sess.FieldsProbed, &sess.FieldsConfirmed, &sess.OpenHypothesisIDs,
		&sess.HypothesisIDs, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenesisSession, error) {
	return scanSession(s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM genesis_sessions WHERE id = $1`, id))
}

// GetOpenByUser returns the most recent non-complete session for a user.
func (s *SessionStore) GetOpenByUser(ctx context.Context, userID uuid.UUID) (*domain.GenesisSession, error) {
	return scanSession(s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM genesis_sessions
		 WHERE user_id = $1 AND state != 'complete'
		 ORDER BY created_at DESC
		 LIMIT 1`, userID))
}

// Update persists the session and scans back the database-assigned
// updated_at so the in-memory copy never drifts from the row.
func (s *SessionStore) Update(ctx context.Context, sess *domain.GenesisSession) error {
	err := s.db.QueryRow(ctx,
		`UPDATE genesis_sessions
		 SET state = $2, total_probes_sent = $3, fields_probed = $4,
		     fields_confirmed = $5, open_hypothesis_ids = $6, hypothesis_ids = $7, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		sess.ID, sess.State, sess.TotalProbesSent, sess.FieldsProbed,
		sess.FieldsConfirmed, sess.OpenHypothesisIDs, sess.HypothesisIDs,
	).Scan(&sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
