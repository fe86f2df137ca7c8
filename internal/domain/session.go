package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	SessionActive   SessionState = "active"
	SessionPaused   SessionState = "paused"
	SessionComplete SessionState = "complete"
)

func ValidSessionState(s string) bool {
	switch SessionState(s) {
	case SessionActive, SessionPaused, SessionComplete:
		return true
	}
	return false
}

// DefaultMaxProbesPerSession caps the total probes sent over one session.
const DefaultMaxProbesPerSession = 10

// GenesisSession is one bounded conversational engagement with a user,
// owned exclusively by the session manager. complete is terminal.
type GenesisSession struct {
	ID                  uuid.UUID      `json:"session_id"`
	UserID              uuid.UUID      `json:"user_id"`
	State               SessionState   `json:"state"`
	TotalProbesSent     int            `json:"total_probes_sent"`
	MaxProbesPerSession int            `json:"max_probes_per_session"`
	MaxProbesPerField   int            `json:"max_probes_per_field"`
	FieldsProbed        map[string]int `json:"fields_probed"`
	FieldsConfirmed     []string       `json:"fields_confirmed"`
	OpenHypothesisIDs   []uuid.UUID    `json:"open_hypothesis_ids"`
	HypothesisIDs       []uuid.UUID    `json:"hypothesis_ids"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Clone returns a deep copy. The session manager hands clones to callers and
// keeps clones in its cache so no two holders ever alias the same maps or
// slices.
func (s *GenesisSession) Clone() *GenesisSession {
	cp := *s
	cp.FieldsProbed = make(map[string]int, len(s.FieldsProbed))
	for k, v := range s.FieldsProbed {
		cp.FieldsProbed[k] = v
	}
	cp.FieldsConfirmed = append([]string(nil), s.FieldsConfirmed...)
	cp.OpenHypothesisIDs = append([]uuid.UUID(nil), s.OpenHypothesisIDs...)
	cp.HypothesisIDs = append([]uuid.UUID(nil), s.HypothesisIDs...)
	return &cp
}

// ShouldContinue reports whether the session may issue another probe.
func (s *GenesisSession) ShouldContinue() bool {
	return s.State == SessionActive &&
		s.TotalProbesSent < s.MaxProbesPerSession &&
		len(s.OpenHypothesisIDs) > 0
}

// RemoveOpenHypothesis drops a hypothesis from the open set, preserving order.
func (s *GenesisSession) RemoveOpenHypothesis(id uuid.UUID) {
	for i, open := range s.OpenHypothesisIDs {
		if open == id {
			s.OpenHypothesisIDs = append(s.OpenHypothesisIDs[:i], s.OpenHypothesisIDs[i+1:]...)
			return
		}
	}
}

// HasOpenHypothesis reports whether the id is still in the open set.
func (s *GenesisSession) HasOpenHypothesis(id uuid.UUID) bool {
	for _, open := range s.OpenHypothesisIDs {
		if open == id {
			return true
		}
	}
	return false
}
