package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/siderealhq/genesis/internal/domain"
	"github.com/siderealhq/genesis/internal/store"
)

// ProbeIssue is the outcome of NextProbe: the packet to present plus the
// side effects the caller should dispatch. On exhaustion Packet is nil and
// Events carries the completion.
type ProbeIssue struct {
	Packet  *domain.ProbePacket
	Session *domain.GenesisSession
	Events  []domain.Event
}

// AnswerResult is the outcome of ProcessResponse. Summary is non-nil only
// when the answer completed the session.
type AnswerResult struct {
	Hypothesis *domain.Hypothesis
	Session    *domain.GenesisSession
	Summary    *domain.GenesisSummary
	Events     []domain.Event
}

// SessionManager orchestrates one conversation end to end: start, next
// probe, answer, pause/resume, completion. All mutations of a given session
// are serialized behind a per-session mutex held for the whole operation and
// released on every exit path. Sessions for different users are fully
// independent.
type SessionManager struct {
	sessions     domain.SessionStore
	probes       domain.ProbeStore
	declarations domain.DeclarationStore
	hypotheses   *HypothesisService
	updater      *ConfidenceUpdater
	registry     *StrategyRegistry
	generator    *ProbeGenerator
	logger       *zap.Logger

	coreFields          map[string]bool
	maxProbesPerSession int
	maxProbesPerField   int

	cache *lru.Cache[uuid.UUID, *domain.GenesisSession]

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewSessionManager(
	sessions domain.SessionStore,
	probes domain.ProbeStore,
	declarations domain.DeclarationStore,
	hypotheses *HypothesisService,
	updater *ConfidenceUpdater,
	registry *StrategyRegistry,
	generator *ProbeGenerator,
	cacheSize int,
	logger *zap.Logger,
) *SessionManager {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, _ := lru.New[uuid.UUID, *domain.GenesisSession](cacheSize)
	return &SessionManager{
		sessions:            sessions,
		probes:              probes,
		declarations:        declarations,
		hypotheses:          hypotheses,
		updater:             updater,
		registry:            registry,
		generator:           generator,
		logger:              logger,
		coreFields:          DefaultCoreFields,
		maxProbesPerSession: domain.DefaultMaxProbesPerSession,
		maxProbesPerField:   domain.DefaultMaxProbes,
		cache:               cache,
		locks:               make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetBudgets overrides the default probe budgets for new sessions.
func (m *SessionManager) SetBudgets(perSession, perField int) {
	if perSession > 0 {
		m.maxProbesPerSession = perSession
	}
	if perField > 0 {
		m.maxProbesPerField = perField
	}
}

// SetCoreFields overrides the designated core field set.
func (m *SessionManager) SetCoreFields(fields map[string]bool) {
	if fields != nil {
		m.coreFields = fields
	}
}

func (m *SessionManager) lock(sessionID uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	return l
}

// loadSession returns a session copy owned exclusively by the caller. The
// cache only ever holds its own clone, so an operation mutating the loaded
// session can never be observed through a previously returned one.
func (m *SessionManager) loadSession(ctx context.Context, id uuid.UUID) (*domain.GenesisSession, error) {
	if sess, ok := m.cache.Get(id); ok {
		return sess.Clone(), nil
	}
	sess, err := m.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	m.cache.Add(id, sess.Clone())
	return sess, nil
}

// GetSession returns the current view of a session.
func (m *SessionManager) GetSession(ctx context.Context, id uuid.UUID) (*domain.GenesisSession, error) {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()
	return m.loadSession(ctx, id)
}

func (m *SessionManager) saveSession(ctx context.Context, sess *domain.GenesisSession) error {
	if err := m.sessions.Update(ctx, sess); err != nil {
		m.cache.Remove(sess.ID)
		return err
	}
	m.cache.Add(sess.ID, sess.Clone())
	return nil
}

// Declare records an uncertainty declaration and materializes (or reuses)
// its hypotheses. If the user already has an open session, new hypotheses
// join its open set so the running conversation picks them up.
func (m *SessionManager) Declare(ctx context.Context, f *domain.UncertaintyField) ([]domain.Hypothesis, error) {
	if !f.ValidDistribution() {
		return nil, ErrInvalidDistribution
	}
	if err := m.declarations.Upsert(ctx, f); err != nil {
		return nil, err
	}

	hyps, err := m.hypotheses.CreateFromDeclaration(ctx, f, m.maxProbesPerField)
	if err != nil {
		return nil, err
	}

	sess, err := m.sessions.GetOpenByUser(ctx, f.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return hyps, nil
		}
		return nil, err
	}

	l := m.lock(sess.ID)
	l.Lock()
	defer l.Unlock()

	// Reload under the lock; the cached copy may be stale.
	sess, err = m.loadSession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	changed := false
	for _, h := range hyps {
		if h.Resolved || sess.HasOpenHypothesis(h.ID) {
			continue
		}
		sess.OpenHypothesisIDs = append(sess.OpenHypothesisIDs, h.ID)
		sess.HypothesisIDs = append(sess.HypothesisIDs, h.ID)
		changed = true
	}
	if changed {
		if err := m.saveSession(ctx, sess); err != nil {
			return nil, err
		}
	}
	return hyps, nil
}

// Start opens a session over every open hypothesis the user has, or returns
// the user's existing open session: one conversation per user at a time.
func (m *SessionManager) Start(ctx context.Context, userID uuid.UUID) (*domain.GenesisSession, error) {
	existing, err := m.sessions.GetOpenByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	open, err := m.hypotheses.ListOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, ErrNoOpenHypotheses
	}

	ids := make([]uuid.UUID, len(open))
	for i, h := range open {
		ids[i] = h.ID
	}

	sess := &domain.GenesisSession{
		UserID:              userID,
		State:               domain.SessionActive,
		MaxProbesPerSession: m.maxProbesPerSession,
		MaxProbesPerField:   m.maxProbesPerField,
		FieldsProbed:        map[string]int{},
		FieldsConfirmed:     []string{},
		OpenHypothesisIDs:   ids,
		HypothesisIDs:       append([]uuid.UUID(nil), ids...),
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.cache.Add(sess.ID, sess.Clone())

	m.logger.Info("session started",
		zap.String("session_id", sess.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("open_hypotheses", len(ids)))
	return sess, nil
}

// NextProbe selects the highest-priority open hypothesis, picks its next
// unexhausted strategy, and issues a probe packet. When no open hypothesis
// qualifies, the session transitions to complete and ErrSessionExhausted is
// returned alongside an issue carrying the session_completed event: a
// terminal signal, not a failure.
func (m *SessionManager) NextProbe(ctx context.Context, sessionID uuid.UUID) (*ProbeIssue, error) {
	l := m.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	sess, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case domain.SessionComplete:
		return nil, ErrSessionComplete
	case domain.SessionPaused:
		return nil, ErrInvalidTransition
	}

	if !sess.ShouldContinue() {
		return m.finish(ctx, sess)
	}

	open, err := m.hypotheses.ListByIDs(ctx, sess.OpenHypothesisIDs)
	if err != nil {
		return nil, err
	}

	ranked := Rank(open, m.coreFields)
	var (
		chosen   *domain.Hypothesis
		strategy domain.Strategy
		found    bool
	)
	for i := range ranked {
		h := &ranked[i]
		if h.Exhausted() {
			continue
		}
		strategies := m.strategiesFor(ctx, sess.UserID, h.Field)
		used := sess.FieldsProbed[h.Field]
		if used >= len(strategies) || used >= sess.MaxProbesPerField {
			continue
		}
		chosen, strategy, found = h, strategies[used], true
		break
	}
	if !found {
		return m.finish(ctx, sess)
	}

	packet := m.generator.Generate(ctx, chosen, strategy)
	packet.SessionID = sess.ID
	if err := m.probes.Create(ctx, packet); err != nil {
		return nil, err
	}

	sess.TotalProbesSent++
	sess.FieldsProbed[chosen.Field]++
	if err := m.saveSession(ctx, sess); err != nil {
		return nil, err
	}

	issue := &ProbeIssue{
		Packet:  packet,
		Session: sess,
		Events: []domain.Event{{
			Type:      domain.EventProbeIssued,
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Field:     chosen.Field,
			Payload: map[string]any{
				"probe_id": packet.ID.String(),
				"strategy": strategy.Name,
				"fallback": packet.Fallback,
			},
			OccurredAt: time.Now(),
		}},
	}

	m.logger.Debug("probe issued",
		zap.String("session_id", sess.ID.String()),
		zap.String("field", chosen.Field),
		zap.String("strategy", strategy.Name),
		zap.Int("total_probes_sent", sess.TotalProbesSent))
	return issue, nil
}

// strategiesFor resolves the ordered strategy list for a field. If the
// declaring module named refinement strategies, that order wins; otherwise
// every applicable registered strategy in registration order.
func (m *SessionManager) strategiesFor(ctx context.Context, userID uuid.UUID, field string) []domain.Strategy {
	applicable := m.registry.StrategiesFor(field)

	decl, err := m.declarations.GetByUserAndField(ctx, userID, field)
	if err != nil || len(decl.Strategies) == 0 {
		return applicable
	}

	var ordered []domain.Strategy
	for _, name := range decl.Strategies {
		if s, ok := m.registry.Get(name); ok && s.AppliesTo(field) {
			ordered = append(ordered, s)
		}
	}
	if len(ordered) == 0 {
		return applicable
	}
	return ordered
}

// ProcessResponse applies an answer to an issued probe. A bad answer token
// fails with ErrInvalidAnswer and leaves both hypothesis and session
// untouched; the session stays active and resumable.
func (m *SessionManager) ProcessResponse(ctx context.Context, sessionID, probeID uuid.UUID, answer string) (*AnswerResult, error) {
	l := m.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	sess, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case domain.SessionComplete:
		return nil, ErrSessionComplete
	case domain.SessionPaused:
		return nil, ErrInvalidTransition
	}

	probe, err := m.probes.GetByID(ctx, probeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProbeNotFound
		}
		return nil, err
	}
	if probe.SessionID != sess.ID {
		return nil, ErrProbeNotFound
	}
	if probe.Consumed {
		return nil, ErrProbeConsumed
	}

	hyp, err := m.hypotheses.Get(ctx, probe.HypothesisID)
	if err != nil {
		return nil, err
	}

	hyp, err = m.updater.Apply(ctx, hyp, probe, answer)
	if err != nil {
		return nil, err
	}

	if err := m.probes.MarkConsumed(ctx, probe.ID); err != nil {
		return nil, err
	}

	result := &AnswerResult{Hypothesis: hyp, Session: sess}
	now := time.Now()

	if hyp.Resolved {
		sess.RemoveOpenHypothesis(hyp.ID)
		result.Events = append(result.Events, domain.Event{
			Type:      domain.EventHypothesisResolved,
			SessionID: sess.ID,
			UserID:    sess.UserID,
			Field:     hyp.Field,
			Payload: map[string]any{
				"hypothesis_id": hyp.ID.String(),
				"confidence":    hyp.Confidence,
				"confirmed":     hyp.Confirmed(),
			},
			OccurredAt: now,
		})
		if hyp.Confirmed() {
			sess.FieldsConfirmed = appendUnique(sess.FieldsConfirmed, hyp.Field)
			result.Events = append(result.Events, domain.Event{
				Type:       domain.EventFieldConfirmed,
				SessionID:  sess.ID,
				UserID:     sess.UserID,
				Field:      hyp.Field,
				Payload:    map[string]any{"value": hyp.SuspectedValue},
				OccurredAt: now,
			})
		}
	}

	if len(sess.OpenHypothesisIDs) == 0 || sess.TotalProbesSent >= sess.MaxProbesPerSession {
		sess.State = domain.SessionComplete
		result.Events = append(result.Events, domain.Event{
			Type:       domain.EventSessionCompleted,
			SessionID:  sess.ID,
			UserID:     sess.UserID,
			OccurredAt: now,
		})
	}

	if err := m.saveSession(ctx, sess); err != nil {
		return nil, err
	}

	if sess.State == domain.SessionComplete {
		summary, err := m.buildSummary(ctx, sess)
		if err != nil {
			return nil, err
		}
		result.Summary = summary
	}

	return result, nil
}

// finish marks the session terminal and reports exhaustion. The returned
// issue carries no packet, only the session and the session_completed event,
// so this termination path emits the same event the answer path does.
func (m *SessionManager) finish(ctx context.Context, sess *domain.GenesisSession) (*ProbeIssue, error) {
	issue := &ProbeIssue{Session: sess}
	if sess.State != domain.SessionComplete {
		sess.State = domain.SessionComplete
		if err := m.saveSession(ctx, sess); err != nil {
			return nil, err
		}
		issue.Events = append(issue.Events, domain.Event{
			Type:       domain.EventSessionCompleted,
			SessionID:  sess.ID,
			UserID:     sess.UserID,
			OccurredAt: time.Now(),
		})
		m.logger.Info("session exhausted",
			zap.String("session_id", sess.ID.String()),
			zap.Int("total_probes_sent", sess.TotalProbesSent))
	}
	return issue, ErrSessionExhausted
}

// Pause suspends an active session between probes. Any other starting state
// is rejected.
func (m *SessionManager) Pause(ctx context.Context, sessionID uuid.UUID) (*domain.GenesisSession, error) {
	return m.transition(ctx, sessionID, domain.SessionActive, domain.SessionPaused)
}

// Resume re-enters the active state. Ranking is recomputed fresh on the next
// probe; nothing cached survives the pause.
func (m *SessionManager) Resume(ctx context.Context, sessionID uuid.UUID) (*domain.GenesisSession, error) {
	return m.transition(ctx, sessionID, domain.SessionPaused, domain.SessionActive)
}

func (m *SessionManager) transition(ctx context.Context, sessionID uuid.UUID, from, to domain.SessionState) (*domain.GenesisSession, error) {
	l := m.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	// Bypass the cache: evidence may have moved through other channels.
	m.cache.Remove(sessionID)

	sess, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != from {
		return nil, ErrInvalidTransition
	}
	sess.State = to
	if err := m.saveSession(ctx, sess); err != nil {
		return nil, err
	}
	m.cache.Remove(sessionID)
	return sess, nil
}

// Summary reports the terminal verdict of a complete session. Calling it
// repeatedly returns identical results.
func (m *SessionManager) Summary(ctx context.Context, sessionID uuid.UUID) (*domain.GenesisSummary, error) {
	l := m.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	sess, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != domain.SessionComplete {
		return nil, ErrSessionNotComplete
	}
	return m.buildSummary(ctx, sess)
}

// buildSummary reports every field the session tracked: confirmed fields
// with their final values, everything else as insufficient evidence.
func (m *SessionManager) buildSummary(ctx context.Context, sess *domain.GenesisSession) (*domain.GenesisSummary, error) {
	hyps, err := m.hypotheses.ListByIDs(ctx, sess.HypothesisIDs)
	if err != nil {
		return nil, err
	}

	// Best hypothesis per field: confirmed wins, then highest confidence.
	best := make(map[string]*domain.Hypothesis)
	for i := range hyps {
		h := &hyps[i]
		cur, ok := best[h.Field]
		if !ok || (h.Confirmed() && !cur.Confirmed()) || (h.Confirmed() == cur.Confirmed() && h.Confidence > cur.Confidence) {
			best[h.Field] = h
		}
	}

	summary := &domain.GenesisSummary{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		TotalProbesSent: sess.TotalProbesSent,
		CompletedAt:     sess.UpdatedAt,
	}
	for field, h := range best {
		result := domain.FieldResult{
			Field:      field,
			Value:      h.SuspectedValue,
			Confidence: h.Confidence,
			Outcome:    domain.OutcomeInsufficientEvidence,
			ProbesUsed: h.ProbesAttempted,
		}
		if h.Confirmed() {
			result.Outcome = domain.OutcomeConfirmed
			summary.Confirmed = append(summary.Confirmed, result)
		} else {
			summary.Unresolved = append(summary.Unresolved, result)
		}
	}
	sort.Slice(summary.Confirmed, func(i, j int) bool { return summary.Confirmed[i].Field < summary.Confirmed[j].Field })
	sort.Slice(summary.Unresolved, func(i, j int) bool { return summary.Unresolved[i].Field < summary.Unresolved[j].Field })
	return summary, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
