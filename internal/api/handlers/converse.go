package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderealhq/genesis/internal/domain"
	"github.com/siderealhq/genesis/internal/service"
	"github.com/siderealhq/genesis/internal/store"
)

// ConverseHandler is the single conversational surface: a start request
// opens a session and returns the first probe; a continue request applies
// the answer to the outstanding probe and returns either the next probe or
// the completed session's summary. Internal error taxonomy never reaches the
// end user.
type ConverseHandler struct {
	mgr    *service.SessionManager
	probes domain.ProbeStore
	logger *zap.Logger
}

func NewConverseHandler(mgr *service.SessionManager, probes domain.ProbeStore, logger *zap.Logger) *ConverseHandler {
	return &ConverseHandler{mgr: mgr, probes: probes, logger: logger}
}

type converseRequest struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Answer    string `json:"answer,omitempty"`
}

type progress struct {
	ProbesUsed       int `json:"probes_used"`
	ProbeBudget      int `json:"probe_budget"`
	UnresolvedFields int `json:"unresolved_fields"`
}

type probeView struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

type converseResponse struct {
	SessionID string                 `json:"session_id"`
	Probe     *probeView             `json:"probe,omitempty"`
	Progress  *progress              `json:"progress,omitempty"`
	Summary   *domain.GenesisSummary `json:"summary,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

func (h *ConverseHandler) Converse(w http.ResponseWriter, r *http.Request) {
	var req converseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionID == "" {
		h.start(w, r, req)
		return
	}
	h.answer(w, r, req)
}

func (h *ConverseHandler) start(w http.ResponseWriter, r *http.Request, req converseRequest) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	sess, err := h.mgr.Start(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoOpenHypotheses) {
			writeError(w, http.StatusConflict, "nothing to resolve for this user")
			return
		}
		h.logger.Error("start session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	h.issueProbe(w, r, sess.ID)
}

func (h *ConverseHandler) answer(w http.ResponseWriter, r *http.Request, req converseRequest) {
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	if req.Answer == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}

	probe, err := h.probes.GetLatestOpenBySession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusConflict, "no outstanding question for this session")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load question")
		return
	}

	result, err := h.mgr.ProcessResponse(r.Context(), sessionID, probe.ID, req.Answer)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, service.ErrInvalidAnswer):
			writeError(w, http.StatusBadRequest, "that answer isn't one of the choices")
		case errors.Is(err, service.ErrProbeConsumed):
			writeError(w, http.StatusConflict, "that question was already answered")
		case errors.Is(err, service.ErrProbeNotFound):
			writeError(w, http.StatusConflict, "no outstanding question for this session")
		case errors.Is(err, service.ErrSessionComplete):
			h.writeSummary(w, r, sessionID)
		case errors.Is(err, service.ErrInvalidTransition):
			writeJSON(w, http.StatusOK, converseResponse{
				SessionID: sessionID.String(),
				Message:   "session paused, try later",
			})
		default:
			h.logger.Error("process response failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to process answer")
		}
		return
	}

	h.dispatch(result.Events)

	if result.Summary != nil {
		writeJSON(w, http.StatusOK, converseResponse{
			SessionID: sessionID.String(),
			Summary:   result.Summary,
		})
		return
	}

	h.issueProbe(w, r, sessionID)
}

func (h *ConverseHandler) issueProbe(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	issue, err := h.mgr.NextProbe(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionExhausted) || errors.Is(err, service.ErrSessionComplete) {
			if issue != nil {
				h.dispatch(issue.Events)
			}
			h.writeSummary(w, r, sessionID)
			return
		}
		h.logger.Error("next probe failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to produce question")
		return
	}

	h.dispatch(issue.Events)

	writeJSON(w, http.StatusOK, converseResponse{
		SessionID: sessionID.String(),
		Probe: &probeView{
			ID:       issue.Packet.ID.String(),
			Type:     string(issue.Packet.Type),
			Question: issue.Packet.Question,
			Options:  issue.Packet.Options,
		},
		Progress: &progress{
			ProbesUsed:       issue.Session.TotalProbesSent,
			ProbeBudget:      issue.Session.MaxProbesPerSession,
			UnresolvedFields: len(issue.Session.OpenHypothesisIDs),
		},
	})
}

func (h *ConverseHandler) writeSummary(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	summary, err := h.mgr.Summary(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("summary failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, converseResponse{
		SessionID: sessionID.String(),
		Summary:   summary,
	})
}

// dispatch forwards the operation's side-effect log. Events are logged here;
// a bus consumer would hang off the same hook.
func (h *ConverseHandler) dispatch(events []domain.Event) {
	for _, e := range events {
		h.logger.Info("genesis event",
			zap.String("type", string(e.Type)),
			zap.String("session_id", e.SessionID.String()),
			zap.String("field", e.Field))
	}
}
