package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderealhq/genesis/internal/service"
)

type SessionHandler struct {
	mgr    *service.SessionManager
	logger *zap.Logger
}

func NewSessionHandler(mgr *service.SessionManager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{mgr: mgr, logger: logger}
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.mgr.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("get session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	summary, err := h.mgr.Summary(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, service.ErrSessionNotComplete):
			writeError(w, http.StatusConflict, "session is still in progress")
		default:
			h.logger.Error("summary failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to build summary")
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.mgr.Pause(r.Context(), id)
	if err != nil {
		h.transitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.mgr.Resume(r.Context(), id)
	if err != nil {
		h.transitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) transitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "session is not in a state that allows this")
	default:
		h.logger.Error("session transition failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update session")
	}
}
