package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/siderealhq/genesis/internal/domain"
	"github.com/siderealhq/genesis/internal/service"
)

// UncertaintyHandler receives declarations from calculation modules.
type UncertaintyHandler struct {
	mgr *service.SessionManager
}

func NewUncertaintyHandler(mgr *service.SessionManager) *UncertaintyHandler {
	return &UncertaintyHandler{mgr: mgr}
}

type declareRequest struct {
	UserID              string             `json:"user_id"`
	Module              string             `json:"module"`
	Field               string             `json:"field"`
	Candidates          map[string]float32 `json:"candidates"`
	ConfidenceThreshold float32            `json:"confidence_threshold,omitempty"`
	Strategies          []string           `json:"refinement_strategies,omitempty"`
}

type declareResponse struct {
	Field      string              `json:"field"`
	Hypotheses []domain.Hypothesis `json:"hypotheses"`
}

func (h *UncertaintyHandler) Declare(w http.ResponseWriter, r *http.Request) {
	var req declareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	if req.Module == "" {
		writeError(w, http.StatusBadRequest, "module is required")
		return
	}

	field := &domain.UncertaintyField{
		UserID:              userID,
		Module:              req.Module,
		Field:               req.Field,
		Candidates:          req.Candidates,
		ConfidenceThreshold: req.ConfidenceThreshold,
		Strategies:          req.Strategies,
	}

	hyps, err := h.mgr.Declare(r.Context(), field)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDistribution) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record declaration")
		return
	}

	writeJSON(w, http.StatusCreated, declareResponse{Field: req.Field, Hypotheses: hyps})
}
