package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surpluscoord/control-plane/internal/commands"
)

// ComplianceHandlers serves the /compliance resource.
type ComplianceHandlers struct {
	svc *commands.Service
}

func NewComplianceHandlers(svc *commands.Service) *ComplianceHandlers {
	return &ComplianceHandlers{svc: svc}
}

// Queue handles GET /compliance/queue.
func (h *ComplianceHandlers) Queue(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := h.svc.ComplianceQueue(r.Context(), actor, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

type complianceDecisionRequest struct {
	ExpectedVersion int    `json:"expectedVersion"`
	Justification   string `json:"justification" validate:"required"`
}

// Approve handles POST /compliance/{matchId}/approve.
func (h *ComplianceHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req complianceDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	match, err := h.svc.ApproveMatch(r.Context(), actor, mux.Vars(r)["matchId"], req.ExpectedVersion, req.Justification)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// Block handles POST /compliance/{matchId}/block.
func (h *ComplianceHandlers) Block(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req complianceDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	match, err := h.svc.BlockMatch(r.Context(), actor, mux.Vars(r)["matchId"], req.ExpectedVersion, req.Justification)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}
