package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surpluscoord/control-plane/internal/commands"
)

// DemandHandlers serves the /demand resource (domain.DemandPost).
type DemandHandlers struct {
	svc *commands.Service
}

func NewDemandHandlers(svc *commands.Service) *DemandHandlers {
	return &DemandHandlers{svc: svc}
}

// CreateDemand handles POST /demand.
func (h *DemandHandlers) CreateDemand(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input commands.CreateDemandInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	demand, err := h.svc.CreateDemand(r.Context(), actor, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, demand)
}

// ListDemands handles GET /demand?status=&userId=.
func (h *DemandHandlers) ListDemands(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := commands.ListDemandsFilter{
		Status: queryStatus(r, "status"),
		UserID: r.URL.Query().Get("userId"),
		Limit:  queryInt(r, "limit", 0),
	}
	demands, err := h.svc.ListDemands(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, demands)
}

// GetDemand handles GET /demand/{id}.
func (h *DemandHandlers) GetDemand(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	demand, err := h.svc.GetDemand(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, demand)
}

type updateDemandRequest struct {
	ExpectedVersion int            `json:"expectedVersion"`
	Updates         map[string]any `json:"updates"`
}

// UpdateDemand handles PUT /demand/{id}.
func (h *DemandHandlers) UpdateDemand(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateDemandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	demand, err := h.svc.UpdateDemand(r.Context(), actor, mux.Vars(r)["id"], req.ExpectedVersion, req.Updates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, demand)
}

type closeDemandRequest struct {
	ExpectedVersion int    `json:"expectedVersion"`
	Justification   string `json:"justification"`
}

// CloseDemand handles POST /demand/{id}/close.
func (h *DemandHandlers) CloseDemand(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req closeDemandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	demand, err := h.svc.CloseDemand(r.Context(), actor, mux.Vars(r)["id"], req.ExpectedVersion, req.Justification)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, demand)
}
