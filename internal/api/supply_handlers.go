package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surpluscoord/control-plane/internal/commands"
)

// SupplyHandlers serves the /supply resource (domain.SurplusListing).
type SupplyHandlers struct {
	svc *commands.Service
}

func NewSupplyHandlers(svc *commands.Service) *SupplyHandlers {
	return &SupplyHandlers{svc: svc}
}

// CreateListing handles POST /supply.
func (h *SupplyHandlers) CreateListing(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input commands.CreateListingInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	listing, err := h.svc.CreateListing(r.Context(), actor, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

// ListListings handles GET /supply?status=&userId=.
func (h *SupplyHandlers) ListListings(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := commands.ListListingsFilter{
		Status: queryStatus(r, "status"),
		UserID: r.URL.Query().Get("userId"),
		Limit:  queryInt(r, "limit", 0),
	}
	listings, err := h.svc.ListListings(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// GetListing handles GET /supply/{id}.
func (h *SupplyHandlers) GetListing(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	listing, err := h.svc.GetListing(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type updateListingRequest struct {
	ExpectedVersion int            `json:"expectedVersion"`
	Updates         map[string]any `json:"updates"`
}

// UpdateListing handles PUT /supply/{id}.
func (h *SupplyHandlers) UpdateListing(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	listing, err := h.svc.UpdateListing(r.Context(), actor, mux.Vars(r)["id"], req.ExpectedVersion, req.Updates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type cancelListingRequest struct {
	ExpectedVersion int    `json:"expectedVersion"`
	Justification   string `json:"justification"`
}

// CancelListing handles POST /supply/{id}/cancel.
func (h *SupplyHandlers) CancelListing(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req cancelListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	listing, err := h.svc.CancelListing(r.Context(), actor, mux.Vars(r)["id"], req.ExpectedVersion, req.Justification)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}
