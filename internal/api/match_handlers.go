package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surpluscoord/control-plane/internal/commands"
)

// MatchHandlers serves the /matches resource.
type MatchHandlers struct {
	svc *commands.Service
}

func NewMatchHandlers(svc *commands.Service) *MatchHandlers {
	return &MatchHandlers{svc: svc}
}

type recommendMatchesRequest struct {
	ListingID string `json:"listingId" validate:"required"`
}

// RecommendMatches handles POST /matches/recommendations.
func (h *MatchHandlers) RecommendMatches(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req recommendMatchesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.RecommendMatches(r.Context(), actor, req.ListingID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"listingId": req.ListingID, "status": "recommendation run started"})
}

// ListMatches handles GET /matches?status=&listingId=&demandId=.
func (h *MatchHandlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := commands.ListMatchesFilter{
		Status:    queryStatus(r, "status"),
		ListingID: r.URL.Query().Get("listingId"),
		DemandID:  r.URL.Query().Get("demandId"),
		Limit:     queryInt(r, "limit", 0),
	}
	matches, err := h.svc.ListMatches(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// GetMatch handles GET /matches/{id}.
func (h *MatchHandlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	match, err := h.svc.GetMatch(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

type acceptMatchRequest struct {
	ExpectedVersion int `json:"expectedVersion"`
}

// AcceptMatch handles POST /matches/{id}/accept.
func (h *MatchHandlers) AcceptMatch(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req acceptMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	match, err := h.svc.AcceptMatch(r.Context(), actor, mux.Vars(r)["id"], req.ExpectedVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

type rejectMatchRequest struct {
	ExpectedVersion int    `json:"expectedVersion"`
	Justification   string `json:"justification"`
}

// RejectMatch handles POST /matches/{id}/reject.
func (h *MatchHandlers) RejectMatch(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rejectMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	match, err := h.svc.RejectMatch(r.Context(), actor, mux.Vars(r)["id"], req.ExpectedVersion, req.Justification)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// ScheduleMatch handles POST /matches/{id}/schedule.
func (h *MatchHandlers) ScheduleMatch(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var input commands.ScheduleMatchInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.svc.ScheduleMatch(r.Context(), actor, mux.Vars(r)["id"], input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}
