package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surpluscoord/control-plane/internal/commands"
)

// ProfileHandlers serves GET/PUT /profile/{id}.
type ProfileHandlers struct {
	svc *commands.Service
}

func NewProfileHandlers(svc *commands.Service) *ProfileHandlers {
	return &ProfileHandlers{svc: svc}
}

// GetProfile handles GET /profile (the caller's own) and GET /profile/{id}
// (an operator/admin looking up another user).
func (h *ProfileHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.svc.GetProfile(r.Context(), actor, targetUserID(r, actor))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// targetUserID resolves the profile id a route addresses: the {id} path
// variable when present, otherwise the caller's own id.
func targetUserID(r *http.Request, actor commands.Actor) string {
	if id := mux.Vars(r)["id"]; id != "" {
		return id
	}
	return actor.UserID
}

type updateProfileRequest struct {
	ExpectedVersion int            `json:"expectedVersion"`
	Updates         map[string]any `json:"updates"`
}

// UpdateProfile handles PUT /profile/{id}.
func (h *ProfileHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.svc.UpdateProfile(r.Context(), actor, targetUserID(r, actor), req.ExpectedVersion, req.Updates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
