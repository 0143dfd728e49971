package api

import (
	"net/http"

	"github.com/surpluscoord/control-plane/internal/store/storeset"
)

// HealthHandlers serves the ambient /healthz and /readyz endpoints.
type HealthHandlers struct {
	stores *storeset.Set
}

func NewHealthHandlers(stores *storeset.Set) *HealthHandlers {
	return &HealthHandlers{stores: stores}
}

// Liveness handles GET /healthz: the process is up and serving requests.
func (h *HealthHandlers) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness handles GET /readyz: the active store backend is reachable.
func (h *HealthHandlers) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.stores.Users.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
