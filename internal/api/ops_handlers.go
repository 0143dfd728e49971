package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surpluscoord/control-plane/internal/commands"
	"github.com/surpluscoord/control-plane/internal/domain"
)

// OpsHandlers serves the /ops resource group.
type OpsHandlers struct {
	svc *commands.Service
}

func NewOpsHandlers(svc *commands.Service) *OpsHandlers {
	return &OpsHandlers{svc: svc}
}

// Dashboard handles GET /ops/dashboard?from=&to=.
func (h *OpsHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.svc.OpsDashboard(r.Context(), actor, queryTime(r, "from"), queryTime(r, "to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// StuckTasks handles GET /ops/stuck.
func (h *OpsHandlers) StuckTasks(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tasks, err := h.svc.OpsStuckTasks(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type overrideTaskRequest struct {
	ExpectedVersion int           `json:"expectedVersion"`
	Status          domain.Status `json:"status" validate:"required"`
	Justification   string        `json:"justification" validate:"required"`
}

// OverrideTask handles POST /ops/tasks/{id}/override.
func (h *OpsHandlers) OverrideTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req overrideTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.svc.OverrideTask(r.Context(), actor, mux.Vars(r)["id"], req.ExpectedVersion, req.Status, req.Justification)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// AuditExport handles GET /ops/audit/export?entityId=&from=&to=&limit=.
func (h *OpsHandlers) AuditExport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := commands.AuditExportFilter{
		EntityType: r.URL.Query().Get("entityType"),
		EntityID:   r.URL.Query().Get("entityId"),
		From:       queryTime(r, "from"),
		To:         queryTime(r, "to"),
		Limit:      queryInt(r, "limit", 0),
	}
	events, err := h.svc.AuditExport(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
