package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surpluscoord/control-plane/internal/commands"
	"github.com/surpluscoord/control-plane/internal/domain"
)

// DriverHandlers serves the /driver resource (domain.DeliveryTask, from the
// assigned driver's perspective).
type DriverHandlers struct {
	svc *commands.Service
}

func NewDriverHandlers(svc *commands.Service) *DriverHandlers {
	return &DriverHandlers{svc: svc}
}

// ListTasks handles GET /driver/tasks?driverId=&status=.
func (h *DriverHandlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	driverID := r.URL.Query().Get("driverId")
	if driverID == "" {
		driverID = actor.UserID
	}
	filter := commands.ListDriverTasksFilter{
		Status: queryStatus(r, "status"),
		Limit:  queryInt(r, "limit", 0),
	}
	tasks, err := h.svc.ListDriverTasks(r.Context(), actor, driverID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type updateTaskStatusRequest struct {
	ExpectedVersion int           `json:"expectedVersion"`
	Status          domain.Status `json:"status" validate:"required"`
	Justification   string        `json:"justification"`
}

// UpdateTaskStatus handles POST /driver/tasks/{id}/status.
func (h *DriverHandlers) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTaskStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.svc.UpdateTaskStatus(r.Context(), actor, mux.Vars(r)["id"], req.ExpectedVersion, req.Status, req.Justification)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type updateTaskLocationRequest struct {
	Coordinates domain.Coordinates `json:"coordinates" validate:"required"`
}

// UpdateTaskLocation handles POST /driver/tasks/{id}/location.
func (h *DriverHandlers) UpdateTaskLocation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTaskLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.svc.UpdateTaskLocation(r.Context(), actor, mux.Vars(r)["id"], req.Coordinates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
