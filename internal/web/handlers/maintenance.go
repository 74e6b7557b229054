package handlers

import (
	"context"
	"log"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/v1gneshkum4r21/face-clustering/internal/maintenance"
)

// TaskRunner is the maintenance scheduler as seen by the admin API.
type TaskRunner interface {
	IsRunning() bool
	GetStatus() map[string]maintenance.TaskStatus
	RunTask(ctx context.Context, name string) (maintenance.TaskResult, error)
}

// MaintenanceHandler reports on background tasks and runs them on demand.
type MaintenanceHandler struct {
	tasks TaskRunner
}

func NewMaintenanceHandler(tasks TaskRunner) *MaintenanceHandler {
	return &MaintenanceHandler{tasks: tasks}
}

// Status lists every registered task, sorted by name.
func (h *MaintenanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	byName := h.tasks.GetStatus()
	tasks := make([]maintenance.TaskStatus, 0, len(byName))
	for _, st := range byName {
		tasks = append(tasks, st)
	}
	slices.SortFunc(tasks, func(a, b maintenance.TaskStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	respondJSON(w, http.StatusOK, map[string]any{
		"scheduled": h.tasks.IsRunning(),
		"tasks":     tasks,
	})
}

// Run executes one task synchronously and returns its result. A task that
// runs but fails still answers 200; the failure is in the result.
func (h *MaintenanceHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "task")
	result, err := h.tasks.RunTask(r.Context(), name)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	log.Printf("maintenance task %s run by admin: %s", sanitizeForLog(name), result.Message)
	respondJSON(w, http.StatusOK, result)
}
