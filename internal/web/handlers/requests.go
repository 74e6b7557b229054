package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/workflow"
)

// RequestsHandler serves the admin review queue
type RequestsHandler struct {
	workflow RequestWorkflow
	ledger   database.RequestReader
}

// NewRequestsHandler creates a new requests handler
func NewRequestsHandler(wf RequestWorkflow, ledger database.RequestReader) *RequestsHandler {
	return &RequestsHandler{workflow: wf, ledger: ledger}
}

// List returns requests, optionally filtered by status
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := database.RequestStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
		return
	}

	limit := constants.DefaultRequestListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, constants.DefaultRequestListLimit)
	}

	requests, err := h.ledger.ListRequests(r.Context(), status, limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	stats, err := h.ledger.RequestStats(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if requests == nil {
		requests = []database.Request{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"requests": requests,
		"stats":    stats,
	})
}

// Approve shares the cluster with the requester and marks the request approved
func (h *RequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.workflow.Approve(r.Context(), id)
	if err != nil {
		if errors.Is(err, workflow.ErrNotifyFailed) {
			respondJSON(w, http.StatusBadGateway, map[string]any{
				"error":  res.Reason,
				"status": database.StatusPending,
			})
			return
		}
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"request_id": id,
		"status":     database.StatusApproved,
		"link":       res.Link,
	})
}

// Reject marks a pending request rejected
func (h *RequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.workflow.Reject(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"request_id": id,
		"status":     database.StatusRejected,
	})
}
