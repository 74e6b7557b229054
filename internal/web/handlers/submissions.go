package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/embedding"
	"github.com/v1gneshkum4r21/face-clustering/internal/notify"
	"github.com/v1gneshkum4r21/face-clustering/internal/workflow"
)

// RequestWorkflow is the submission and review flow.
type RequestWorkflow interface {
	Submit(ctx context.Context, email, filename string, data []byte) (*workflow.Submission, error)
	Status(ctx context.Context, id, email string) (*database.Request, error)
	Approve(ctx context.Context, id string) (notify.Result, error)
	Reject(ctx context.Context, id string) error
}

// Matcher looks up the cluster an embedding belongs to without changing anything.
type Matcher interface {
	Match(emb cluster.Embedding) (string, float64, bool)
}

// SubmissionsHandler serves the public photo submission endpoints
type SubmissionsHandler struct {
	workflow RequestWorkflow
	provider embedding.Provider
	matcher  Matcher
	maxSize  int64
	onChange func()
}

// NewSubmissionsHandler creates a new submissions handler
func NewSubmissionsHandler(wf RequestWorkflow, provider embedding.Provider, matcher Matcher, maxSize int64, onChange func()) *SubmissionsHandler {
	return &SubmissionsHandler{
		workflow: wf,
		provider: provider,
		matcher:  matcher,
		maxSize:  maxSize,
		onChange: onChange,
	}
}

// Submit clusters an uploaded photo and records a pending request
func (h *SubmissionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	filename, data, err := readUpload(w, r, h.maxSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.workflow.Submit(r.Context(), r.FormValue("email"), filename, data)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if h.onChange != nil {
		h.onChange()
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"request_id": sub.RequestID,
		"status":     sub.Status,
		"message":    "Photo uploaded successfully! Please save your Request ID to check your request status. We'll email you when matches are found.",
	})
}

// Status lets a requester check their request with its id and email
func (h *SubmissionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	req, err := h.workflow.Status(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"request_id":   req.ID,
		"status":       req.Status,
		"message":      workflow.StatusMessage(req.Status),
		"submitted_at": req.SubmittedAt,
	})
}

// Find reports which cluster an uploaded face belongs to without storing it
func (h *SubmissionsHandler) Find(w http.ResponseWriter, r *http.Request) {
	_, data, err := readUpload(w, r, h.maxSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	emb, err := h.provider.Embed(r.Context(), data)
	if err != nil {
		if !errors.Is(err, cluster.ErrNoFaceDetected) {
			err = errors.Join(errors.New("embedding service failed"), err)
		}
		respondDomainError(w, r, err)
		return
	}

	id, distance, ok := h.matcher.Match(emb)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"found":      true,
		"cluster_id": id,
		"distance":   distance,
	})
}
