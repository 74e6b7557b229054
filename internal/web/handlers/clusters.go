package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/maintenance"
)

// ClusterService is the cluster management surface used by the admin API.
type ClusterService interface {
	Clusters() ([]cluster.Summary, error)
	Cluster(id string) (cluster.Detail, error)
	ImagePath(id, name string) (string, error)
	RenameCluster(ctx context.Context, oldID, newName string) (string, error)
	DeleteCluster(ctx context.Context, id string) error
	DeleteImage(ctx context.Context, id, name string) (bool, error)
	MoveImage(ctx context.Context, src, dst, name string) (cluster.MoveResult, error)
	Merge(ctx context.Context, src, dst string) (cluster.MergeResult, error)
	CompareClusters(a, b string) (cluster.Similarity, error)
	FindSimilarPairs(ctx context.Context, threshold float64) ([]cluster.SimilarPair, error)
}

// ReportSource serves the last scheduled similarity analysis.
type ReportSource interface {
	Latest() *maintenance.Report
}

// ClustersHandler handles cluster review and management endpoints
type ClustersHandler struct {
	clusters  ClusterService
	reports   ReportSource
	threshold float64
	onChange  func()
}

// NewClustersHandler creates a new clusters handler. reports may be nil
// when scheduled analysis is disabled; onChange runs after every mutation.
func NewClustersHandler(clusters ClusterService, reports ReportSource, threshold float64, onChange func()) *ClustersHandler {
	return &ClustersHandler{
		clusters:  clusters,
		reports:   reports,
		threshold: threshold,
		onChange:  onChange,
	}
}

func (h *ClustersHandler) changed() {
	if h.onChange != nil {
		h.onChange()
	}
}

// List returns every cluster with its image and face counts
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.clusters.Clusters()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

// Get returns one cluster with its image names
func (h *ClustersHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.clusters.Cluster(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// Image serves the raw image file
func (h *ClustersHandler) Image(w http.ResponseWriter, r *http.Request) {
	path, err := h.clusters.ImagePath(chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename gives a cluster a new name
func (h *ClustersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	oldID := chi.URLParam(r, "id")
	newID, err := h.clusters.RenameCluster(r.Context(), oldID, req.Name)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.changed()
	log.Printf("renamed cluster %s to %s", sanitizeForLog(oldID), newID)
	respondJSON(w, http.StatusOK, map[string]string{"old_id": oldID, "id": newID})
}

// Delete removes a cluster with all its images and embeddings
func (h *ClustersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.clusters.DeleteCluster(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.changed()
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

// DeleteImage removes one image and its embedding
func (h *ClustersHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "name")
	embeddingRemoved, err := h.clusters.DeleteImage(r.Context(), id, name)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.changed()
	respondJSON(w, http.StatusOK, map[string]any{
		"deleted":           true,
		"image":             name,
		"embedding_removed": embeddingRemoved,
	})
}

type moveRequest struct {
	Target string `json:"target"`
}

// MoveImage moves one image and its embedding to another cluster
func (h *ClustersHandler) MoveImage(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Target == "" {
		respondError(w, http.StatusBadRequest, "target is required")
		return
	}

	result, err := h.clusters.MoveImage(r.Context(), chi.URLParam(r, "id"), req.Target, chi.URLParam(r, "name"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.changed()
	respondJSON(w, http.StatusOK, result)
}

type mergeRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Merge moves every image of source into target
func (h *ClustersHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Source == "" || req.Target == "" {
		respondError(w, http.StatusBadRequest, "source and target are required")
		return
	}

	result, err := h.clusters.Merge(r.Context(), req.Source, req.Target)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.changed()
	respondJSON(w, http.StatusOK, result)
}

// Similar runs the similarity analysis on demand
func (h *ClustersHandler) Similar(w http.ResponseWriter, r *http.Request) {
	threshold := h.threshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || t > 1 {
			respondError(w, http.StatusBadRequest, "threshold must be a number between 0 and 1")
			return
		}
		threshold = t
	}

	pairs, err := h.clusters.FindSimilarPairs(r.Context(), threshold)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"threshold": threshold,
		"pairs":     pairs,
		"count":     len(pairs),
	})
}

// Compare scores two clusters against each other
func (h *ClustersHandler) Compare(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		respondError(w, http.StatusBadRequest, "query parameters a and b are required")
		return
	}
	sim, err := h.clusters.CompareClusters(a, b)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sim)
}

// Suggestions returns the cached report of the scheduled analysis
func (h *ClustersHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		respondError(w, http.StatusNotFound, "scheduled analysis is disabled")
		return
	}
	report := h.reports.Latest()
	if report == nil {
		respondJSON(w, http.StatusOK, map[string]any{"ready": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ready":        true,
		"generated_at": report.GeneratedAt,
		"threshold":    report.Threshold,
		"pairs":        report.Pairs,
	})
}
