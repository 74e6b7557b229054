package handlers

import (
	"net/http"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse is the non-secret part of the running configuration
type ConfigResponse struct {
	AppName             string  `json:"app_name"`
	Tolerance           float64 `json:"tolerance"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	AnalysisSchedule    string  `json:"analysis_schedule,omitempty"`
	EmbeddingURL        string  `json:"embedding_url"`
	LedgerBackend       string  `json:"ledger_backend"`
	SharingEnabled      bool    `json:"sharing_enabled"`
	EmailEnabled        bool    `json:"email_enabled"`
	MaxContentLength    int64   `json:"max_content_length"`
}

// Get returns the running configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		AppName:             h.config.App.Name,
		Tolerance:           h.config.Clustering.Tolerance,
		SimilarityThreshold: h.config.Clustering.SimilarityThreshold,
		AnalysisSchedule:    h.config.Maintenance.AnalysisSchedule,
		EmbeddingURL:        h.config.Embedding.URL,
		LedgerBackend:       database.BackendName(),
		SharingEnabled:      h.config.Storage.Enabled(),
		EmailEnabled:        h.config.SMTP.Username != "" && h.config.SMTP.Password != "",
		MaxContentLength:    h.config.Web.MaxContentLength,
	})
}
