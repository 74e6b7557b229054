package web

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/v1gneshkum4r21/face-clustering/internal/web/handlers"
	"github.com/v1gneshkum4r21/face-clustering/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	cfg := s.deps.Config

	statsHandler := handlers.NewStatsHandler(s.deps.Layout, s.deps.Store, s.deps.Ledger)
	invalidate := statsHandler.InvalidateCache

	authHandler := handlers.NewAuthHandler(cfg.Web.AdminPassword, s.sessionManager)
	configHandler := handlers.NewConfigHandler(cfg)
	clustersHandler := handlers.NewClustersHandler(s.deps.Clusters, s.deps.Reports, cfg.Clustering.SimilarityThreshold, invalidate)
	submissionsHandler := handlers.NewSubmissionsHandler(s.deps.Workflow, s.deps.Provider, s.deps.Clusters, cfg.Web.MaxContentLength, invalidate)
	requestsHandler := handlers.NewRequestsHandler(s.deps.Workflow, s.deps.Ledger)
	processHandler := handlers.NewProcessHandler(s.deps.Pipeline, s.jobManager, invalidate)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Public submission flow
		r.Post("/submissions", submissionsHandler.Submit)
		r.Get("/submissions/{id}", submissionsHandler.Status)
		r.Post("/clusters/find", submissionsHandler.Find)

		// Auth
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Admin routes require a session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			// Clusters
			r.Get("/clusters", clustersHandler.List)
			r.Get("/clusters/similar", clustersHandler.Similar)
			r.Get("/clusters/compare", clustersHandler.Compare)
			r.Get("/clusters/suggestions", clustersHandler.Suggestions)
			r.Post("/clusters/merge", clustersHandler.Merge)
			r.Get("/clusters/{id}", clustersHandler.Get)
			r.Put("/clusters/{id}", clustersHandler.Rename)
			r.Delete("/clusters/{id}", clustersHandler.Delete)
			r.Get("/clusters/{id}/images/{name}", clustersHandler.Image)
			r.Delete("/clusters/{id}/images/{name}", clustersHandler.DeleteImage)
			r.Post("/clusters/{id}/images/{name}/move", clustersHandler.MoveImage)

			// Batch processing
			r.Post("/process", processHandler.Start)
			r.Get("/process/{jobId}", processHandler.Status)
			r.Get("/process/{jobId}/events", processHandler.Events)
			r.Delete("/process/{jobId}", processHandler.Cancel)

			// Request review
			r.Get("/requests", requestsHandler.List)
			r.Post("/requests/{id}/approve", requestsHandler.Approve)
			r.Post("/requests/{id}/reject", requestsHandler.Reject)

			r.Get("/stats", statsHandler.Get)
			r.Get("/config", configHandler.Get)

			if s.deps.Maintenance != nil {
				maintenanceHandler := handlers.NewMaintenanceHandler(s.deps.Maintenance)
				r.Get("/maintenance", maintenanceHandler.Status)
				r.Post("/maintenance/{task}/run", maintenanceHandler.Run)
			}
		})
	})

	s.router.Get("/", s.serveIndex)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.}}</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.}}</h1>
        <p>Upload a clear face photo through <code>POST /api/v1/submissions</code> to find your photos.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))

// serveIndex serves a landing page pointing at the API
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	indexTemplate.Execute(w, s.deps.Config.App.Name)
}
