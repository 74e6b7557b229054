package web

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/embedding"
	"github.com/v1gneshkum4r21/face-clustering/internal/facestore"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
	"github.com/v1gneshkum4r21/face-clustering/internal/layout"
	"github.com/v1gneshkum4r21/face-clustering/internal/web/handlers"
	"github.com/v1gneshkum4r21/face-clustering/internal/web/middleware"
	"github.com/v1gneshkum4r21/face-clustering/internal/workflow"
)

// Dependencies are the components the HTTP API is served from
type Dependencies struct {
	Config   *config.Config
	Clusters *cluster.Manager
	Layout   *layout.Layout
	Store    *facestore.Store
	Pipeline *ingest.Pipeline
	Provider embedding.Provider
	Workflow *workflow.Service
	Ledger   database.Ledger
	Reports  handlers.ReportSource
	// Maintenance is optional; without it the maintenance routes are absent
	Maintenance handlers.TaskRunner
}

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 5 * time.Minute // batch uploads and SSE streams
	idleTimeout  = time.Minute
	// requests still running after this are cut off on shutdown
	shutdownGrace = 30 * time.Second
)

// Server is the HTTP front end for submissions and the admin API.
type Server struct {
	deps           Dependencies
	router         *chi.Mux
	jobManager     *handlers.JobManager
	sessionManager *middleware.SessionManager
}

func NewServer(deps Dependencies) *Server {
	s := &Server{
		deps:           deps,
		router:         chi.NewRouter(),
		jobManager:     handlers.NewJobManager(),
		sessionManager: middleware.NewSessionManager(deps.Config.Web.SessionSecret, deps.Ledger),
	}

	s.router.Use(
		chiMiddleware.RequestID,
		chiMiddleware.RealIP,
		chiMiddleware.Logger,
		chiMiddleware.Recoverer,
		chiMiddleware.Timeout(writeTimeout),
		middleware.CORS(deps.Config.Web.AllowedOrigins),
		middleware.SecurityHeaders(),
	)
	s.setupRoutes()
	return s
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.deps.Config.Web.Host, strconv.Itoa(s.deps.Config.Web.Port))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	log.Println("web server shutting down")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("draining http server: %w", err)
	}
	return nil
}

// Router exposes the routes for in-process tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
