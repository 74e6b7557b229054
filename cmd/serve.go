package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/embedding"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
	"github.com/v1gneshkum4r21/face-clustering/internal/maintenance"
	"github.com/v1gneshkum4r21/face-clustering/internal/web"
	"github.com/v1gneshkum4r21/face-clustering/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Clustering web server.
The server accepts photo submissions, answers status queries and exposes
the admin API for reviewing requests and managing clusters. When
ANALYSIS_SCHEDULE is set, cluster similarity analysis runs on that cron
schedule and its report is served as merge suggestions. Admins can also run
the analysis on demand through the maintenance API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("analyze-now", false, "Run the maintenance tasks once at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if cfg.Web.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}
	clusters, faces := eng.store.Len()
	fmt.Printf("Loaded %d embeddings in %d clusters from %s\n", faces, clusters, eng.store.Path())

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.CloseBackend()
	fmt.Printf("Using %s request ledger\n", database.BackendName())

	dispatcher, err := newDispatcher(ctx, cfg, eng.manager)
	if err != nil {
		return err
	}

	provider := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.MaxImageSize)
	pipeline := ingest.NewPipeline(provider, eng.manager)
	wf := workflow.NewService(pipeline, ledger, dispatcher, "")

	scheduler := maintenance.NewScheduler(cfg.Maintenance.AnalysisSchedule, log.Default())
	analysis := maintenance.NewAnalysisTask(eng.manager, cfg.Clustering.SimilarityThreshold)
	if err := scheduler.RegisterTask(analysis); err != nil {
		return err
	}
	if err := scheduler.RegisterTask(maintenance.NewSessionCleanupTask(ledger)); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("starting maintenance scheduler: %w", err)
	}
	defer scheduler.Stop()

	if mustGetBool(cmd, "analyze-now") {
		go scheduler.RunNow(ctx)
	}

	server := web.NewServer(web.Dependencies{
		Config:      cfg,
		Clusters:    eng.manager,
		Layout:      eng.layout,
		Store:       eng.store,
		Pipeline:    pipeline,
		Provider:    provider,
		Workflow:    wf,
		Ledger:      ledger,
		Reports:     analysis,
		Maintenance: scheduler,
	})

	fmt.Printf("Starting %s on http://%s\n", cfg.App.Name, server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(runCtx)
}
