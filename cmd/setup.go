package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/database/postgres"
	"github.com/v1gneshkum4r21/face-clustering/internal/database/sqlite"
	"github.com/v1gneshkum4r21/face-clustering/internal/facestore"
	"github.com/v1gneshkum4r21/face-clustering/internal/layout"
	"github.com/v1gneshkum4r21/face-clustering/internal/notify"
)

// engine is the cluster directory tree, the embedding store and the manager
// that keeps both consistent.
type engine struct {
	layout  *layout.Layout
	store   *facestore.Store
	manager *cluster.Manager
}

func openEngine(cfg *config.Config) (*engine, error) {
	lay, err := layout.New(cfg.Clustering.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open results directory: %w", err)
	}
	store, err := facestore.Open(cfg.Clustering.EncodingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding store: %w", err)
	}
	manager := cluster.NewManager(store, lay,
		cluster.WithTolerance(cfg.Clustering.Tolerance),
		cluster.WithWorkers(constants.AnalyzerWorkers),
	)
	return &engine{layout: lay, store: store, manager: manager}, nil
}

// openLedger registers the request ledger: PostgreSQL when DATABASE_URL is
// set, a local SQLite file otherwise. A ledger already registered is reused.
func openLedger(ctx context.Context, cfg *config.Config) (database.Ledger, error) {
	if database.IsInitialized() {
		return database.GetLedger(ctx)
	}
	if cfg.Database.URL != "" {
		if err := postgres.Initialize(ctx, &cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
	} else if err := sqlite.Initialize(ctx, cfg.Database.SQLitePath); err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	return database.GetLedger(ctx)
}

// newDispatcher wires cluster sharing and email delivery. Either side may be
// missing; the dispatcher then reports that it is not configured.
func newDispatcher(ctx context.Context, cfg *config.Config, clusters notify.ClusterSource) (*notify.Dispatcher, error) {
	var publisher notify.Publisher
	if cfg.Storage.Enabled() {
		p, err := notify.NewMinioPublisher(ctx, cfg.Storage, cfg.App.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to set up object storage: %w", err)
		}
		publisher = p
	} else {
		log.Println("MINIO_ENDPOINT not set, cluster sharing disabled")
	}

	var mailer notify.Mailer
	if m := notify.NewSMTPMailer(cfg.SMTP); m != nil {
		mailer = m
	} else {
		log.Println("SMTP credentials not set, email delivery disabled")
	}

	return notify.NewDispatcher(clusters, publisher, mailer, cfg.Templates, cfg.App)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
