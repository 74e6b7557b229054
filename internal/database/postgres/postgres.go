// Package postgres implements the request ledger on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/lib/pq"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

const (
	connMaxLifetime = time.Hour
	connMaxIdleTime = 10 * time.Minute
)

// Ledger is the PostgreSQL-backed database.Ledger.
type Ledger struct {
	db *sql.DB
}

var _ database.Ledger = (*Ledger)(nil)

// connect opens a pool sized from cfg and checks the server answers.
func connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), database.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reaching postgres: %w", err)
	}
	return db, nil
}

// Open connects and brings the schema up to date.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Ledger, error) {
	db, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	l := &Ledger{db: db}
	if err := l.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger schema: %w", err)
	}
	return l, nil
}

// Migrate applies the embedded migrations that have not run yet.
func (l *Ledger) Migrate(ctx context.Context) error {
	files, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	return database.Migrate(ctx, l.db, files, dialect)
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Initialize opens the ledger and registers it as the active backend.
func Initialize(ctx context.Context, cfg *config.DatabaseConfig) error {
	l, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	database.RegisterBackend("postgres", l)
	return nil
}
