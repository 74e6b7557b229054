package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"path"
	"slices"
)

// Dialect is the backend-specific SQL used to track applied migrations in
// the schema_migrations table.
type Dialect struct {
	Name           string
	CreateVersions string
	InsertVersion  string // takes the migration file name as its only parameter
}

// Migrate runs every *.sql file in files that schema_migrations does not
// list yet. Files run in name order, each in its own transaction together
// with its bookkeeping row.
func Migrate(ctx context.Context, db *sql.DB, files fs.FS, d Dialect) error {
	if _, err := db.ExecContext(ctx, d.CreateVersions); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return err
	}
	slices.Sort(names)

	for _, name := range names {
		if done[name] {
			continue
		}
		if err := applyMigration(ctx, db, files, name, d); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		log.Printf("%s ledger: applied migration %s", d.Name, path.Base(name))
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, files fs.FS, name string, d Dialect) error {
	script, err := fs.ReadFile(files, name)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, d.InsertVersion, name); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	done := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}
