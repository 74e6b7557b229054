package postgres

import (
	"embed"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var dialect = database.Dialect{
	Name:           "postgres",
	CreateVersions: `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`,
	InsertVersion:  `INSERT INTO schema_migrations (version) VALUES ($1)`,
}
