//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/database/ledgertest"
)

// startPostgres runs a throwaway server and returns its connection config.
// The test is skipped when Docker is unavailable.
func startPostgres(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ledger",
				"POSTGRES_PASSWORD": "ledger",
				"POSTGRES_DB":       "ledger",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil || container == nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://ledger:ledger@%s:%s/ledger?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
}

func TestLedger(t *testing.T) {
	ledger, err := Open(context.Background(), startPostgres(t))
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	defer ledger.Close()

	ledgertest.Run(t, ledger)
}

func TestLedger_MigrateTwice(t *testing.T) {
	ctx := context.Background()
	ledger, err := Open(ctx, startPostgres(t))
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	defer ledger.Close()

	if err := ledger.Migrate(ctx); err != nil {
		t.Fatalf("second migration run: %v", err)
	}

	var applied int
	if err := ledger.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if applied != 2 {
		t.Errorf("expected 2 applied migrations, got %d", applied)
	}
}
