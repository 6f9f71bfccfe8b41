// Shared helpers for end-to-end tests. These require a local Docker daemon
// and are skipped under -short.
package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alphacouncil/core/internal/audit"
)

// PostgresContainer holds the testcontainer instance, the pool connected to
// it, and a Store with its schema already initialized.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	Store     *audit.Store
}

// SetupTestStore starts an ephemeral Postgres container, connects a pool,
// and initializes the audit schema. Cleanup is registered on t.
func SetupTestStore(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed e2e test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("alphacouncil_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start Postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := audit.NewStoreWithPool(pool)
	require.NoError(t, store.InitSchema(ctx))

	return &PostgresContainer{Container: container, Pool: pool, Store: store}
}
