//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const appRoleSQL = `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = 'tenantdesk_app') THEN
			CREATE ROLE tenantdesk_app LOGIN PASSWORD 'app';
		END IF;
	END
	$$;
	GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO tenantdesk_app;
	GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO tenantdesk_app;
`

type testDB struct {
	// owner connects as the database owner, a superuser that bypasses row level security
	owner *pgxpool.Pool

	// app connects as a plain role, so row level security applies
	app *pgxpool.Pool
}

func setupPostgresContainer(t *testing.T, ctx context.Context) (*testDB, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := func(user, password string) string {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/testdb?sslmode=disable", user, password, host, port.Port())
	}

	owner, err := NewPool(ctx, &PoolConfig{ConnString: connString("test", "test"), MaxConns: 4, MinConns: 1})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, owner))

	_, err = owner.Exec(ctx, appRoleSQL)
	require.NoError(t, err)

	app, err := NewPool(ctx, &PoolConfig{ConnString: connString("tenantdesk_app", "app"), MaxConns: 8, MinConns: 1})
	require.NoError(t, err)

	cleanup := func() {
		app.Close()
		owner.Close()
		_ = container.Terminate(ctx)
	}

	return &testDB{owner: owner, app: app}, cleanup
}

func TestIntegration_RunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	require.NoError(t, RunMigrations(ctx, db.owner))

	var count int
	err := db.owner.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
