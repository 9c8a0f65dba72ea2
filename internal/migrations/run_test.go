package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping migrations integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return db
}

func migrationsPath(t *testing.T) string {
	root, err := filepath.Abs("../..")
	require.NoError(t, err)
	return filepath.Join(root, "migrations")
}

func TestRun(t *testing.T) {
	db := getTestDB(t)

	require.NoError(t, Run(db, migrationsPath(t)))

	for _, table := range []string{"users", "login_sessions", "subscriptions", "payments"} {
		var exists bool
		err := db.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.Truef(t, exists, "table %s should exist", table)
	}

	// повторный запуск без новых миграций
	assert.NoError(t, Run(db, migrationsPath(t)))
}

func TestRun_BadPath(t *testing.T) {
	db := getTestDB(t)

	err := Run(db, "/nonexistent/migrations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations.Run")
}
