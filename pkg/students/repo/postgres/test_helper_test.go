package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// TestDB represents a test database connection
type TestDB struct {
	Pool *pgxpool.Pool
}

// NewTestDB connects to TEST_DATABASE_URL and skips the test when it is unset.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")

	err = pool.Ping(ctx)
	require.NoError(t, err, "Failed to ping test database")

	return &TestDB{Pool: pool}
}

// RunTest runs fn against a freshly migrated students table.
func RunTest(t *testing.T, fn func(t *testing.T, repo *Repository)) {
	t.Helper()
	db := NewTestDB(t)
	defer db.Pool.Close()

	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, "DROP TABLE IF EXISTS students")
	require.NoError(t, err, "Failed to reset students table")

	repo := NewWithPool(db.Pool)
	require.NoError(t, repo.Migrate(ctx))

	fn(t, repo)
}
