package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Domenick1991/parking/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testDBLockID int64 = 720431996

// NewTestPool connects to TEST_DATABASE_URL, applies migrations and truncates
// all tables. Tests are skipped when the variable is unset or the database is
// unreachable.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	cfg.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(pool.Close)

	lockTestDB(t, pool)

	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE reservations, parking_spots, facilities, vehicles, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func lockTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Release()
		t.Fatalf("acquire test lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Release()
	})
}
