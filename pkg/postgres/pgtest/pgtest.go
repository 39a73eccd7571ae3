// Package pgtest opens the database used by the integration tests. Tests
// are skipped unless TEST_DATABASE_URL is set.
package pgtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shoping-market/pkg/postgres"
)

const envURL = "TEST_DATABASE_URL"

// Open connects to TEST_DATABASE_URL, applies the repository migrations and
// empties every table. The pool is closed when the test ends.
func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()
	url := strings.TrimSpace(os.Getenv(envURL))
	if url == "" {
		t.Skipf("%s not set", envURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Open(ctx, postgres.Config{URL: url, QueryTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = postgres.Migrate(ctx, pool, MigrationsDir())
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `TRUNCATE products, product_variants, carts, cart_items,
		orders, order_items, seller_metrics, checkout_sessions, idempotency_keys, outbox CASCADE`)
	require.NoError(t, err)
	return pool
}

// MigrationsDir is the repository's migrations directory.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}
