//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shoping-market/pkg/postgres"
	"github.com/dwikikusuma/shoping-market/pkg/postgres/pgtest"
)

func TestMigrateAppliesEachFileOnce(t *testing.T) {
	pool := pgtest.Open(t)
	ctx := context.Background()

	applied, err := postgres.Migrate(ctx, pool, pgtest.MigrationsDir())
	require.NoError(t, err)
	assert.Empty(t, applied)

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 4, n)
}
