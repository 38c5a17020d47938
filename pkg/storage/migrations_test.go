package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrationsIdempotent(t *testing.T) {
	db := RequireDatabase(t)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, db))
	// A second run must find everything applied and do nothing.
	require.NoError(t, RunMigrations(ctx, db))

	var applied int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	require.Equal(t, len(GetMigrations()), applied)
}
