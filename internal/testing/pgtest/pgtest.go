// Package pgtest opens a migrated, emptied PostgreSQL database for
// integration tests. Tests are skipped unless STOCKLEDGER_TEST_PG_DSN is set.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
)

// DSNEnv names the variable holding the test database DSN.
const DSNEnv = "STOCKLEDGER_TEST_PG_DSN"

// Good is a catalogue row seeded by Open.
type Good struct {
	ID   int64
	Code string
	Name string
}

// Open connects, migrates, truncates every table and seeds goods. The pool
// is closed when the test ends.
func Open(t *testing.T, goods ...Good) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE audit_logs, approvals, stock_adjustments, stock_balances, stock_transactions, goods RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	for _, g := range goods {
		_, err := pool.Exec(ctx, `INSERT INTO goods (id, code, name) VALUES ($1, $2, $3)`, g.ID, g.Code, g.Name)
		require.NoError(t, err)
	}
	return pool
}
