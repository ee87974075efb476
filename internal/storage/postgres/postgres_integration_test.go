//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"sixjars/internal/ledger"
	"sixjars/internal/ledger/ledgertest"
)

// Requires POSTGRES_TEST_DSN pointing at a disposable database; every
// subtest truncates the ledger tables.
func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ledgertest.Run(t, func(t *testing.T) ledger.Store {
		ctx := context.Background()
		s, err := Connect(ctx, dsn)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE jars, jar_periods, incomes, transactions, budgets, goals, outbox RESTART IDENTITY`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
