package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
	"sixjars/internal/ledger/ledgertest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store { return newTestRepo(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.Ping(context.Background()))
}

func TestIncomeAllocationRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	created := time.Date(2025, 2, 1, 9, 30, 0, 123456789, time.UTC)
	rec := core.IncomeRecord{ID: "inc-1", UserID: "u1", Amount: 7, Source: "tip",
		Allocated: core.AllocateAll(7), CreatedAt: created}
	require.NoError(t, repo.InTx(ctx, func(tx ledger.Tx) error { return tx.InsertIncome(ctx, rec) }))

	got, err := repo.GetIncome(ctx, "u1", "inc-1")
	require.NoError(t, err)
	require.Equal(t, rec.Allocated, got.Allocated)
	require.True(t, got.CreatedAt.Equal(created), "nanosecond timestamps survive")
	require.False(t, got.AutoAllocated)
}

func TestNegativeBalanceIsStored(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.InTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.EnsureJars(ctx, "u1", time.Now()); err != nil {
			return err
		}
		return tx.ApplyJarDeltas(ctx, "u1", []core.JarDelta{core.SpendDelta(core.PLAY, 250000)}, time.Now())
	}))
	jars, err := repo.ListJars(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, core.Money(-250000), jars[4].Balance)
	require.Equal(t, core.PLAY, jars[4].Code)
}
