// Package ledgertest holds the behaviour every ledger.Store backend must share.
package ledgertest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

// Factory returns an empty store; cleanup is registered on t.
type Factory func(t *testing.T) ledger.Store

// Run exercises a backend against the shared contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("EnsureJarsIsIdempotent", func(t *testing.T) { testEnsureJars(t, newStore(t)) })
	t.Run("DeltasAreAllOrNothing", func(t *testing.T) { testDeltasAllOrNothing(t, newStore(t)) })
	t.Run("FailedTxRollsBack", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
	t.Run("ResetArchivesPeriod", func(t *testing.T) { testReset(t, newStore(t)) })
	t.Run("IncomesAndTransactions", func(t *testing.T) { testRecords(t, newStore(t)) })
	t.Run("Budgets", func(t *testing.T) { testBudgets(t, newStore(t)) })
	t.Run("Goals", func(t *testing.T) { testGoals(t, newStore(t)) })
	t.Run("GoalProgressIsAtomic", func(t *testing.T) { testGoalProgressConcurrent(t, newStore(t)) })
	t.Run("Outbox", func(t *testing.T) { testOutbox(t, newStore(t)) })
	t.Run("OutboxKeepsEventTime", func(t *testing.T) { testOutboxEventTime(t, newStore(t)) })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func ensure(t *testing.T, s ledger.Store, userID string) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx ledger.Tx) error {
		_, err := tx.EnsureJars(context.Background(), userID, now())
		return err
	})
	require.NoError(t, err)
}

func jarMap(t *testing.T, s ledger.Store, userID string) map[core.JarCode]core.JarState {
	t.Helper()
	jars, err := s.ListJars(context.Background(), userID)
	require.NoError(t, err)
	out := make(map[core.JarCode]core.JarState, len(jars))
	for _, j := range jars {
		out[j.Code] = j
	}
	return out
}

func testEnsureJars(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	jars, err := s.ListJars(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, jars)

	var created bool
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		created, err = tx.EnsureJars(ctx, "u1", now())
		return err
	}))
	require.True(t, created)

	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		return tx.ApplyJarDeltas(ctx, "u1", []core.JarDelta{{Code: core.NEC, Allocated: 10, Balance: 10}}, now())
	}))
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		created, err = tx.EnsureJars(ctx, "u1", now())
		return err
	}))
	require.False(t, created)

	jars, err = s.ListJars(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, jars, 6)
	require.Equal(t, core.NEC, jars[0].Code)
	require.Equal(t, core.Money(10), jars[0].Allocated, "second EnsureJars must not reset")

	owners, err := s.ListJarOwners(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, owners)
}

func testDeltasAllOrNothing(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	ensure(t, s, "u1")
	err := s.InTx(ctx, func(tx ledger.Tx) error {
		return tx.ApplyJarDeltas(ctx, "u1", []core.JarDelta{
			{Code: core.NEC, Allocated: 100, Balance: 100},
			{Code: "XXX", Allocated: 100, Balance: 100},
		}, now())
	})
	require.ErrorIs(t, err, core.ErrNotFound)
	require.Equal(t, core.Money(0), jarMap(t, s, "u1")[core.NEC].Allocated)
}

func testRollback(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	ensure(t, s, "u1")
	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx ledger.Tx) error {
		rec := core.IncomeRecord{ID: uuid.NewString(), UserID: "u1", Amount: 1000, Source: "salary",
			Allocated: core.AllocateAll(1000), CreatedAt: now()}
		if err := tx.InsertIncome(ctx, rec); err != nil {
			return err
		}
		if err := tx.ApplyJarDeltas(ctx, "u1", rec.Allocated.Deltas(), now()); err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, core.LedgerEvent{ID: uuid.NewString(), UserID: "u1", Kind: core.EventIncomeRecorded, OccurredAt: now()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	incomes, err := s.ListIncomes(ctx, "u1", 0)
	require.NoError(t, err)
	require.Empty(t, incomes)
	for _, j := range jarMap(t, s, "u1") {
		require.Zero(t, j.Allocated)
		require.Zero(t, j.Balance)
	}
	st, err := s.OutboxStats(ctx)
	require.NoError(t, err)
	require.Zero(t, st.Pending)
}

func testConcurrentIncrements(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	ensure(t, s, "u1")
	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				var d core.JarDelta
				if (w+i)%2 == 0 {
					d = core.JarDelta{Code: core.NEC, Allocated: 7, Balance: 7}
				} else {
					d = core.SpendDelta(core.NEC, 3)
				}
				errs <- s.InTx(ctx, func(tx ledger.Tx) error {
					return tx.ApplyJarDeltas(ctx, "u1", []core.JarDelta{d}, now())
				})
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	nec := jarMap(t, s, "u1")[core.NEC]
	require.Equal(t, core.Money(40*7), nec.Allocated)
	require.Equal(t, core.Money(40*3), nec.Spent)
	require.Equal(t, nec.Allocated-nec.Spent, nec.Balance)
}

func testReset(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	ensure(t, s, "u1")
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		return tx.ApplyJarDeltas(ctx, "u1", []core.JarDelta{
			{Code: core.NEC, Allocated: 500, Balance: 500},
			core.SpendDelta(core.NEC, 200),
		}, now())
	}))

	end := now()
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		jars, err := tx.Jars(ctx, "u1")
		if err != nil {
			return err
		}
		periods := make([]core.JarPeriod, 0, len(jars))
		for _, j := range jars {
			periods = append(periods, core.JarPeriod{ID: uuid.NewString(), UserID: "u1", Code: j.Code,
				PeriodStart: j.PeriodStartedAt, PeriodEnd: end, Allocated: j.Allocated, Spent: j.Spent, Balance: j.Balance})
		}
		if err := tx.ArchivePeriods(ctx, periods); err != nil {
			return err
		}
		return tx.ResetJars(ctx, "u1", end)
	}))

	nec := jarMap(t, s, "u1")[core.NEC]
	require.Equal(t, core.Money(500), nec.Allocated)
	require.Zero(t, nec.Spent)
	require.Equal(t, core.Money(500), nec.Balance)
	require.True(t, nec.PeriodStartedAt.Equal(end))

	periods, err := s.ListPeriods(ctx, "u1", core.NEC, 10)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	require.Equal(t, core.Money(200), periods[0].Spent)
	require.Equal(t, core.Money(300), periods[0].Balance)

	all, err := s.ListPeriods(ctx, "u1", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
}

func testRecords(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	incomeID := uuid.NewString()
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		if err := tx.InsertIncome(ctx, core.IncomeRecord{ID: incomeID, UserID: "u1", Amount: 10000000,
			Source: "Lương", Note: "tháng 3", Allocated: core.AllocateAll(10000000), AutoAllocated: true, CreatedAt: base}); err != nil {
			return err
		}
		for i, amount := range []core.Money{50000, 20000, 30000} {
			jar := core.NEC
			if i == 2 {
				jar = core.PLAY
			}
			if err := tx.InsertTransaction(ctx, core.Transaction{ID: uuid.NewString(), UserID: "u1", Type: core.TxExpense,
				Amount: amount, JarCode: jar, Category: "Ăn uống", CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
				return err
			}
		}
		return tx.InsertTransaction(ctx, core.Transaction{ID: uuid.NewString(), UserID: "u2", Type: core.TxExpense,
			Amount: 999, JarCode: core.NEC, CreatedAt: base})
	}))

	rec, err := s.GetIncome(ctx, "u1", incomeID)
	require.NoError(t, err)
	require.Equal(t, core.Money(5500000), rec.Allocated[core.NEC])
	require.True(t, rec.AutoAllocated)
	_, err = s.GetIncome(ctx, "u2", incomeID)
	require.ErrorIs(t, err, core.ErrNotFound)

	march, _ := core.MonthWindow(2025, 3, time.UTC)
	april, _ := core.MonthWindow(2025, 4, time.UTC)
	sum, err := s.SumIncome(ctx, "u1", march)
	require.NoError(t, err)
	require.Equal(t, core.Money(10000000), sum)
	sum, err = s.SumIncome(ctx, "u1", april)
	require.NoError(t, err)
	require.Zero(t, sum)

	txs, err := s.ListTransactions(ctx, "u1", core.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, core.Money(30000), txs[0].Amount, "newest first")

	necOnly, err := s.ListTransactions(ctx, "u1", core.TransactionFilter{JarCode: core.NEC, MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, necOnly, 1)
	require.Equal(t, core.Money(20000), necOnly[0].Amount)

	total, err := s.SumTransactions(ctx, "u1", ledger.SumQuery{Type: core.TxExpense, Window: march})
	require.NoError(t, err)
	require.Equal(t, core.Money(100000), total)
	necTotal, err := s.SumTransactions(ctx, "u1", ledger.SumQuery{Type: core.TxExpense, JarCode: core.NEC, Window: core.Lifetime()})
	require.NoError(t, err)
	require.Equal(t, core.Money(70000), necTotal)

	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		return tx.DeleteTransaction(ctx, "u1", txs[0].ID)
	}))
	_, err = s.GetTransaction(ctx, "u1", txs[0].ID)
	require.ErrorIs(t, err, core.ErrNotFound)
	err = s.InTx(ctx, func(tx ledger.Tx) error { return tx.DeleteTransaction(ctx, "u2", txs[1].ID) })
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testBudgets(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	b := core.Budget{ID: uuid.NewString(), UserID: "u1", JarCode: core.NEC, Amount: 1000000,
		Period: core.BudgetMonthly, StartDate: start, EndDate: &end, AlertThreshold: 80, CreatedAt: start, UpdatedAt: start}
	require.NoError(t, s.CreateBudget(ctx, b))
	later := core.Budget{ID: uuid.NewString(), UserID: "u1", JarCode: core.NEC, Amount: 2000000,
		Period: core.BudgetYearly, StartDate: start.AddDate(0, 6, 0), CreatedAt: start, UpdatedAt: start}
	require.NoError(t, s.CreateBudget(ctx, later))

	got, err := s.GetBudget(ctx, "u1", b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndDate)
	require.True(t, got.EndDate.Equal(end))

	list, err := s.ListBudgets(ctx, "u1", core.NEC)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, later.ID, list[0].ID, "latest start date first")
	require.Nil(t, list[0].EndDate)

	b.Amount = 1500000
	b.EndDate = nil
	require.NoError(t, s.UpdateBudget(ctx, b))
	got, err = s.GetBudget(ctx, "u1", b.ID)
	require.NoError(t, err)
	require.Equal(t, core.Money(1500000), got.Amount)
	require.Nil(t, got.EndDate)

	require.ErrorIs(t, s.DeleteBudget(ctx, "u2", b.ID), core.ErrNotFound)
	require.NoError(t, s.DeleteBudget(ctx, "u1", b.ID))
	_, err = s.GetBudget(ctx, "u1", b.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testGoals(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	g := core.Goal{ID: uuid.NewString(), UserID: "u1", Title: "Laptop", TargetAmount: 1000,
		TargetDate: &due, JarCode: core.LTSS, Status: core.GoalActive, Priority: core.PriorityHigh,
		CreatedAt: created, UpdatedAt: created}
	require.NoError(t, s.CreateGoal(ctx, g))
	older := core.Goal{ID: uuid.NewString(), UserID: "u1", Title: "Course", TargetAmount: 500,
		Status: core.GoalCancelled, Priority: core.PriorityLow,
		CreatedAt: created.Add(-time.Hour), UpdatedAt: created}
	require.NoError(t, s.CreateGoal(ctx, older))

	got, err := s.GetGoal(ctx, "u1", g.ID)
	require.NoError(t, err)
	require.Equal(t, "Laptop", got.Title)
	require.Equal(t, core.LTSS, got.JarCode)
	require.NotNil(t, got.TargetDate)
	require.True(t, got.TargetDate.Equal(due))
	_, err = s.GetGoal(ctx, "u2", g.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	list, err := s.ListGoals(ctx, "u1", core.GoalFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, g.ID, list[0].ID, "newest first")
	require.Nil(t, list[1].TargetDate)

	list, err = s.ListGoals(ctx, "u1", core.GoalFilter{Status: core.GoalActive, JarCode: core.LTSS})
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = s.ListGoals(ctx, "u2", core.GoalFilter{})
	require.NoError(t, err)
	require.Empty(t, list)

	at := created.Add(24 * time.Hour)
	got, err = s.AddGoalProgress(ctx, "u1", g.ID, 600, at)
	require.NoError(t, err)
	require.Equal(t, core.Money(600), got.CurrentAmount)
	require.Equal(t, core.GoalActive, got.Status)
	require.True(t, got.UpdatedAt.Equal(at))

	got, err = s.AddGoalProgress(ctx, "u1", g.ID, 400, at)
	require.NoError(t, err)
	require.Equal(t, core.Money(1000), got.CurrentAmount)
	require.Equal(t, core.GoalCompleted, got.Status, "reaching the target completes the goal")

	got, err = s.AddGoalProgress(ctx, "u1", g.ID, -5000, at)
	require.NoError(t, err)
	require.Equal(t, core.Money(0), got.CurrentAmount, "floored at zero")
	require.Equal(t, core.GoalCompleted, got.Status)

	got, err = s.AddGoalProgress(ctx, "u1", older.ID, 900, at)
	require.NoError(t, err)
	require.Equal(t, core.GoalCancelled, got.Status, "only active goals complete")

	_, err = s.AddGoalProgress(ctx, "u2", g.ID, 1, at)
	require.ErrorIs(t, err, core.ErrNotFound)

	g.Title = "Gaming laptop"
	g.TargetDate = nil
	g.Status = core.GoalActive
	g.UpdatedAt = at
	require.NoError(t, s.UpdateGoal(ctx, g))
	got, err = s.GetGoal(ctx, "u1", g.ID)
	require.NoError(t, err)
	require.Equal(t, "Gaming laptop", got.Title)
	require.Nil(t, got.TargetDate)
	require.True(t, got.CreatedAt.Equal(created))

	require.ErrorIs(t, s.DeleteGoal(ctx, "u2", g.ID), core.ErrNotFound)
	require.NoError(t, s.DeleteGoal(ctx, "u1", g.ID))
	_, err = s.GetGoal(ctx, "u1", g.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testGoalProgressConcurrent(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	g := core.Goal{ID: uuid.NewString(), UserID: "u1", Title: "Trip", TargetAmount: 1_000_000,
		Status: core.GoalActive, Priority: core.PriorityMedium, CreatedAt: now(), UpdatedAt: now()}
	require.NoError(t, s.CreateGoal(ctx, g))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddGoalProgress(ctx, "u1", g.ID, 10, now())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetGoal(ctx, "u1", g.ID)
	require.NoError(t, err)
	require.Equal(t, core.Money(10*workers), got.CurrentAmount)
}

func testOutbox(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
			return tx.Enqueue(ctx, core.LedgerEvent{ID: uuid.NewString(), UserID: "u1", Kind: core.EventExpenseRecorded,
				JarCode: core.NEC, Amount: core.Money(100 * (i + 1)), OccurredAt: now()})
		}))
	}

	batch, err := s.DequeueOutbox(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, core.Money(100), batch[0].Event.Amount, "oldest first")
	require.Equal(t, core.NEC, batch[0].Event.JarCode)

	require.NoError(t, s.MarkOutboxProcessing(ctx, batch[0].ID))
	require.NoError(t, s.MarkOutboxComplete(ctx, batch[0].ID))
	require.NoError(t, s.MarkOutboxProcessing(ctx, batch[1].ID))
	require.NoError(t, s.RequeueOutbox(ctx, batch[1].ID, "broker down"))

	next, err := s.DequeueOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, next, 2)
	require.Equal(t, 1, next[0].Attempts)
	require.Equal(t, "broker down", next[0].LastError)

	require.NoError(t, s.MarkOutboxFailed(ctx, next[1].ID, "bad payload"))
	st, err := s.OutboxStats(ctx)
	require.NoError(t, err)
	require.Equal(t, ledger.OutboxStats{Pending: 1, Completed: 1, Failed: 1}, st)

	n, err := s.RetryFailedOutbox(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, s.MarkOutboxProcessing(ctx, next[0].ID))
	n, err = s.ResetStaleOutbox(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = s.CleanupOutbox(ctx, -time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	st, err = s.OutboxStats(ctx)
	require.NoError(t, err)
	require.Equal(t, ledger.OutboxStats{Pending: 2}, st)
}

func testOutboxEventTime(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	at := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		return tx.Enqueue(ctx, core.LedgerEvent{ID: uuid.NewString(), UserID: "u1", Kind: core.EventPeriodReset, OccurredAt: at})
	}))

	batch, err := s.DequeueOutbox(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.True(t, batch[0].CreatedAt.Equal(at), "created_at %v, want %v", batch[0].CreatedAt, at)
}
