// Package ledger declares the storage ports the jar services depend on.
// Backends live in internal/storage (SQLite), internal/storage/postgres and
// internal/storage/memory.
package ledger

import (
	"context"
	"time"

	"sixjars/internal/core"
)

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxCompleted  OutboxStatus = "completed"
	OutboxFailed     OutboxStatus = "failed"
)

type (
	OutboxStatus string

	// OutboxEntry is a queued ledger event awaiting publication.
	OutboxEntry struct {
		ID        int64
		Event     core.LedgerEvent
		Status    OutboxStatus
		Attempts  int
		LastError string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	OutboxStats struct {
		Pending    int64 `json:"pending"`
		Processing int64 `json:"processing"`
		Completed  int64 `json:"completed"`
		Failed     int64 `json:"failed"`
	}

	// SumQuery selects transactions to add up. Zero fields match anything.
	SumQuery struct {
		Type    core.TxType
		JarCode core.JarCode
		Window  core.Window
	}

	// Tx is one atomic write. Every jar accumulator change is an increment,
	// never an overwrite, except ResetJars.
	Tx interface {
		// EnsureJars creates the six zeroed jars if the user has none.
		// It reports whether rows were created.
		EnsureJars(ctx context.Context, userID string, now time.Time) (bool, error)
		Jars(ctx context.Context, userID string) ([]core.JarState, error)
		// ApplyJarDeltas increments every listed jar or fails with
		// core.ErrNotFound when one of them does not exist.
		ApplyJarDeltas(ctx context.Context, userID string, deltas []core.JarDelta, now time.Time) error
		ArchivePeriods(ctx context.Context, periods []core.JarPeriod) error
		// ResetJars sets balance := allocated, spent := 0 for every jar.
		ResetJars(ctx context.Context, userID string, now time.Time) error
		InsertIncome(ctx context.Context, rec core.IncomeRecord) error
		InsertTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, userID, id string) error
		Enqueue(ctx context.Context, ev core.LedgerEvent) error
	}

	JarReader interface {
		// ListJars returns the user's jars in catalog order, or an empty
		// slice when the user has none yet.
		ListJars(ctx context.Context, userID string) ([]core.JarState, error)
		ListJarOwners(ctx context.Context) ([]string, error)
		ListPeriods(ctx context.Context, userID string, code core.JarCode, limit int) ([]core.JarPeriod, error)
	}

	IncomeReader interface {
		GetIncome(ctx context.Context, userID, id string) (core.IncomeRecord, error)
		ListIncomes(ctx context.Context, userID string, limit int) ([]core.IncomeRecord, error)
		SumIncome(ctx context.Context, userID string, w core.Window) (core.Money, error)
	}

	TransactionReader interface {
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error)
		SumTransactions(ctx context.Context, userID string, q SumQuery) (core.Money, error)
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) error
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
		GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
		// ListBudgets returns budgets newest start date first; an empty
		// code lists every jar.
		ListBudgets(ctx context.Context, userID string, code core.JarCode) ([]core.Budget, error)
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.Goal) error
		UpdateGoal(ctx context.Context, g core.Goal) error
		DeleteGoal(ctx context.Context, userID, id string) error
		GetGoal(ctx context.Context, userID, id string) (core.Goal, error)
		// ListGoals returns goals newest first.
		ListGoals(ctx context.Context, userID string, f core.GoalFilter) ([]core.Goal, error)
		// AddGoalProgress applies core.Goal.AddProgress in one statement and
		// returns the updated goal.
		AddGoalProgress(ctx context.Context, userID, id string, delta core.Money, now time.Time) (core.Goal, error)
	}

	// Outbox is the queue drained by the event processor.
	Outbox interface {
		DequeueOutbox(ctx context.Context, limit int) ([]OutboxEntry, error)
		MarkOutboxProcessing(ctx context.Context, id int64) error
		MarkOutboxComplete(ctx context.Context, id int64) error
		MarkOutboxFailed(ctx context.Context, id int64, errMsg string) error
		// RequeueOutbox bumps the attempt counter and returns the entry to pending.
		RequeueOutbox(ctx context.Context, id int64, errMsg string) error
		CleanupOutbox(ctx context.Context, olderThan time.Duration) (int64, error)
		ResetStaleOutbox(ctx context.Context, olderThan time.Duration) (int64, error)
		RetryFailedOutbox(ctx context.Context) (int64, error)
		OutboxStats(ctx context.Context) (OutboxStats, error)
	}

	// Store is the full persistence handle owned by the process entry point.
	Store interface {
		JarReader
		IncomeReader
		TransactionReader
		BudgetStore
		GoalStore
		Outbox
		// InTx runs fn inside one atomic write. Nothing fn did persists if it
		// returns an error.
		InTx(ctx context.Context, fn func(Tx) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
