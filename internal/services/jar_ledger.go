package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
	"sixjars/internal/log"
)

// JarLedger owns per-user jar state. Every accumulator change is an
// increment applied inside one ledger transaction.
type JarLedger struct {
	env Env
}

func NewJarLedger(env Env) *JarLedger {
	return &JarLedger{env: env.withDefaults()}
}

// Initialize creates the six zeroed jars. It is a no-op for existing users.
func (l *JarLedger) Initialize(ctx context.Context, userID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	var created bool
	err := l.env.Store.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		created, err = tx.EnsureJars(ctx, userID, l.env.Now())
		return err
	})
	if err != nil {
		return fmt.Errorf("initialize jars: %w", err)
	}
	if created {
		slog.InfoContext(ctx, "Jars initialized", log.FieldUserID, userID)
	}
	return nil
}

// List returns the user's jars in catalog order, initializing them on first access.
func (l *JarLedger) List(ctx context.Context, userID string) ([]core.JarState, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	jars, err := l.env.Store.ListJars(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list jars: %w", err)
	}
	if len(jars) == len(core.Codes()) {
		return jars, nil
	}
	if err := l.Initialize(ctx, userID); err != nil {
		return nil, err
	}
	jars, err = l.env.Store.ListJars(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list jars: %w", err)
	}
	return jars, nil
}

// GetAll is List keyed by jar code.
func (l *JarLedger) GetAll(ctx context.Context, userID string) (map[core.JarCode]core.JarState, error) {
	jars, err := l.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[core.JarCode]core.JarState, len(jars))
	for _, j := range jars {
		out[j.Code] = j
	}
	return out, nil
}

func (l *JarLedger) Get(ctx context.Context, userID string, code core.JarCode) (core.JarState, error) {
	if _, err := core.ByCode(code); err != nil {
		return core.JarState{}, err
	}
	jars, err := l.GetAll(ctx, userID)
	if err != nil {
		return core.JarState{}, err
	}
	return jars[code], nil
}

// Allocate adds each amount to the jar's allocated and balance, all or nothing.
func (l *JarLedger) Allocate(ctx context.Context, userID string, alloc core.Allocation) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := validateAllocation(alloc); err != nil {
		return err
	}
	err := l.env.Store.InTx(ctx, func(tx ledger.Tx) error {
		return applyDeltas(ctx, tx, userID, alloc.Deltas(), l.env.Now())
	})
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}
	slog.InfoContext(ctx, "Allocation applied", log.FieldUserID, userID, "total", alloc.Total())
	return nil
}

// Spend debits a jar. Overspending is allowed and leaves a negative balance.
func (l *JarLedger) Spend(ctx context.Context, userID string, code core.JarCode, amount core.Money) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if _, err := core.ByCode(code); err != nil {
		return err
	}
	if err := amount.Validate(); err != nil {
		return err
	}
	err := l.env.Store.InTx(ctx, func(tx ledger.Tx) error {
		return applyDeltas(ctx, tx, userID, []core.JarDelta{core.SpendDelta(code, amount)}, l.env.Now())
	})
	if err != nil {
		return fmt.Errorf("spend from %s: %w", code, err)
	}
	return nil
}

// Transfer moves balance between two jars and records a transfer
// transaction in the same write. Allocated and spent are untouched.
func (l *JarLedger) Transfer(ctx context.Context, userID string, from, to core.JarCode, amount core.Money, note string) (core.Transaction, error) {
	tx := core.Transaction{
		Type:        core.TxTransfer,
		Amount:      amount,
		JarCode:     from,
		ToJarCode:   to,
		Category:    "transfer",
		Description: note,
	}
	return appendTransaction(ctx, l.env, userID, tx)
}

// ResetPeriod closes the current period: each jar's state is archived as a
// JarPeriod, then balance := allocated and spent := 0.
func (l *JarLedger) ResetPeriod(ctx context.Context, userID string) ([]core.JarPeriod, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	now := l.env.Now()
	var periods []core.JarPeriod
	err := l.env.Store.InTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.EnsureJars(ctx, userID, now); err != nil {
			return err
		}
		jars, err := tx.Jars(ctx, userID)
		if err != nil {
			return err
		}
		periods = make([]core.JarPeriod, 0, len(jars))
		for _, j := range jars {
			periods = append(periods, core.JarPeriod{
				ID:          l.env.NewID(),
				UserID:      userID,
				Code:        j.Code,
				PeriodStart: j.PeriodStartedAt,
				PeriodEnd:   now,
				Allocated:   j.Allocated,
				Spent:       j.Spent,
				Balance:     j.Balance,
			})
		}
		if err := tx.ArchivePeriods(ctx, periods); err != nil {
			return err
		}
		if err := tx.ResetJars(ctx, userID, now); err != nil {
			return err
		}
		return tx.Enqueue(ctx, l.env.newEvent(userID, core.EventPeriodReset, now))
	})
	if err != nil {
		return nil, fmt.Errorf("reset period: %w", err)
	}
	slog.InfoContext(ctx, "Jar period reset", log.FieldUserID, userID, "jars", len(periods))
	return periods, nil
}

// Periods lists archived periods, newest first. An empty code lists every jar.
func (l *JarLedger) Periods(ctx context.Context, userID string, code core.JarCode, limit int) ([]core.JarPeriod, error) {
	if code != "" {
		if _, err := core.ByCode(code); err != nil {
			return nil, err
		}
	}
	periods, err := l.env.Store.ListPeriods(ctx, userID, code, limit)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

func validateAllocation(alloc core.Allocation) error {
	for code, amount := range alloc {
		if _, err := core.ByCode(code); err != nil {
			return err
		}
		if amount < 0 || amount > core.MaxAmount {
			return fmt.Errorf("%w: %s allocation %d", core.ErrInvalidAmount, code, amount)
		}
	}
	return nil
}

// applyDeltas lazily creates the user's jars and applies deltas in tx.
func applyDeltas(ctx context.Context, tx ledger.Tx, userID string, deltas []core.JarDelta, now time.Time) error {
	if _, err := tx.EnsureJars(ctx, userID, now); err != nil {
		return err
	}
	return tx.ApplyJarDeltas(ctx, userID, deltas, now)
}
