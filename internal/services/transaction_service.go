package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
	"sixjars/internal/log"
)

// ExpenseInput is an expense as entered by the user or confirmed from a
// classification.
type ExpenseInput struct {
	Amount         core.Money
	JarCode        core.JarCode
	Category       string
	Description    string
	RecognizedText string
}

// TransactionService is the append-only transaction log. Recording an
// expense and debiting its jar happen in one write.
type TransactionService struct {
	env Env
}

func NewTransactionService(env Env) *TransactionService {
	return &TransactionService{env: env.withDefaults()}
}

func (s *TransactionService) RecordExpense(ctx context.Context, userID string, in ExpenseInput) (core.Transaction, error) {
	return s.Append(ctx, userID, core.Transaction{
		Type:           core.TxExpense,
		Amount:         in.Amount,
		JarCode:        in.JarCode,
		Category:       strings.TrimSpace(in.Category),
		Description:    strings.TrimSpace(in.Description),
		RecognizedText: in.RecognizedText,
	})
}

// Append validates and stores tx with a server-side id and timestamp.
// Expenses debit their jar and transfers move balance, atomically with the insert.
func (s *TransactionService) Append(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	return appendTransaction(ctx, s.env, userID, tx)
}

func appendTransaction(ctx context.Context, env Env, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := checkUser(userID); err != nil {
		return core.Transaction{}, err
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	now := env.Now()
	tx.ID = env.NewID()
	tx.UserID = userID
	tx.CreatedAt = now

	var deltas []core.JarDelta
	switch tx.Type {
	case core.TxExpense:
		deltas = []core.JarDelta{core.SpendDelta(tx.JarCode, tx.Amount)}
	case core.TxTransfer:
		deltas = core.TransferDeltas(tx.JarCode, tx.ToJarCode, tx.Amount)
	}

	ev := env.newEvent(userID, core.EventKindFor(tx.Type), now)
	ev.AggregateID = tx.ID
	ev.JarCode = tx.JarCode
	ev.ToJarCode = tx.ToJarCode
	ev.Amount = tx.Amount
	ev.Description = describe(tx.Category, tx.Description)

	err := env.Store.InTx(ctx, func(ltx ledger.Tx) error {
		if len(deltas) > 0 {
			if err := applyDeltas(ctx, ltx, userID, deltas, now); err != nil {
				return err
			}
		}
		if err := ltx.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return ltx.Enqueue(ctx, ev)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record %s: %w", tx.Type, err)
	}
	env.touched(userID)

	slog.InfoContext(ctx, "Transaction recorded",
		log.FieldUserID, userID,
		log.FieldTransactionID, tx.ID,
		"type", tx.Type,
		log.FieldJarCode, tx.JarCode,
		log.FieldAmount, int64(tx.Amount))
	return tx, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	tx, err := s.env.Store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// List returns the newest transactions first, at most f.MaxResults (default 50).
func (s *TransactionService) List(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	if f.JarCode != "" {
		if _, err := core.ByCode(f.JarCode); err != nil {
			return nil, err
		}
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, core.ErrInvalidTxType
	}
	txs, err := s.env.Store.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Remove deletes the record only. The jar debit of a removed expense stays
// in place; the emitted event carries enough to reconcile downstream.
func (s *TransactionService) Remove(ctx context.Context, userID, id string) error {
	tx, err := s.env.Store.GetTransaction(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("remove transaction: %w", err)
	}
	now := s.env.Now()
	ev := s.env.newEvent(userID, core.EventTransactionDeleted, now)
	ev.AggregateID = tx.ID
	ev.JarCode = tx.JarCode
	ev.ToJarCode = tx.ToJarCode
	ev.Amount = tx.Amount
	ev.Description = describe(tx.Category, tx.Description)

	err = s.env.Store.InTx(ctx, func(ltx ledger.Tx) error {
		if err := ltx.DeleteTransaction(ctx, userID, id); err != nil {
			return err
		}
		return ltx.Enqueue(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("remove transaction: %w", err)
	}
	s.env.touched(userID)
	slog.InfoContext(ctx, "Transaction removed", log.FieldUserID, userID, log.FieldTransactionID, id)
	return nil
}

func (s *TransactionService) SumExpensesInWindow(ctx context.Context, userID string, w core.Window) (core.Money, error) {
	sum, err := s.env.Store.SumTransactions(ctx, userID, ledger.SumQuery{Type: core.TxExpense, Window: w})
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return sum, nil
}

// SpentInPeriod sums one jar's expenses in the current month or year.
func (s *TransactionService) SpentInPeriod(ctx context.Context, userID string, code core.JarCode, period core.BudgetPeriod) (core.Money, error) {
	if _, err := core.ByCode(code); err != nil {
		return 0, err
	}
	kind := core.WindowMonth
	if period == core.BudgetYearly {
		kind = core.WindowYear
	}
	w, err := core.ResolveWindow(kind, 0, 0, s.env.Now(), s.env.Location)
	if err != nil {
		return 0, err
	}
	sum, err := s.env.Store.SumTransactions(ctx, userID, ledger.SumQuery{Type: core.TxExpense, JarCode: code, Window: w})
	if err != nil {
		return 0, fmt.Errorf("sum %s spending: %w", code, err)
	}
	return sum, nil
}

// MonthToDateSpent sums one jar's expenses since the start of the current month.
func (s *TransactionService) MonthToDateSpent(ctx context.Context, userID string, code core.JarCode) (core.Money, error) {
	return s.SpentInPeriod(ctx, userID, code, core.BudgetMonthly)
}

func describe(category, description string) string {
	switch {
	case category == "":
		return description
	case description == "":
		return category
	}
	return category + ": " + description
}
