package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

func (s *Store) ListJars(ctx context.Context, userID string) ([]core.JarState, error) {
	return listJars(ctx, s.pool, userID, false)
}

func (s *Store) ListJarOwners(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM jars ORDER BY user_id`)
	if err != nil {
		return nil, core.NewStorageError("list jar owners", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, core.NewStorageError("list jar owners", err)
	}
	return owners, nil
}

func (s *Store) ListPeriods(ctx context.Context, userID string, code core.JarCode, limit int) ([]core.JarPeriod, error) {
	query := `SELECT id, user_id, code, period_start, period_end, allocated, spent, balance
		FROM jar_periods WHERE user_id = $1`
	args := []any{userID}
	if code != "" {
		args = append(args, string(code))
		query += ` AND code = $` + strconv.Itoa(len(args))
	}
	args = append(args, core.ClampLimit(limit))
	query += ` ORDER BY period_end DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageError("list periods", err)
	}
	periods, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.JarPeriod, error) {
		var (
			p                         core.JarPeriod
			c                         string
			allocated, spent, balance int64
		)
		if err := row.Scan(&p.ID, &p.UserID, &c, &p.PeriodStart, &p.PeriodEnd, &allocated, &spent, &balance); err != nil {
			return core.JarPeriod{}, err
		}
		p.Code = core.JarCode(c)
		p.PeriodStart, p.PeriodEnd = p.PeriodStart.UTC(), p.PeriodEnd.UTC()
		p.Allocated, p.Spent, p.Balance = core.Money(allocated), core.Money(spent), core.Money(balance)
		return p, nil
	})
	if err != nil {
		return nil, core.NewStorageError("list periods", err)
	}
	return periods, nil
}

const incomeColumns = `id, user_id, amount, source, category, note, allocated, auto_allocated, created_at`

func scanIncome(row pgx.Row) (core.IncomeRecord, error) {
	var (
		rec    core.IncomeRecord
		amount int64
		alloc  []byte
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &amount, &rec.Source, &rec.Category, &rec.Note,
		&alloc, &rec.AutoAllocated, &rec.CreatedAt); err != nil {
		return core.IncomeRecord{}, err
	}
	if err := json.Unmarshal(alloc, &rec.Allocated); err != nil {
		return core.IncomeRecord{}, fmt.Errorf("decode allocation: %w", err)
	}
	rec.Amount = core.Money(amount)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (s *Store) GetIncome(ctx context.Context, userID, id string) (core.IncomeRecord, error) {
	rec, err := scanIncome(s.pool.QueryRow(ctx,
		`SELECT `+incomeColumns+` FROM incomes WHERE user_id = $1 AND id = $2`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.IncomeRecord{}, fmt.Errorf("income %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.IncomeRecord{}, core.NewStorageError("get income", err)
	}
	return rec, nil
}

func (s *Store) ListIncomes(ctx context.Context, userID string, limit int) ([]core.IncomeRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+incomeColumns+` FROM incomes
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, core.ClampLimit(limit))
	if err != nil {
		return nil, core.NewStorageError("list incomes", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.IncomeRecord, error) {
		return scanIncome(row)
	})
	if err != nil {
		return nil, core.NewStorageError("list incomes", err)
	}
	return out, nil
}

func (s *Store) SumIncome(ctx context.Context, userID string, w core.Window) (core.Money, error) {
	query, args := withWindow(`SELECT COALESCE(SUM(amount), 0)::BIGINT FROM incomes WHERE user_id = $1`, []any{userID}, w)
	var sum int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, core.NewStorageError("sum income", err)
	}
	return core.Money(sum), nil
}

const transactionColumns = `id, user_id, type, amount, jar_code, to_jar_code, category, description, recognized_text, created_at`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx              core.Transaction
		typ, jar, toJar string
		amount          int64
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &typ, &amount, &jar, &toJar, &tx.Category,
		&tx.Description, &tx.RecognizedText, &tx.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TxType(typ)
	tx.Amount = core.Money(amount)
	tx.JarCode = core.JarCode(jar)
	tx.ToJarCode = core.JarCode(toJar)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	tx, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 AND id = $2`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, core.NewStorageError("get transaction", err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`)
	args := []any{userID}
	if f.JarCode != "" {
		args = append(args, string(f.JarCode))
		b.WriteString(` AND jar_code = $` + strconv.Itoa(len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		b.WriteString(` AND type = $` + strconv.Itoa(len(args)))
	}
	args = append(args, f.Limit())
	b.WriteString(` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)))

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, core.NewStorageError("list transactions", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, core.NewStorageError("list transactions", err)
	}
	return out, nil
}

func (s *Store) SumTransactions(ctx context.Context, userID string, q ledger.SumQuery) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM transactions WHERE user_id = $1`
	args := []any{userID}
	if q.Type != "" {
		args = append(args, string(q.Type))
		query += ` AND type = $` + strconv.Itoa(len(args))
	}
	if q.JarCode != "" {
		args = append(args, string(q.JarCode))
		query += ` AND jar_code = $` + strconv.Itoa(len(args))
	}
	query, args = withWindow(query, args, q.Window)

	var sum int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, core.NewStorageError("sum transactions", err)
	}
	return core.Money(sum), nil
}

func withWindow(query string, args []any, w core.Window) (string, []any) {
	if !w.Bounded() {
		return query, args
	}
	n := len(args)
	return query + fmt.Sprintf(` AND created_at BETWEEN $%d AND $%d`, n+1, n+2), append(args, w.Start, w.End)
}

const budgetColumns = `id, user_id, jar_code, category, amount, period, start_date, end_date, alert_threshold, created_at, updated_at`

func scanBudget(row pgx.Row) (core.Budget, error) {
	var (
		b           core.Budget
		jar, period string
		amount      int64
		end         *time.Time
	)
	if err := row.Scan(&b.ID, &b.UserID, &jar, &b.Category, &amount, &period, &b.StartDate, &end,
		&b.AlertThreshold, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return core.Budget{}, err
	}
	b.JarCode = core.JarCode(jar)
	b.Period = core.BudgetPeriod(period)
	b.Amount = core.Money(amount)
	b.StartDate = b.StartDate.UTC()
	if end != nil {
		e := end.UTC()
		b.EndDate = &e
	}
	b.CreatedAt, b.UpdatedAt = b.CreatedAt.UTC(), b.UpdatedAt.UTC()
	return b, nil
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.UserID, string(b.JarCode), b.Category, int64(b.Amount), string(b.Period),
		b.StartDate, b.EndDate, b.AlertThreshold, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return core.NewStorageError("create budget", err)
	}
	return nil
}

func (s *Store) UpdateBudget(ctx context.Context, b core.Budget) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE budgets SET jar_code = $1, category = $2, amount = $3, period = $4, start_date = $5,
			end_date = $6, alert_threshold = $7, updated_at = $8
		WHERE user_id = $9 AND id = $10`,
		string(b.JarCode), b.Category, int64(b.Amount), string(b.Period), b.StartDate,
		b.EndDate, b.AlertThreshold, b.UpdatedAt, b.UserID, b.ID)
	if err != nil {
		return core.NewStorageError("update budget", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("budget %s: %w", b.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM budgets WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return core.NewStorageError("delete budget", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	b, err := scanBudget(s.pool.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 AND id = $2`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, core.NewStorageError("get budget", err)
	}
	return b, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID string, code core.JarCode) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = $1`
	args := []any{userID}
	if code != "" {
		args = append(args, string(code))
		query += ` AND jar_code = $2`
	}
	query += ` ORDER BY start_date DESC, created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageError("list budgets", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Budget, error) {
		return scanBudget(row)
	})
	if err != nil {
		return nil, core.NewStorageError("list budgets", err)
	}
	return out, nil
}
