package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sixjars/internal/core"
)

const budgetColumns = `id, user_id, jar_code, category, amount, period, start_date, end_date, alert_threshold, created_at, updated_at`

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                   core.Budget
		jar, period         string
		start, created, upd int64
		end                 sql.NullInt64
	)
	if err := s.Scan(&b.ID, &b.UserID, &jar, &b.Category, &b.Amount, &period, &start, &end,
		&b.AlertThreshold, &created, &upd); err != nil {
		return core.Budget{}, err
	}
	b.JarCode = core.JarCode(jar)
	b.Period = core.BudgetPeriod(period)
	b.StartDate = fromNanos(start)
	if end.Valid {
		t := fromNanos(end.Int64)
		b.EndDate = &t
	}
	b.CreatedAt = fromNanos(created)
	b.UpdatedAt = fromNanos(upd)
	return b, nil
}

func nullableNanos(b core.Budget) sql.NullInt64 {
	if b.EndDate == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*b.EndDate), Valid: true}
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, string(b.JarCode), b.Category, int64(b.Amount), string(b.Period),
		toNanos(b.StartDate), nullableNanos(b), b.AlertThreshold, toNanos(b.CreatedAt), toNanos(b.UpdatedAt))
	if err != nil {
		return core.NewStorageError("create budget", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET jar_code = ?, category = ?, amount = ?, period = ?, start_date = ?,
			end_date = ?, alert_threshold = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		string(b.JarCode), b.Category, int64(b.Amount), string(b.Period), toNanos(b.StartDate),
		nullableNanos(b), b.AlertThreshold, toNanos(b.UpdatedAt), b.UserID, b.ID)
	if err != nil {
		return core.NewStorageError("update budget", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("budget %s: %w", b.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return core.NewStorageError("delete budget", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND id = ?`, userID, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, core.NewStorageError("get budget", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string, code core.JarCode) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ?`
	args := []any{userID}
	if code != "" {
		query += ` AND jar_code = ?`
		args = append(args, string(code))
	}
	query += ` ORDER BY start_date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageError("list budgets", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, core.NewStorageError("scan budget", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list budgets", err)
	}
	return out, nil
}
