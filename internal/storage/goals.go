package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sixjars/internal/core"
)

const goalColumns = `id, user_id, title, description, target_amount, current_amount, target_date, jar_code, status, priority, created_at, updated_at`

func scanGoal(s scanner) (core.Goal, error) {
	var (
		g                     core.Goal
		jar, status, priority string
		target, current       int64
		created, upd          int64
		date                  sql.NullInt64
	)
	if err := s.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &target, &current, &date,
		&jar, &status, &priority, &created, &upd); err != nil {
		return core.Goal{}, err
	}
	g.TargetAmount = core.Money(target)
	g.CurrentAmount = core.Money(current)
	if date.Valid {
		t := fromNanos(date.Int64)
		g.TargetDate = &t
	}
	g.JarCode = core.JarCode(jar)
	g.Status = core.GoalStatus(status)
	g.Priority = core.GoalPriority(priority)
	g.CreatedAt = fromNanos(created)
	g.UpdatedAt = fromNanos(upd)
	return g, nil
}

func goalDate(g core.Goal) sql.NullInt64 {
	if g.TargetDate == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*g.TargetDate), Valid: true}
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, g.Description, int64(g.TargetAmount), int64(g.CurrentAmount), goalDate(g),
		string(g.JarCode), string(g.Status), string(g.Priority), toNanos(g.CreatedAt), toNanos(g.UpdatedAt))
	if err != nil {
		return core.NewStorageError("create goal", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.Goal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE goals SET title = ?, description = ?, target_amount = ?, current_amount = ?, target_date = ?,
			jar_code = ?, status = ?, priority = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		g.Title, g.Description, int64(g.TargetAmount), int64(g.CurrentAmount), goalDate(g),
		string(g.JarCode), string(g.Status), string(g.Priority), toNanos(g.UpdatedAt), g.UserID, g.ID)
	if err != nil {
		return core.NewStorageError("update goal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", g.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return core.NewStorageError("delete goal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? AND id = ?`, userID, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, core.NewStorageError("get goal", err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string, f core.GoalFilter) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ?`
	args := []any{userID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.JarCode != "" {
		query += ` AND jar_code = ?`
		args = append(args, string(f.JarCode))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageError("list goals", err)
	}
	defer rows.Close()

	out := []core.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, core.NewStorageError("scan goal", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list goals", err)
	}
	return out, nil
}

// AddGoalProgress updates in one statement. The CASE sees the old
// current_amount, so it adds delta itself.
func (r *SQLiteRepository) AddGoalProgress(ctx context.Context, userID, id string, delta core.Money, now time.Time) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE goals SET
			current_amount = MAX(current_amount + ?, 0),
			status = CASE WHEN status = 'active' AND current_amount + ? >= target_amount THEN 'completed' ELSE status END,
			updated_at = ?
		WHERE user_id = ? AND id = ?
		RETURNING `+goalColumns,
		int64(delta), int64(delta), toNanos(now), userID, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, core.NewStorageError("update goal progress", err)
	}
	return g, nil
}
