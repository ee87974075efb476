package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sixjars/internal/core"
)

const goalColumns = `id, user_id, title, description, target_amount, current_amount, target_date, jar_code, status, priority, created_at, updated_at`

func scanGoal(row pgx.Row) (core.Goal, error) {
	var (
		g                     core.Goal
		jar, status, priority string
		target, current       int64
		date                  *time.Time
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &target, &current, &date,
		&jar, &status, &priority, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return core.Goal{}, err
	}
	g.TargetAmount = core.Money(target)
	g.CurrentAmount = core.Money(current)
	if date != nil {
		d := date.UTC()
		g.TargetDate = &d
	}
	g.JarCode = core.JarCode(jar)
	g.Status = core.GoalStatus(status)
	g.Priority = core.GoalPriority(priority)
	g.CreatedAt, g.UpdatedAt = g.CreatedAt.UTC(), g.UpdatedAt.UTC()
	return g, nil
}

func (s *Store) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.ID, g.UserID, g.Title, g.Description, int64(g.TargetAmount), int64(g.CurrentAmount), g.TargetDate,
		string(g.JarCode), string(g.Status), string(g.Priority), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return core.NewStorageError("create goal", err)
	}
	return nil
}

func (s *Store) UpdateGoal(ctx context.Context, g core.Goal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE goals SET title = $1, description = $2, target_amount = $3, current_amount = $4,
			target_date = $5, jar_code = $6, status = $7, priority = $8, updated_at = $9
		WHERE user_id = $10 AND id = $11`,
		g.Title, g.Description, int64(g.TargetAmount), int64(g.CurrentAmount), g.TargetDate,
		string(g.JarCode), string(g.Status), string(g.Priority), g.UpdatedAt, g.UserID, g.ID)
	if err != nil {
		return core.NewStorageError("update goal", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("goal %s: %w", g.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM goals WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return core.NewStorageError("delete goal", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	g, err := scanGoal(s.pool.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = $1 AND id = $2`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, core.NewStorageError("get goal", err)
	}
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string, f core.GoalFilter) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1`
	args := []any{userID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.JarCode != "" {
		args = append(args, string(f.JarCode))
		query += fmt.Sprintf(` AND jar_code = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageError("list goals", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Goal, error) {
		return scanGoal(row)
	})
	if err != nil {
		return nil, core.NewStorageError("list goals", err)
	}
	return out, nil
}

func (s *Store) AddGoalProgress(ctx context.Context, userID, id string, delta core.Money, now time.Time) (core.Goal, error) {
	g, err := scanGoal(s.pool.QueryRow(ctx, `
		UPDATE goals SET
			current_amount = GREATEST(current_amount + $1, 0),
			status = CASE WHEN status = 'active' AND current_amount + $1 >= target_amount THEN 'completed' ELSE status END,
			updated_at = $2
		WHERE user_id = $3 AND id = $4
		RETURNING `+goalColumns,
		int64(delta), now, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, core.NewStorageError("update goal progress", err)
	}
	return g, nil
}
