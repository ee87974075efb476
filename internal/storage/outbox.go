package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

// DequeueOutbox returns up to limit pending entries, oldest first.
func (r *SQLiteRepository) DequeueOutbox(ctx context.Context, limit int) ([]ledger.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payload, status, attempts, last_error, created_at, updated_at
		FROM outbox WHERE status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, core.NewStorageError("dequeue outbox", err)
	}
	defer rows.Close()

	var entries []ledger.OutboxEntry
	for rows.Next() {
		var (
			e                  ledger.OutboxEntry
			payload, status    string
			created, updatedAt int64
		)
		if err := rows.Scan(&e.ID, &payload, &status, &e.Attempts, &e.LastError, &created, &updatedAt); err != nil {
			return nil, core.NewStorageError("scan outbox", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Event); err != nil {
			return nil, fmt.Errorf("decode outbox payload %d: %w", e.ID, err)
		}
		e.Status = ledger.OutboxStatus(status)
		e.CreatedAt = fromNanos(created)
		e.UpdatedAt = fromNanos(updatedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("dequeue outbox", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) updateOutbox(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.NewStorageError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) MarkOutboxProcessing(ctx context.Context, id int64) error {
	return r.updateOutbox(ctx, "mark outbox processing",
		`UPDATE outbox SET status = 'processing', updated_at = ? WHERE id = ?`, toNanos(time.Now()), id)
}

func (r *SQLiteRepository) MarkOutboxComplete(ctx context.Context, id int64) error {
	return r.updateOutbox(ctx, "mark outbox complete",
		`UPDATE outbox SET status = 'completed', updated_at = ? WHERE id = ?`, toNanos(time.Now()), id)
}

func (r *SQLiteRepository) MarkOutboxFailed(ctx context.Context, id int64, errMsg string) error {
	err := r.updateOutbox(ctx, "mark outbox failed",
		`UPDATE outbox SET status = 'failed', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		errMsg, toNanos(time.Now()), id)
	if err == nil {
		slog.WarnContext(ctx, "Outbox entry marked as failed", "id", id, "error", errMsg)
	}
	return err
}

func (r *SQLiteRepository) RequeueOutbox(ctx context.Context, id int64, errMsg string) error {
	return r.updateOutbox(ctx, "requeue outbox",
		`UPDATE outbox SET status = 'pending', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		errMsg, toNanos(time.Now()), id)
}

func (r *SQLiteRepository) CleanupOutbox(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE status = 'completed' AND updated_at < ?`,
		toNanos(time.Now().Add(-olderThan)))
	if err != nil {
		return 0, core.NewStorageError("cleanup outbox", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SQLiteRepository) ResetStaleOutbox(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET status = 'pending', updated_at = ?
		WHERE status = 'processing' AND updated_at <= ?`,
		toNanos(time.Now()), toNanos(time.Now().Add(-olderThan)))
	if err != nil {
		return 0, core.NewStorageError("reset stale outbox", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SQLiteRepository) RetryFailedOutbox(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET status = 'pending', attempts = 0, updated_at = ?
		WHERE status = 'failed'`, toNanos(time.Now()))
	if err != nil {
		return 0, core.NewStorageError("retry failed outbox", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SQLiteRepository) OutboxStats(ctx context.Context) (ledger.OutboxStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return ledger.OutboxStats{}, core.NewStorageError("outbox stats", err)
	}
	defer rows.Close()

	var st ledger.OutboxStats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return ledger.OutboxStats{}, core.NewStorageError("scan outbox stats", err)
		}
		switch ledger.OutboxStatus(status) {
		case ledger.OutboxPending:
			st.Pending = n
		case ledger.OutboxProcessing:
			st.Processing = n
		case ledger.OutboxCompleted:
			st.Completed = n
		case ledger.OutboxFailed:
			st.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return ledger.OutboxStats{}, core.NewStorageError("outbox stats", err)
	}
	return st, nil
}
