package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

// DequeueOutbox returns up to limit pending entries, oldest first.
func (s *Store) DequeueOutbox(ctx context.Context, limit int) ([]ledger.OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, payload, status, attempts, last_error, created_at, updated_at
		FROM outbox WHERE status = 'pending' ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, core.NewStorageError("dequeue outbox", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.OutboxEntry, error) {
		var (
			e       ledger.OutboxEntry
			payload []byte
			status  string
		)
		if err := row.Scan(&e.ID, &payload, &status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return e, err
		}
		if err := json.Unmarshal(payload, &e.Event); err != nil {
			return e, fmt.Errorf("decode outbox payload %d: %w", e.ID, err)
		}
		e.Status = ledger.OutboxStatus(status)
		return e, nil
	})
	if err != nil {
		return nil, core.NewStorageError("dequeue outbox", err)
	}
	return entries, nil
}

func (s *Store) updateOutbox(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return core.NewStorageError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkOutboxProcessing(ctx context.Context, id int64) error {
	return s.updateOutbox(ctx, "mark outbox processing",
		`UPDATE outbox SET status = 'processing', updated_at = now() WHERE id = $1`, id)
}

func (s *Store) MarkOutboxComplete(ctx context.Context, id int64) error {
	return s.updateOutbox(ctx, "mark outbox complete",
		`UPDATE outbox SET status = 'completed', updated_at = now() WHERE id = $1`, id)
}

func (s *Store) MarkOutboxFailed(ctx context.Context, id int64, errMsg string) error {
	return s.updateOutbox(ctx, "mark outbox failed",
		`UPDATE outbox SET status = 'failed', attempts = attempts + 1, last_error = $1, updated_at = now() WHERE id = $2`,
		errMsg, id)
}

func (s *Store) RequeueOutbox(ctx context.Context, id int64, errMsg string) error {
	return s.updateOutbox(ctx, "requeue outbox",
		`UPDATE outbox SET status = 'pending', attempts = attempts + 1, last_error = $1, updated_at = now() WHERE id = $2`,
		errMsg, id)
}

func (s *Store) CleanupOutbox(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM outbox WHERE status = 'completed' AND updated_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, core.NewStorageError("cleanup outbox", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ResetStaleOutbox(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE outbox SET status = 'pending', updated_at = now()
		WHERE status = 'processing' AND updated_at <= $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, core.NewStorageError("reset stale outbox", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) RetryFailedOutbox(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE outbox SET status = 'pending', attempts = 0, updated_at = now()
		WHERE status = 'failed'`)
	if err != nil {
		return 0, core.NewStorageError("retry failed outbox", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) OutboxStats(ctx context.Context) (ledger.OutboxStats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
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
