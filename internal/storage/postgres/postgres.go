// Package postgres is the ledger.Store backed by PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect runs migrations and opens a pool on dsn.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Postgres ledger ready", "max_conns", pool.Config().MaxConns)
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return core.NewStorageError("ping", err)
	}
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return core.NewStorageError("begin", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "Rollback failed", "error", err)
		}
	}()

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return core.NewStorageError("commit", err)
	}
	return nil
}

type pgTx struct {
	q pgx.Tx
}

func (t *pgTx) EnsureJars(ctx context.Context, userID string, now time.Time) (bool, error) {
	var created int64
	for _, code := range core.Codes() {
		tag, err := t.q.Exec(ctx, `
			INSERT INTO jars (user_id, code, allocated, spent, balance, period_started_at, updated_at)
			VALUES ($1, $2, 0, 0, 0, $3, $3)
			ON CONFLICT (user_id, code) DO NOTHING`, userID, string(code), now)
		if err != nil {
			return false, core.NewStorageError("ensure jars", err)
		}
		created += tag.RowsAffected()
	}
	return created > 0, nil
}

func (t *pgTx) Jars(ctx context.Context, userID string) ([]core.JarState, error) {
	return listJars(ctx, t.q, userID, true)
}

func (t *pgTx) ApplyJarDeltas(ctx context.Context, userID string, deltas []core.JarDelta, now time.Time) error {
	// lock rows in catalog order so crossing transfers cannot deadlock
	ordered := slices.Clone(deltas)
	slices.SortStableFunc(ordered, func(a, b core.JarDelta) int {
		return core.CatalogIndex(a.Code) - core.CatalogIndex(b.Code)
	})
	for _, d := range ordered {
		tag, err := t.q.Exec(ctx, `
			UPDATE jars
			SET allocated = allocated + $1, spent = spent + $2, balance = balance + $3, updated_at = $4
			WHERE user_id = $5 AND code = $6`,
			int64(d.Allocated), int64(d.Spent), int64(d.Balance), now, userID, string(d.Code))
		if err != nil {
			return core.NewStorageError("apply jar delta", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("jar %s for user %s: %w", d.Code, userID, core.ErrNotFound)
		}
	}
	return nil
}

func (t *pgTx) ArchivePeriods(ctx context.Context, periods []core.JarPeriod) error {
	batch := &pgx.Batch{}
	for _, p := range periods {
		batch.Queue(`
			INSERT INTO jar_periods (id, user_id, code, period_start, period_end, allocated, spent, balance)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.UserID, string(p.Code), p.PeriodStart, p.PeriodEnd,
			int64(p.Allocated), int64(p.Spent), int64(p.Balance))
	}
	if err := t.q.SendBatch(ctx, batch).Close(); err != nil {
		return core.NewStorageError("archive periods", err)
	}
	return nil
}

func (t *pgTx) ResetJars(ctx context.Context, userID string, now time.Time) error {
	_, err := t.q.Exec(ctx, `
		UPDATE jars SET balance = allocated, spent = 0, period_started_at = $1, updated_at = $1
		WHERE user_id = $2`, now, userID)
	if err != nil {
		return core.NewStorageError("reset jars", err)
	}
	return nil
}

func (t *pgTx) InsertIncome(ctx context.Context, rec core.IncomeRecord) error {
	alloc, err := json.Marshal(rec.Allocated)
	if err != nil {
		return fmt.Errorf("encode allocation: %w", err)
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO incomes (id, user_id, amount, source, category, note, allocated, auto_allocated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.UserID, int64(rec.Amount), rec.Source, rec.Category, rec.Note, string(alloc),
		rec.AutoAllocated, rec.CreatedAt)
	if err != nil {
		return core.NewStorageError("insert income", err)
	}
	return nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, jar_code, to_jar_code, category, description, recognized_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, tx.UserID, string(tx.Type), int64(tx.Amount), string(tx.JarCode), string(tx.ToJarCode),
		tx.Category, tx.Description, tx.RecognizedText, tx.CreatedAt)
	if err != nil {
		return core.NewStorageError("insert transaction", err)
	}
	return nil
}

func (t *pgTx) DeleteTransaction(ctx context.Context, userID, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return core.NewStorageError("delete transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Enqueue(ctx context.Context, ev core.LedgerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO outbox (event_id, user_id, kind, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		ev.ID, ev.UserID, string(ev.Kind), string(payload), at)
	if err != nil {
		return core.NewStorageError("enqueue event", err)
	}
	return nil
}

func listJars(ctx context.Context, q querier, userID string, forUpdate bool) ([]core.JarState, error) {
	query := `SELECT code, allocated, spent, balance, period_started_at, updated_at FROM jars WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, core.NewStorageError("list jars", err)
	}
	defer rows.Close()

	byCode := make(map[core.JarCode]core.JarState, 6)
	for rows.Next() {
		var (
			j                    core.JarState
			code                 string
			allocated, spent, bl int64
		)
		if err := rows.Scan(&code, &allocated, &spent, &bl, &j.PeriodStartedAt, &j.UpdatedAt); err != nil {
			return nil, core.NewStorageError("scan jar", err)
		}
		j.Code = core.JarCode(code)
		j.Allocated, j.Spent, j.Balance = core.Money(allocated), core.Money(spent), core.Money(bl)
		j.PeriodStartedAt = j.PeriodStartedAt.UTC()
		j.UpdatedAt = j.UpdatedAt.UTC()
		byCode[j.Code] = j
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list jars", err)
	}

	out := make([]core.JarState, 0, len(byCode))
	for _, code := range core.Codes() {
		if j, ok := byCode[code]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}
