// Package storage is the SQLite ledger.Store backed by modernc.org/sqlite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer; every InTx owns the connection for its duration
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite ledger ready", "path", dbPath)
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.NewStorageError("ping", err)
	}
	return nil
}

// InTx runs fn in a database transaction. fn must only use the Tx it is
// handed: the pool has a single connection.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin", err)
	}
	if err := fn(&sqliteTx{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return core.NewStorageError("commit", err)
	}
	return nil
}

type sqliteTx struct {
	q querier
}

func (t *sqliteTx) EnsureJars(ctx context.Context, userID string, now time.Time) (bool, error) {
	var created int64
	for _, code := range core.Codes() {
		res, err := t.q.ExecContext(ctx, `
			INSERT INTO jars (user_id, code, allocated, spent, balance, period_started_at, updated_at)
			VALUES (?, ?, 0, 0, 0, ?, ?)
			ON CONFLICT (user_id, code) DO NOTHING`,
			userID, string(code), toNanos(now), toNanos(now))
		if err != nil {
			return false, core.NewStorageError("ensure jars", err)
		}
		n, _ := res.RowsAffected()
		created += n
	}
	return created > 0, nil
}

func (t *sqliteTx) Jars(ctx context.Context, userID string) ([]core.JarState, error) {
	return listJars(ctx, t.q, userID)
}

func (t *sqliteTx) ApplyJarDeltas(ctx context.Context, userID string, deltas []core.JarDelta, now time.Time) error {
	for _, d := range deltas {
		res, err := t.q.ExecContext(ctx, `
			UPDATE jars
			SET allocated = allocated + ?, spent = spent + ?, balance = balance + ?, updated_at = ?
			WHERE user_id = ? AND code = ?`,
			int64(d.Allocated), int64(d.Spent), int64(d.Balance), toNanos(now), userID, string(d.Code))
		if err != nil {
			return core.NewStorageError("apply jar delta", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return core.NewStorageError("apply jar delta", err)
		} else if n == 0 {
			return fmt.Errorf("jar %s for user %s: %w", d.Code, userID, core.ErrNotFound)
		}
	}
	return nil
}

func (t *sqliteTx) ArchivePeriods(ctx context.Context, periods []core.JarPeriod) error {
	for _, p := range periods {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO jar_periods (id, user_id, code, period_start, period_end, allocated, spent, balance)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, string(p.Code), toNanos(p.PeriodStart), toNanos(p.PeriodEnd),
			int64(p.Allocated), int64(p.Spent), int64(p.Balance))
		if err != nil {
			return core.NewStorageError("archive period", err)
		}
	}
	return nil
}

func (t *sqliteTx) ResetJars(ctx context.Context, userID string, now time.Time) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE jars SET balance = allocated, spent = 0, period_started_at = ?, updated_at = ?
		WHERE user_id = ?`, toNanos(now), toNanos(now), userID)
	if err != nil {
		return core.NewStorageError("reset jars", err)
	}
	return nil
}

func (t *sqliteTx) InsertIncome(ctx context.Context, rec core.IncomeRecord) error {
	alloc, err := json.Marshal(rec.Allocated)
	if err != nil {
		return fmt.Errorf("encode allocation: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO incomes (id, user_id, amount, source, category, note, allocated, auto_allocated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, int64(rec.Amount), rec.Source, rec.Category, rec.Note, string(alloc),
		rec.AutoAllocated, toNanos(rec.CreatedAt))
	if err != nil {
		return core.NewStorageError("insert income", err)
	}
	return nil
}

func (t *sqliteTx) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, jar_code, to_jar_code, category, description, recognized_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, string(tx.Type), int64(tx.Amount), string(tx.JarCode), string(tx.ToJarCode),
		tx.Category, tx.Description, tx.RecognizedText, toNanos(tx.CreatedAt))
	if err != nil {
		return core.NewStorageError("insert transaction", err)
	}
	return nil
}

func (t *sqliteTx) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return core.NewStorageError("delete transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (t *sqliteTx) Enqueue(ctx context.Context, ev core.LedgerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	now := toNanos(at)
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO outbox (event_id, user_id, kind, payload, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		ev.ID, ev.UserID, string(ev.Kind), string(payload), now, now)
	if err != nil {
		return core.NewStorageError("enqueue event", err)
	}
	return nil
}

func listJars(ctx context.Context, q querier, userID string) ([]core.JarState, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT code, allocated, spent, balance, period_started_at, updated_at
		FROM jars WHERE user_id = ?`, userID)
	if err != nil {
		return nil, core.NewStorageError("list jars", err)
	}
	defer rows.Close()

	byCode := make(map[core.JarCode]core.JarState, 6)
	for rows.Next() {
		var (
			j                  core.JarState
			code               string
			started, updatedAt int64
		)
		if err := rows.Scan(&code, &j.Allocated, &j.Spent, &j.Balance, &started, &updatedAt); err != nil {
			return nil, core.NewStorageError("scan jar", err)
		}
		j.Code = core.JarCode(code)
		j.PeriodStartedAt = fromNanos(started)
		j.UpdatedAt = fromNanos(updatedAt)
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

func (r *SQLiteRepository) ListJars(ctx context.Context, userID string) ([]core.JarState, error) {
	return listJars(ctx, r.db, userID)
}

func (r *SQLiteRepository) ListJarOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM jars ORDER BY user_id`)
	if err != nil {
		return nil, core.NewStorageError("list jar owners", err)
	}
	defer rows.Close()
	owners := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.NewStorageError("scan jar owner", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list jar owners", err)
	}
	return owners, nil
}

func (r *SQLiteRepository) ListPeriods(ctx context.Context, userID string, code core.JarCode, limit int) ([]core.JarPeriod, error) {
	query := `SELECT id, user_id, code, period_start, period_end, allocated, spent, balance
		FROM jar_periods WHERE user_id = ?`
	args := []any{userID}
	if code != "" {
		query += ` AND code = ?`
		args = append(args, string(code))
	}
	query += ` ORDER BY period_end DESC LIMIT ?`
	args = append(args, core.ClampLimit(limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageError("list periods", err)
	}
	defer rows.Close()

	periods := []core.JarPeriod{}
	for rows.Next() {
		var (
			p          core.JarPeriod
			c          string
			start, end int64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &c, &start, &end, &p.Allocated, &p.Spent, &p.Balance); err != nil {
			return nil, core.NewStorageError("scan period", err)
		}
		p.Code = core.JarCode(c)
		p.PeriodStart = fromNanos(start)
		p.PeriodEnd = fromNanos(end)
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list periods", err)
	}
	return periods, nil
}

const incomeColumns = `id, user_id, amount, source, category, note, allocated, auto_allocated, created_at`

func scanIncome(s scanner) (core.IncomeRecord, error) {
	var (
		rec       core.IncomeRecord
		alloc     string
		createdAt int64
	)
	if err := s.Scan(&rec.ID, &rec.UserID, &rec.Amount, &rec.Source, &rec.Category, &rec.Note,
		&alloc, &rec.AutoAllocated, &createdAt); err != nil {
		return core.IncomeRecord{}, err
	}
	if err := json.Unmarshal([]byte(alloc), &rec.Allocated); err != nil {
		return core.IncomeRecord{}, fmt.Errorf("decode allocation: %w", err)
	}
	rec.CreatedAt = fromNanos(createdAt)
	return rec, nil
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, userID, id string) (core.IncomeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+incomeColumns+` FROM incomes WHERE user_id = ? AND id = ?`, userID, id)
	rec, err := scanIncome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.IncomeRecord{}, fmt.Errorf("income %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.IncomeRecord{}, core.NewStorageError("get income", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, userID string, limit int) ([]core.IncomeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+incomeColumns+` FROM incomes
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, core.ClampLimit(limit))
	if err != nil {
		return nil, core.NewStorageError("list incomes", err)
	}
	defer rows.Close()

	out := []core.IncomeRecord{}
	for rows.Next() {
		rec, err := scanIncome(rows)
		if err != nil {
			return nil, core.NewStorageError("scan income", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list incomes", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SumIncome(ctx context.Context, userID string, w core.Window) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM incomes WHERE user_id = ?`
	args := []any{userID}
	query, args = windowClause(query, args, w)

	var sum int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, core.NewStorageError("sum income", err)
	}
	return core.Money(sum), nil
}

const transactionColumns = `id, user_id, type, amount, jar_code, to_jar_code, category, description, recognized_text, created_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx              core.Transaction
		typ, jar, toJar string
		createdAt       int64
	)
	if err := s.Scan(&tx.ID, &tx.UserID, &typ, &tx.Amount, &jar, &toJar, &tx.Category,
		&tx.Description, &tx.RecognizedText, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TxType(typ)
	tx.JarCode = core.JarCode(jar)
	tx.ToJarCode = core.JarCode(toJar)
	tx.CreatedAt = fromNanos(createdAt)
	return tx, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, core.NewStorageError("get transaction", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`)
	args := []any{userID}
	if f.JarCode != "" {
		b.WriteString(` AND jar_code = ?`)
		args = append(args, string(f.JarCode))
	}
	if f.Type != "" {
		b.WriteString(` AND type = ?`)
		args = append(args, string(f.Type))
	}
	b.WriteString(` ORDER BY created_at DESC LIMIT ?`)
	args = append(args, f.Limit())

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, core.NewStorageError("list transactions", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, core.NewStorageError("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list transactions", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SumTransactions(ctx context.Context, userID string, q ledger.SumQuery) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if q.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(q.Type))
	}
	if q.JarCode != "" {
		query += ` AND jar_code = ?`
		args = append(args, string(q.JarCode))
	}
	query, args = windowClause(query, args, q.Window)

	var sum int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, core.NewStorageError("sum transactions", err)
	}
	return core.Money(sum), nil
}

func windowClause(query string, args []any, w core.Window) (string, []any) {
	if !w.Bounded() {
		return query, args
	}
	return query + ` AND created_at BETWEEN ? AND ?`, append(args, toNanos(w.Start), toNanos(w.End))
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
