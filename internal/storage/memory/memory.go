// Package memory is an in-process ledger.Store for tests and the "memory" backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

type Store struct {
	mu      sync.Mutex
	jars    map[string]map[core.JarCode]core.JarState
	periods []core.JarPeriod
	incomes []core.IncomeRecord
	txs     []core.Transaction
	budgets map[string]core.Budget
	goals   map[string]core.Goal
	outbox  []ledger.OutboxEntry
	nextID  int64
	faults  map[string]error
	now     func() time.Time
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		jars:    make(map[string]map[core.JarCode]core.JarState),
		budgets: make(map[string]core.Budget),
		goals:   make(map[string]core.Goal),
		faults:  make(map[string]error),
		now:     time.Now,
	}
}

// InjectFault makes the next call of the named Tx operation ("InsertIncome",
// "ApplyJarDeltas", "Enqueue", ...) fail with err. Used by tests to exercise
// rollback.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return core.NewStorageError(op, err)
	}
	return nil
}

// InTx serializes writers on the store mutex and undoes every change when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) EnsureJars(_ context.Context, userID string, now time.Time) (bool, error) {
	if err := t.s.fault("EnsureJars"); err != nil {
		return false, err
	}
	if len(t.s.jars[userID]) > 0 {
		return false, nil
	}
	t.s.jars[userID] = core.ZeroJars(now)
	t.undo = append(t.undo, func() { delete(t.s.jars, userID) })
	return true, nil
}

func (t *memTx) Jars(_ context.Context, userID string) ([]core.JarState, error) {
	return t.s.jarsInOrder(userID), nil
}

func (t *memTx) ApplyJarDeltas(_ context.Context, userID string, deltas []core.JarDelta, now time.Time) error {
	if err := t.s.fault("ApplyJarDeltas"); err != nil {
		return err
	}
	jars := t.s.jars[userID]
	for _, d := range deltas {
		if _, ok := jars[d.Code]; !ok {
			return fmt.Errorf("jar %s for user %s: %w", d.Code, userID, core.ErrNotFound)
		}
	}
	for _, d := range deltas {
		prev := jars[d.Code]
		next := prev
		next.Apply(d)
		next.UpdatedAt = now
		jars[d.Code] = next
		code := d.Code
		t.undo = append(t.undo, func() { jars[code] = prev })
	}
	return nil
}

func (t *memTx) ArchivePeriods(_ context.Context, periods []core.JarPeriod) error {
	if err := t.s.fault("ArchivePeriods"); err != nil {
		return err
	}
	n := len(t.s.periods)
	t.s.periods = append(t.s.periods, periods...)
	t.undo = append(t.undo, func() { t.s.periods = t.s.periods[:n] })
	return nil
}

func (t *memTx) ResetJars(_ context.Context, userID string, now time.Time) error {
	if err := t.s.fault("ResetJars"); err != nil {
		return err
	}
	jars := t.s.jars[userID]
	for code, prev := range jars {
		next := prev
		next.Balance = prev.Allocated
		next.Spent = 0
		next.PeriodStartedAt = now
		next.UpdatedAt = now
		jars[code] = next
		code, prev := code, prev
		t.undo = append(t.undo, func() { jars[code] = prev })
	}
	return nil
}

func (t *memTx) InsertIncome(_ context.Context, rec core.IncomeRecord) error {
	if err := t.s.fault("InsertIncome"); err != nil {
		return err
	}
	n := len(t.s.incomes)
	rec.Allocated = cloneAllocation(rec.Allocated)
	t.s.incomes = append(t.s.incomes, rec)
	t.undo = append(t.undo, func() { t.s.incomes = t.s.incomes[:n] })
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tx core.Transaction) error {
	if err := t.s.fault("InsertTransaction"); err != nil {
		return err
	}
	n := len(t.s.txs)
	t.s.txs = append(t.s.txs, tx)
	t.undo = append(t.undo, func() { t.s.txs = t.s.txs[:n] })
	return nil
}

func (t *memTx) DeleteTransaction(_ context.Context, userID, id string) error {
	if err := t.s.fault("DeleteTransaction"); err != nil {
		return err
	}
	for i, tx := range t.s.txs {
		if tx.UserID == userID && tx.ID == id {
			prev := append([]core.Transaction(nil), t.s.txs...)
			t.s.txs = append(t.s.txs[:i:i], t.s.txs[i+1:]...)
			t.undo = append(t.undo, func() { t.s.txs = prev })
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (t *memTx) Enqueue(_ context.Context, ev core.LedgerEvent) error {
	if err := t.s.fault("Enqueue"); err != nil {
		return err
	}
	n := len(t.s.outbox)
	prevID := t.s.nextID
	t.s.nextID++
	now := ev.OccurredAt
	if now.IsZero() {
		now = t.s.now()
	}
	t.s.outbox = append(t.s.outbox, ledger.OutboxEntry{
		ID:        t.s.nextID,
		Event:     ev,
		Status:    ledger.OutboxPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	t.undo = append(t.undo, func() {
		t.s.outbox = t.s.outbox[:n]
		t.s.nextID = prevID
	})
	return nil
}

func (s *Store) jarsInOrder(userID string) []core.JarState {
	jars := s.jars[userID]
	out := make([]core.JarState, 0, len(jars))
	for _, code := range core.Codes() {
		if j, ok := jars[code]; ok {
			out = append(out, j)
		}
	}
	return out
}

func (s *Store) ListJars(_ context.Context, userID string) ([]core.JarState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jarsInOrder(userID), nil
}

func (s *Store) ListJarOwners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jars))
	for userID := range s.jars {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListPeriods(_ context.Context, userID string, code core.JarCode, limit int) ([]core.JarPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.JarPeriod
	for i := len(s.periods) - 1; i >= 0; i-- {
		p := s.periods[i]
		if p.UserID != userID || (code != "" && p.Code != code) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PeriodEnd.After(out[j].PeriodEnd) })
	return truncate(out, core.ClampLimit(limit)), nil
}

func (s *Store) GetIncome(_ context.Context, userID, id string) (core.IncomeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.incomes {
		if rec.UserID == userID && rec.ID == id {
			rec.Allocated = cloneAllocation(rec.Allocated)
			return rec, nil
		}
	}
	return core.IncomeRecord{}, fmt.Errorf("income %s: %w", id, core.ErrNotFound)
}

func (s *Store) ListIncomes(_ context.Context, userID string, limit int) ([]core.IncomeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.IncomeRecord
	for i := len(s.incomes) - 1; i >= 0; i-- {
		rec := s.incomes[i]
		if rec.UserID == userID {
			rec.Allocated = cloneAllocation(rec.Allocated)
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, core.ClampLimit(limit)), nil
}

func (s *Store) SumIncome(_ context.Context, userID string, w core.Window) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum core.Money
	for _, rec := range s.incomes {
		if rec.UserID == userID && w.Contains(rec.CreatedAt) {
			sum += rec.Amount
		}
	}
	return sum, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.UserID == userID && tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) ListTransactions(_ context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		tx := s.txs[i]
		if tx.UserID != userID {
			continue
		}
		if f.JarCode != "" && tx.JarCode != f.JarCode {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, f.Limit()), nil
}

func (s *Store) SumTransactions(_ context.Context, userID string, q ledger.SumQuery) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum core.Money
	for _, tx := range s.txs {
		if tx.UserID != userID || !q.Window.Contains(tx.CreatedAt) {
			continue
		}
		if (q.Type != "" && tx.Type != q.Type) || (q.JarCode != "" && tx.JarCode != q.JarCode) {
			continue
		}
		sum += tx.Amount
	}
	return sum, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; ok {
		return core.NewStorageError("create budget", fmt.Errorf("duplicate id %s", b.ID))
	}
	s.budgets[b.ID] = cloneBudget(b)
	return nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.budgets[b.ID]
	if !ok || prev.UserID != b.UserID {
		return fmt.Errorf("budget %s: %w", b.ID, core.ErrNotFound)
	}
	b.CreatedAt = prev.CreatedAt
	s.budgets[b.ID] = cloneBudget(b)
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) GetBudget(_ context.Context, userID, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return cloneBudget(b), nil
}

func (s *Store) ListBudgets(_ context.Context, userID string, code core.JarCode) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID && (code == "" || b.JarCode == code) {
			out = append(out, cloneBudget(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out, nil
}

func truncate[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	if in == nil {
		return []T{}
	}
	return in
}

func cloneAllocation(a core.Allocation) core.Allocation {
	if a == nil {
		return nil
	}
	out := make(core.Allocation, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func cloneBudget(b core.Budget) core.Budget {
	if b.EndDate != nil {
		end := *b.EndDate
		b.EndDate = &end
	}
	return b
}
