package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sixjars/internal/cache"
	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

// Summary holds the three standard windows side by side.
type Summary struct {
	Month    core.Stats `json:"month"`
	Year     core.Stats `json:"year"`
	Lifetime core.Stats `json:"lifetime"`
}

// StatsService computes windowed income, expense and savings sums. Results
// are cached per user generation, so any write by that user invalidates them.
type StatsService struct {
	env   Env
	cache cache.Cache[core.Stats]
}

// NewStatsService accepts a nil cache.
func NewStatsService(env Env, c cache.Cache[core.Stats]) *StatsService {
	return &StatsService{env: env.withDefaults(), cache: c}
}

func (s *StatsService) window(kind core.WindowKind, month, year int) (core.Window, error) {
	return core.ResolveWindow(kind, month, year, s.env.Now(), s.env.Location)
}

func (s *StatsService) income(ctx context.Context, userID string, w core.Window) (core.Money, error) {
	sum, err := s.env.Store.SumIncome(ctx, userID, w)
	if err != nil {
		return 0, fmt.Errorf("sum income: %w", err)
	}
	return sum, nil
}

func (s *StatsService) expenses(ctx context.Context, userID string, w core.Window) (core.Money, error) {
	sum, err := s.env.Store.SumTransactions(ctx, userID, ledger.SumQuery{Type: core.TxExpense, Window: w})
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return sum, nil
}

// MonthlyIncome sums income of month/year; zero values mean the current month or year.
func (s *StatsService) MonthlyIncome(ctx context.Context, userID string, month, year int) (core.Money, error) {
	w, err := s.window(core.WindowMonth, month, year)
	if err != nil {
		return 0, err
	}
	return s.income(ctx, userID, w)
}

func (s *StatsService) MonthlyExpenses(ctx context.Context, userID string, month, year int) (core.Money, error) {
	w, err := s.window(core.WindowMonth, month, year)
	if err != nil {
		return 0, err
	}
	return s.expenses(ctx, userID, w)
}

func (s *StatsService) YearlyIncome(ctx context.Context, userID string, year int) (core.Money, error) {
	w, err := s.window(core.WindowYear, 0, year)
	if err != nil {
		return 0, err
	}
	return s.income(ctx, userID, w)
}

func (s *StatsService) YearlyExpenses(ctx context.Context, userID string, year int) (core.Money, error) {
	w, err := s.window(core.WindowYear, 0, year)
	if err != nil {
		return 0, err
	}
	return s.expenses(ctx, userID, w)
}

func (s *StatsService) LifetimeIncome(ctx context.Context, userID string) (core.Money, error) {
	return s.income(ctx, userID, core.Lifetime())
}

func (s *StatsService) LifetimeExpenses(ctx context.Context, userID string) (core.Money, error) {
	return s.expenses(ctx, userID, core.Lifetime())
}

// Savings is income minus expenses over one window and may be negative.
func (s *StatsService) Savings(ctx context.Context, userID string, kind core.WindowKind, month, year int) (core.Money, error) {
	st, err := s.Stats(ctx, userID, kind, month, year)
	if err != nil {
		return 0, err
	}
	return st.Savings, nil
}

// Stats returns income, expenses and savings over the same window.
func (s *StatsService) Stats(ctx context.Context, userID string, kind core.WindowKind, month, year int) (core.Stats, error) {
	if err := checkUser(userID); err != nil {
		return core.Stats{}, err
	}
	w, err := s.window(kind, month, year)
	if err != nil {
		return core.Stats{}, err
	}
	return s.statsFor(ctx, userID, w)
}

func (s *StatsService) statsFor(ctx context.Context, userID string, w core.Window) (core.Stats, error) {
	key := fmt.Sprintf("%s|%d|%s", userID, s.env.Generations.Current(userID), w.Key())
	if s.cache != nil {
		if st, ok := s.cache.Get(key); ok {
			return st, nil
		}
	}

	var income, expenses core.Money
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = s.income(gctx, userID, w)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.expenses(gctx, userID, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Stats{}, err
	}

	st := core.NewStats(income, expenses)
	if s.cache != nil {
		s.cache.Set(key, st)
	}
	return st, nil
}

// Summary computes the current month, current year and lifetime stats concurrently.
func (s *StatsService) Summary(ctx context.Context, userID string) (Summary, error) {
	if err := checkUser(userID); err != nil {
		return Summary{}, err
	}
	month, err := s.window(core.WindowMonth, 0, 0)
	if err != nil {
		return Summary{}, err
	}
	year, err := s.window(core.WindowYear, 0, 0)
	if err != nil {
		return Summary{}, err
	}

	var out Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { out.Month, err = s.statsFor(gctx, userID, month); return })
	g.Go(func() (err error) { out.Year, err = s.statsFor(gctx, userID, year); return })
	g.Go(func() (err error) { out.Lifetime, err = s.statsFor(gctx, userID, core.Lifetime()); return })
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return out, nil
}
