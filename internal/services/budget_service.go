package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/log"
)

type BudgetInput struct {
	JarCode        core.JarCode
	Category       string
	Amount         core.Money
	Period         core.BudgetPeriod
	StartDate      time.Time
	EndDate        *time.Time
	AlertThreshold int
}

// BudgetService manages user budgets and evaluates spend against them.
type BudgetService struct {
	env Env
	txs *TransactionService
}

func NewBudgetService(env Env, txs *TransactionService) *BudgetService {
	return &BudgetService{env: env.withDefaults(), txs: txs}
}

func (in BudgetInput) budget() core.Budget {
	b := core.Budget{
		JarCode:        in.JarCode,
		Category:       strings.TrimSpace(in.Category),
		Amount:         in.Amount,
		Period:         in.Period,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		AlertThreshold: in.AlertThreshold,
	}
	if b.AlertThreshold == 0 {
		b.AlertThreshold = core.DefaultAlertThreshold
	}
	return b
}

func (s *BudgetService) Create(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	if err := checkUser(userID); err != nil {
		return core.Budget{}, err
	}
	b := in.budget()
	if b.StartDate.IsZero() {
		b.StartDate = s.env.Now()
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	now := s.env.Now()
	b.ID = s.env.NewID()
	b.UserID = userID
	b.CreatedAt = now
	b.UpdatedAt = now
	if err := s.env.Store.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget created",
		log.FieldUserID, userID,
		log.FieldBudgetID, b.ID,
		log.FieldJarCode, b.JarCode,
		log.FieldAmount, int64(b.Amount))
	return b, nil
}

func (s *BudgetService) Get(ctx context.Context, userID, id string) (core.Budget, error) {
	b, err := s.env.Store.GetBudget(ctx, userID, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// List returns budgets newest start date first. An empty code lists every jar.
func (s *BudgetService) List(ctx context.Context, userID string, code core.JarCode) ([]core.Budget, error) {
	if code != "" {
		if _, err := core.ByCode(code); err != nil {
			return nil, err
		}
	}
	list, err := s.env.Store.ListBudgets(ctx, userID, code)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return list, nil
}

// Update replaces the editable fields of an existing budget.
func (s *BudgetService) Update(ctx context.Context, userID, id string, in BudgetInput) (core.Budget, error) {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Budget{}, err
	}
	b := in.budget()
	if b.StartDate.IsZero() {
		b.StartDate = current.StartDate
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.ID = current.ID
	b.UserID = userID
	b.CreatedAt = current.CreatedAt
	b.UpdatedAt = s.env.Now()
	if err := s.env.Store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget updated", log.FieldUserID, userID, log.FieldBudgetID, id)
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	if err := s.env.Store.DeleteBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget deleted", log.FieldUserID, userID, log.FieldBudgetID, id)
	return nil
}

// ActiveBudget returns the budget for code that covers now, preferring the
// latest start date. It returns nil when none is active.
func (s *BudgetService) ActiveBudget(ctx context.Context, userID string, code core.JarCode) (*core.Budget, error) {
	list, err := s.List(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	now := s.env.Now()
	for i := range list {
		if list[i].ActiveAt(now) {
			return &list[i], nil
		}
	}
	return nil, nil
}

// CheckAlert compares spent against the active budget of a jar. Without an
// active budget the alert is never exceeded and the percentage is zero.
func (s *BudgetService) CheckAlert(ctx context.Context, userID string, code core.JarCode, spent core.Money) (core.BudgetAlert, error) {
	if err := checkUser(userID); err != nil {
		return core.BudgetAlert{}, err
	}
	if _, err := core.ByCode(code); err != nil {
		return core.BudgetAlert{}, err
	}
	if spent < 0 {
		return core.BudgetAlert{}, fmt.Errorf("%w: spent must not be negative", core.ErrInvalidAmount)
	}
	b, err := s.ActiveBudget(ctx, userID, code)
	if err != nil {
		return core.BudgetAlert{}, err
	}
	return core.EvaluateBudget(b, spent), nil
}

// CheckAlertMonthToDate evaluates the active budget against the jar's
// recorded expenses for the budget's own period (month or year to date).
func (s *BudgetService) CheckAlertMonthToDate(ctx context.Context, userID string, code core.JarCode) (core.BudgetAlert, error) {
	if err := checkUser(userID); err != nil {
		return core.BudgetAlert{}, err
	}
	b, err := s.ActiveBudget(ctx, userID, code)
	if err != nil {
		return core.BudgetAlert{}, err
	}
	period := core.BudgetMonthly
	if b != nil {
		period = b.Period
	}
	spent, err := s.txs.SpentInPeriod(ctx, userID, code, period)
	if err != nil {
		return core.BudgetAlert{}, err
	}
	alert := core.EvaluateBudget(b, spent)
	if alert.Exceeded {
		slog.WarnContext(ctx, "Budget threshold reached",
			log.FieldUserID, userID,
			log.FieldJarCode, code,
			"percentage", alert.Percentage)
	}
	return alert, nil
}
