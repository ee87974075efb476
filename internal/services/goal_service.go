package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/log"
)

type GoalInput struct {
	Title         string
	Description   string
	TargetAmount  core.Money
	CurrentAmount core.Money
	TargetDate    *time.Time
	JarCode       core.JarCode
	Status        core.GoalStatus
	Priority      core.GoalPriority
}

// GoalService manages savings goals. Progress moves only through
// UpdateProgress, which completes an active goal once its target is reached.
type GoalService struct {
	env Env
}

func NewGoalService(env Env) *GoalService {
	return &GoalService{env: env.withDefaults()}
}

func (in GoalInput) goal() core.Goal {
	g := core.Goal{
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		TargetAmount:  in.TargetAmount,
		CurrentAmount: in.CurrentAmount,
		TargetDate:    in.TargetDate,
		JarCode:       in.JarCode,
		Status:        in.Status,
		Priority:      in.Priority,
	}
	if g.Status == "" {
		g.Status = core.GoalActive
	}
	if g.Priority == "" {
		g.Priority = core.PriorityMedium
	}
	return g
}

func (s *GoalService) Create(ctx context.Context, userID string, in GoalInput) (core.Goal, error) {
	if err := checkUser(userID); err != nil {
		return core.Goal{}, err
	}
	g := in.goal()
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	now := s.env.Now()
	g.ID = s.env.NewID()
	g.UserID = userID
	g.CreatedAt = now
	g.UpdatedAt = now
	if err := s.env.Store.CreateGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal created",
		log.FieldUserID, userID,
		log.FieldGoalID, g.ID,
		log.FieldJarCode, g.JarCode,
		log.FieldAmount, int64(g.TargetAmount))
	return g, nil
}

func (s *GoalService) Get(ctx context.Context, userID, id string) (core.Goal, error) {
	g, err := s.env.Store.GetGoal(ctx, userID, id)
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// List returns goals newest first.
func (s *GoalService) List(ctx context.Context, userID string, f core.GoalFilter) ([]core.Goal, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", core.ErrInvalidGoal, f.Status)
	}
	if f.JarCode != "" {
		if _, err := core.ByCode(f.JarCode); err != nil {
			return nil, err
		}
	}
	list, err := s.env.Store.ListGoals(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return list, nil
}

// Active returns active goals, highest priority first and newest first
// within a priority.
func (s *GoalService) Active(ctx context.Context, userID string) ([]core.Goal, error) {
	list, err := s.List(ctx, userID, core.GoalFilter{Status: core.GoalActive})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(list, func(a, b core.Goal) int {
		return b.Priority.Rank() - a.Priority.Rank()
	})
	return list, nil
}

// Update replaces the editable fields of an existing goal.
func (s *GoalService) Update(ctx context.Context, userID, id string, in GoalInput) (core.Goal, error) {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Goal{}, err
	}
	g := in.goal()
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.ID = current.ID
	g.UserID = userID
	g.CreatedAt = current.CreatedAt
	g.UpdatedAt = s.env.Now()
	if err := s.env.Store.UpdateGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal updated", log.FieldUserID, userID, log.FieldGoalID, id)
	return g, nil
}

func (s *GoalService) Delete(ctx context.Context, userID, id string) error {
	if err := s.env.Store.DeleteGoal(ctx, userID, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal deleted", log.FieldUserID, userID, log.FieldGoalID, id)
	return nil
}

// UpdateProgress adds amount (negative for a withdrawal) to the goal. The
// saved amount never drops below zero.
func (s *GoalService) UpdateProgress(ctx context.Context, userID, id string, amount core.Money) (core.Goal, error) {
	if amount == 0 || amount < -core.MaxAmount || amount > core.MaxAmount {
		return core.Goal{}, core.ErrInvalidAmount
	}
	g, err := s.env.Store.AddGoalProgress(ctx, userID, id, amount, s.env.Now())
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal progress: %w", err)
	}
	slog.InfoContext(ctx, "Goal progress updated",
		log.FieldUserID, userID,
		log.FieldGoalID, id,
		log.FieldAmount, int64(amount),
		"status", g.Status)
	return g, nil
}

// View adds progress and days remaining as of now.
func (s *GoalService) View(g core.Goal) core.GoalView {
	return g.View(s.env.Now())
}
