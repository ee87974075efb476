package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"

	PriorityLow    GoalPriority = "low"
	PriorityMedium GoalPriority = "medium"
	PriorityHigh   GoalPriority = "high"
)

type (
	GoalStatus   string
	GoalPriority string

	// Goal is a savings target, optionally tied to one jar. CurrentAmount
	// only moves through progress updates and never drops below zero.
	Goal struct {
		ID            string       `json:"id"`
		UserID        string       `json:"userId"`
		Title         string       `json:"title"`
		Description   string       `json:"description,omitempty"`
		TargetAmount  Money        `json:"targetAmount"`
		CurrentAmount Money        `json:"currentAmount"`
		TargetDate    *time.Time   `json:"targetDate,omitempty"`
		JarCode       JarCode      `json:"jarCode,omitempty"`
		Status        GoalStatus   `json:"status"`
		Priority      GoalPriority `json:"priority"`
		CreatedAt     time.Time    `json:"createdAt"`
		UpdatedAt     time.Time    `json:"updatedAt"`
	}

	// GoalFilter narrows a goal listing. Zero values mean "any".
	GoalFilter struct {
		Status  GoalStatus
		JarCode JarCode
	}

	// GoalView is a goal with its derived progress figures.
	GoalView struct {
		Goal
		Progress      float64 `json:"progress"`
		DaysRemaining *int    `json:"daysRemaining,omitempty"`
	}
)

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalCancelled:
		return true
	}
	return false
}

func (p GoalPriority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities; higher is more urgent. Unknown priorities rank 0.
func (p GoalPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (g Goal) Validate() error {
	title := strings.TrimSpace(g.Title)
	switch {
	case title == "":
		return errors.Join(ErrInvalidGoal, errors.New("title is required"))
	case len(title) > 100:
		return errors.Join(ErrInvalidGoal, errors.New("title too long (max 100 characters)"))
	case len(g.Description) > 500:
		return errors.Join(ErrInvalidGoal, errors.New("description too long (max 500 characters)"))
	}
	if g.TargetAmount.Validate() != nil {
		return errors.Join(ErrInvalidGoal, ErrInvalidAmount)
	}
	if g.CurrentAmount < 0 || g.CurrentAmount > MaxAmount {
		return errors.Join(ErrInvalidGoal, ErrInvalidAmount)
	}
	if g.JarCode != "" && !g.JarCode.Valid() {
		return ErrUnknownJar
	}
	if !g.Status.Valid() {
		return errors.Join(ErrInvalidGoal, errors.New("status must be active, completed or cancelled"))
	}
	if !g.Priority.Valid() {
		return errors.Join(ErrInvalidGoal, errors.New("priority must be low, medium or high"))
	}
	if g.TargetDate != nil && !StorableDate(*g.TargetDate) {
		return errors.Join(ErrInvalidGoal, fmt.Errorf("target date must fall between %d and %d", MinWindowYear, MaxWindowYear))
	}
	return nil
}

// AddProgress moves CurrentAmount by delta, floored at zero. An active goal
// that reaches its target becomes completed; other statuses are kept.
func (g *Goal) AddProgress(delta Money) {
	g.CurrentAmount += delta
	if g.CurrentAmount < 0 {
		g.CurrentAmount = 0
	}
	if g.Status == GoalActive && g.CurrentAmount >= g.TargetAmount {
		g.Status = GoalCompleted
	}
}

// Progress is CurrentAmount as a percentage of TargetAmount, capped at 100.
func (g Goal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	pct := float64(g.CurrentAmount) * 100 / float64(g.TargetAmount)
	return min(pct, 100)
}

// DaysRemaining counts whole days until TargetDate, rounding partial days
// up. It is negative once the date has passed and nil without a date.
func (g Goal) DaysRemaining(now time.Time) *int {
	if g.TargetDate == nil {
		return nil
	}
	const day = 24 * time.Hour
	d := g.TargetDate.Sub(now)
	n := int(d / day)
	if d%day > 0 {
		n++
	}
	return &n
}

func (g Goal) View(now time.Time) GoalView {
	return GoalView{Goal: g, Progress: g.Progress(), DaysRemaining: g.DaysRemaining(now)}
}
