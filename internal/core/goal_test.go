package core

import (
	"errors"
	"testing"
	"time"
)

func TestGoalValidate(t *testing.T) {
	date := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	far := time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)
	good := Goal{Title: "Emergency fund", TargetAmount: 30_000_000, Status: GoalActive, Priority: PriorityHigh, JarCode: LTSS, TargetDate: &date}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Goal)
		want   error
	}{
		{"blank title", func(g *Goal) { g.Title = "  " }, ErrInvalidGoal},
		{"zero target", func(g *Goal) { g.TargetAmount = 0 }, ErrInvalidAmount},
		{"negative current", func(g *Goal) { g.CurrentAmount = -1 }, ErrInvalidGoal},
		{"unknown jar", func(g *Goal) { g.JarCode = "CAR" }, ErrUnknownJar},
		{"bad status", func(g *Goal) { g.Status = "paused" }, ErrInvalidGoal},
		{"bad priority", func(g *Goal) { g.Priority = "urgent" }, ErrInvalidGoal},
		{"date out of range", func(g *Goal) { g.TargetDate = &far }, ErrInvalidGoal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := good
			tt.mutate(&g)
			if err := g.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	noJar := good
	noJar.JarCode = ""
	if err := noJar.Validate(); err != nil {
		t.Fatalf("jar is optional, got %v", err)
	}
}

func TestGoalAddProgress(t *testing.T) {
	g := Goal{TargetAmount: 1000, Status: GoalActive}
	g.AddProgress(400)
	if g.CurrentAmount != 400 || g.Status != GoalActive {
		t.Fatalf("after 400: %+v", g)
	}
	g.AddProgress(600)
	if g.CurrentAmount != 1000 || g.Status != GoalCompleted {
		t.Fatalf("reaching the target must complete the goal: %+v", g)
	}
	g.AddProgress(-5000)
	if g.CurrentAmount != 0 || g.Status != GoalCompleted {
		t.Fatalf("withdrawal floors at zero and keeps status: %+v", g)
	}

	cancelled := Goal{TargetAmount: 100, Status: GoalCancelled}
	cancelled.AddProgress(500)
	if cancelled.Status != GoalCancelled {
		t.Fatalf("cancelled goal must stay cancelled, got %q", cancelled.Status)
	}
}

func TestGoalProgressAndDays(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		current, target Money
		want            float64
	}{
		{0, 1000, 0},
		{250, 1000, 25},
		{1500, 1000, 100},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := (Goal{CurrentAmount: tt.current, TargetAmount: tt.target}).Progress(); got != tt.want {
			t.Errorf("progress %d/%d = %v, want %v", tt.current, tt.target, got, tt.want)
		}
	}

	if (Goal{}).DaysRemaining(now) != nil {
		t.Fatal("no target date must give nil")
	}
	days := []struct {
		target time.Time
		want   int
	}{
		{now.Add(48 * time.Hour), 2},
		{now.Add(49 * time.Hour), 3},
		{now.Add(time.Minute), 1},
		{now, 0},
		{now.Add(-36 * time.Hour), -1},
	}
	for _, tt := range days {
		g := Goal{TargetDate: &tt.target}
		if got := g.DaysRemaining(now); got == nil || *got != tt.want {
			t.Errorf("days until %v = %v, want %d", tt.target, got, tt.want)
		}
	}

	v := Goal{TargetAmount: 200, CurrentAmount: 50}.View(now)
	if v.Progress != 25 || v.DaysRemaining != nil {
		t.Errorf("view = %+v", v)
	}
}

func TestGoalPriorityRank(t *testing.T) {
	if !(PriorityHigh.Rank() > PriorityMedium.Rank() && PriorityMedium.Rank() > PriorityLow.Rank()) {
		t.Fatal("priority ranks out of order")
	}
	if GoalPriority("urgent").Valid() {
		t.Fatal("unknown priority must be invalid")
	}
}
