package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"sixjars/internal/core"
)

func TestGoalService_CreateDefaults(t *testing.T) {
	f := newFixture(t)
	svc := NewGoalService(f.env)

	g, err := svc.Create(context.Background(), testUser, GoalInput{Title: "  New bike ", TargetAmount: 5_000_000, JarCode: core.PLAY})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.Title != "New bike" || g.Status != core.GoalActive || g.Priority != core.PriorityMedium {
		t.Errorf("defaults not applied: %+v", g)
	}
	if g.ID == "" || g.UserID != testUser || !g.CreatedAt.Equal(f.clock.Now()) {
		t.Errorf("identity not stamped: %+v", g)
	}
}

func TestGoalService_CreateRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	svc := NewGoalService(f.env)

	tests := []struct {
		name string
		in   GoalInput
		want error
	}{
		{"no title", GoalInput{TargetAmount: 100}, core.ErrInvalidGoal},
		{"no target", GoalInput{Title: "x"}, core.ErrInvalidAmount},
		{"unknown jar", GoalInput{Title: "x", TargetAmount: 100, JarCode: "CAR"}, core.ErrUnknownJar},
		{"bad priority", GoalInput{Title: "x", TargetAmount: 100, Priority: "urgent"}, core.ErrInvalidGoal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), testUser, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if _, err := svc.Create(context.Background(), "", GoalInput{Title: "x", TargetAmount: 1}); !errors.Is(err, core.ErrEmptyUser) {
		t.Fatalf("expected ErrEmptyUser, got %v", err)
	}
}

func TestGoalService_ActiveOrdersByPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewGoalService(f.env)
	start := f.clock.Now()

	inputs := []GoalInput{
		{Title: "low old", Priority: core.PriorityLow},
		{Title: "high old", Priority: core.PriorityHigh},
		{Title: "medium", Priority: core.PriorityMedium},
		{Title: "cancelled", Priority: core.PriorityHigh, Status: core.GoalCancelled},
		{Title: "high new", Priority: core.PriorityHigh},
	}
	for i, in := range inputs {
		f.clock.Set(start.Add(time.Duration(i) * time.Minute))
		in.TargetAmount = 1_000_000
		if _, err := svc.Create(ctx, testUser, in); err != nil {
			t.Fatalf("Create %q: %v", in.Title, err)
		}
	}

	active, err := svc.Active(ctx, testUser)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	var titles []string
	for _, g := range active {
		titles = append(titles, g.Title)
	}
	want := []string{"high new", "high old", "medium", "low old"}
	if len(titles) != len(want) {
		t.Fatalf("active = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("active = %v, want %v", titles, want)
		}
	}

	all, err := svc.List(ctx, testUser, core.GoalFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 5 || all[0].Title != "high new" {
		t.Errorf("List newest first, got %d goals starting with %q", len(all), all[0].Title)
	}
	if _, err := svc.List(ctx, testUser, core.GoalFilter{Status: "paused"}); !errors.Is(err, core.ErrInvalidGoal) {
		t.Errorf("expected ErrInvalidGoal for unknown status, got %v", err)
	}
}

func TestGoalService_UpdateProgressCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewGoalService(f.env)

	g, err := svc.Create(ctx, testUser, GoalInput{Title: "Emergency fund", TargetAmount: 3_000_000, JarCode: core.LTSS})
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		amount core.Money
		want   core.Money
		status core.GoalStatus
	}{
		{1_000_000, 1_000_000, core.GoalActive},
		{1_500_000, 2_500_000, core.GoalActive},
		{500_000, 3_000_000, core.GoalCompleted},
		{2_000_000, 5_000_000, core.GoalCompleted},
	}
	for i, st := range steps {
		got, err := svc.UpdateProgress(ctx, testUser, g.ID, st.amount)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got.CurrentAmount != st.want || got.Status != st.status {
			t.Fatalf("step %d: current=%d status=%s, want %d %s", i, got.CurrentAmount, got.Status, st.want, st.status)
		}
	}

	final, err := svc.Get(ctx, testUser, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v := svc.View(final); v.Progress != 100 || v.DaysRemaining != nil {
		t.Errorf("view = %+v, want progress capped at 100", v)
	}

	for _, amount := range []core.Money{0, core.MaxAmount + 1, -core.MaxAmount - 1} {
		if _, err := svc.UpdateProgress(ctx, testUser, g.ID, amount); !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if _, err := svc.UpdateProgress(ctx, testUser, "missing", 10); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateProgress(ctx, "someone-else", g.ID, 10); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("other user must not reach the goal, got %v", err)
	}
}

func TestGoalService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewGoalService(f.env)
	created := f.clock.Now()

	g, err := svc.Create(ctx, testUser, GoalInput{Title: "Course", TargetAmount: 2_000_000})
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Set(created.Add(time.Hour))
	due := created.AddDate(0, 0, 10)
	updated, err := svc.Update(ctx, testUser, g.ID, GoalInput{
		Title: "Go course", TargetAmount: 2_500_000, CurrentAmount: 500_000,
		TargetDate: &due, JarCode: core.EDU, Priority: core.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Go course" || updated.JarCode != core.EDU || !updated.CreatedAt.Equal(created) {
		t.Errorf("updated = %+v", updated)
	}
	v := svc.View(updated)
	if v.Progress != 20 || v.DaysRemaining == nil || *v.DaysRemaining != 10 {
		t.Errorf("view = %+v (days %v)", v, v.DaysRemaining)
	}

	if _, err := svc.Update(ctx, testUser, "missing", GoalInput{Title: "x", TargetAmount: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, testUser, g.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, testUser, g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
