package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sixjars/internal/core"
)

func (s *Store) CreateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; ok {
		return core.NewStorageError("create goal", fmt.Errorf("duplicate id %s", g.ID))
	}
	s.goals[g.ID] = cloneGoal(g)
	return nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.goals[g.ID]
	if !ok || prev.UserID != g.UserID {
		return fmt.Errorf("goal %s: %w", g.ID, core.ErrNotFound)
	}
	g.CreatedAt = prev.CreatedAt
	s.goals[g.ID] = cloneGoal(g)
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) GetGoal(_ context.Context, userID, id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return cloneGoal(g), nil
}

func (s *Store) ListGoals(_ context.Context, userID string, f core.GoalFilter) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Goal{}
	for _, g := range s.goals {
		if g.UserID != userID ||
			(f.Status != "" && g.Status != f.Status) ||
			(f.JarCode != "" && g.JarCode != f.JarCode) {
			continue
		}
		out = append(out, cloneGoal(g))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) AddGoalProgress(_ context.Context, userID, id string, delta core.Money, now time.Time) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	g.AddProgress(delta)
	g.UpdatedAt = now
	s.goals[id] = g
	return cloneGoal(g), nil
}

func cloneGoal(g core.Goal) core.Goal {
	if g.TargetDate != nil {
		d := *g.TargetDate
		g.TargetDate = &d
	}
	return g
}
