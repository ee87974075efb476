package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sixjars/internal/cache"
	"sixjars/internal/core"
	"sixjars/internal/storage/memory"
)

const testUser = "user-1"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	env   Env
	store *memory.Store
	clock *testClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	var seq atomic.Int64
	store := memory.New()
	return fixture{
		env: Env{
			Store:       store,
			Now:         clock.Now,
			NewID:       func() string { return fmt.Sprintf("id-%d", seq.Add(1)) },
			Location:    time.UTC,
			Generations: cache.NewGenerations(),
		},
		store: store,
		clock: clock,
	}
}

func jarsOf(t *testing.T, env Env) map[core.JarCode]core.JarState {
	t.Helper()
	jars, err := NewJarLedger(env).GetAll(context.Background(), testUser)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	return jars
}

func outboxKinds(t *testing.T, f fixture) []core.EventKind {
	t.Helper()
	entries, err := f.store.DequeueOutbox(context.Background(), 100)
	if err != nil {
		t.Fatalf("DequeueOutbox: %v", err)
	}
	kinds := make([]core.EventKind, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Event.Kind)
	}
	return kinds
}

func assertBalanceIdentity(t *testing.T, jars map[core.JarCode]core.JarState) {
	t.Helper()
	for code, j := range jars {
		if j.Balance != j.Allocated-j.Spent {
			t.Errorf("%s: balance %d != allocated %d - spent %d", code, j.Balance, j.Allocated, j.Spent)
		}
	}
}
