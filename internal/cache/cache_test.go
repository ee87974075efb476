package cache

import (
	"sync"
	"testing"
	"time"
)

func TestRistrettoSetGet(t *testing.T) {
	c, err := NewRistretto[int](100, time.Minute)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer c.Close()

	c.Set("a", 1)
	c.Wait()
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected 1, got %d (ok=%v)", v, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("expected size 1, got %d", c.Size())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestRistrettoTTL(t *testing.T) {
	c, err := NewRistretto[string](100, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer c.Close()

	c.Set("k", "v")
	c.Wait()
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestGenerations(t *testing.T) {
	g := NewGenerations()
	if g.Current("u1") != 0 {
		t.Fatalf("expected 0 for unseen key")
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Bump("u1")
		}()
	}
	wg.Wait()
	if got := g.Current("u1"); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
	if g.Current("u2") != 0 {
		t.Fatalf("keys must be independent")
	}

	var nilGen *Generations
	nilGen.Bump("x")
	if nilGen.Current("x") != 0 {
		t.Fatalf("nil generations must report 0")
	}
}
