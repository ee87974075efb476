package cache

import (
	"sync"
	"sync/atomic"
)

// Generations hands out a per-key version number. Writers Bump the key they
// touched; readers fold Current into their cache keys so stale entries are
// simply never read again.
type Generations struct {
	m sync.Map // string -> *atomic.Uint64
}

func NewGenerations() *Generations {
	return &Generations{}
}

func (g *Generations) counter(key string) *atomic.Uint64 {
	if v, ok := g.m.Load(key); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := g.m.LoadOrStore(key, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// Current is nil-safe; a nil Generations always reports 0.
func (g *Generations) Current(key string) uint64 {
	if g == nil {
		return 0
	}
	return g.counter(key).Load()
}

func (g *Generations) Bump(key string) {
	if g == nil {
		return
	}
	g.counter(key).Add(1)
}
