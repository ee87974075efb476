package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Ristretto is a TTL cache backed by dgraph-io/ristretto. Every entry costs 1,
// so maxItems bounds the number of entries.
type Ristretto[T any] struct {
	c   *ristretto.Cache[string, T]
	ttl time.Duration
}

var _ Cache[int] = (*Ristretto[int])(nil)

func NewRistretto[T any](maxItems int64, ttl time.Duration) (*Ristretto[T], error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, T]{
		NumCounters: maxItems * 10, // number of keys to track frequency of
		MaxCost:     maxItems,
		BufferItems: 64, // number of keys per Get buffer
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto[T]{c: c, ttl: ttl}, nil
}

func (r *Ristretto[T]) Get(key string) (T, bool) {
	return r.c.Get(key)
}

// Set is asynchronous; call Wait when a following Get must observe it.
func (r *Ristretto[T]) Set(key string, data T) {
	r.c.SetWithTTL(key, data, 1, r.ttl)
}

func (r *Ristretto[T]) Delete(key string) {
	r.c.Del(key)
}

func (r *Ristretto[T]) Size() int {
	m := r.c.Metrics
	if m == nil {
		return 0
	}
	return int(m.KeysAdded() - m.KeysEvicted())
}

// Wait blocks until buffered writes are applied.
func (r *Ristretto[T]) Wait() {
	r.c.Wait()
}

func (r *Ristretto[T]) Close() {
	r.c.Close()
}
