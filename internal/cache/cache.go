// Package cache holds the read caches in front of the ledger aggregates.
package cache

// Cache is a keyed store of computed values. Entries may vanish at any time
// (eviction, TTL), so callers must treat a miss as "recompute".
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}
