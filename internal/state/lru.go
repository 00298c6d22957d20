package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// lruMap is an expirable LRU keyed by state key. Entries expire ttl after
// their last write and at most max are kept; ttl <= 0 or max <= 0 disable
// the respective bound. Expired entries are dropped by the cache itself.
type lruMap[V any] struct {
	mu    sync.Mutex // serializes read-modify-write and explicit removal
	cache *expirable.LRU[string, V]
	// evicted counts entries dropped for age or capacity since the last drain.
	evicted atomic.Int64
}

func newLRUMap[V any](ttl time.Duration, max int) *lruMap[V] {
	if max < 0 {
		max = 0
	}
	m := &lruMap[V]{}
	m.cache = expirable.NewLRU[string, V](max, func(string, V) { m.evicted.Add(1) }, ttl)
	return m
}

func (m *lruMap[V]) get(key string) (V, bool) { return m.cache.Get(key) }

// update applies fn to the live value (zero value and false when absent or
// expired), stores the result with a fresh expiry, and returns it.
func (m *lruMap[V]) update(key string, fn func(cur V, found bool) V) V {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, found := m.cache.Get(key)
	next := fn(cur, found)
	m.cache.Add(key, next)
	return next
}

func (m *lruMap[V]) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Remove also fires the eviction callback; a reset is not an eviction.
	if m.cache.Remove(key) {
		m.evicted.Add(-1)
	}
}

// drainEvicted returns how many entries were evicted since the previous call.
func (m *lruMap[V]) drainEvicted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.evicted.Swap(0))
}

// len counts stored entries, including expired ones the cache has not dropped yet.
func (m *lruMap[V]) len() int { return m.cache.Len() }

// snapshot copies every live entry.
func (m *lruMap[V]) snapshot() map[string]V {
	keys := m.cache.Keys()
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		if v, ok := m.cache.Peek(k); ok {
			out[k] = v
		}
	}
	return out
}
