package storage

import (
	"container/list"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// QueryCache is an LRU cache with a time-to-live for memoized results.
// Keys are hashed with xxhash, so callers pass a canonical key string.
type QueryCache[V any] struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	cache    map[uint64]*cacheEntry[V]
	lru      *list.List
	hits     uint64
	misses   uint64
}

// cacheEntry represents a cached result
type cacheEntry[V any] struct {
	key       uint64
	value     V
	timestamp time.Time
	element   *list.Element
}

// NewQueryCache creates a new query cache. A non-positive ttl disables expiry.
func NewQueryCache[V any](capacity int, ttl time.Duration) *QueryCache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &QueryCache[V]{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[uint64]*cacheEntry[V]),
		lru:      list.New(),
	}
}

// Get retrieves a cached value
func (qc *QueryCache[V]) Get(key string) (V, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	h := xxhash.Sum64String(key)
	entry, exists := qc.cache[h]
	if !exists {
		qc.misses++
		var zero V
		return zero, false
	}

	if qc.expired(entry) {
		qc.removeLocked(h)
		qc.misses++
		var zero V
		return zero, false
	}

	qc.lru.MoveToFront(entry.element)
	qc.hits++
	return entry.value, true
}

// Put stores a value in the cache
func (qc *QueryCache[V]) Put(key string, value V) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	h := xxhash.Sum64String(key)
	if entry, exists := qc.cache[h]; exists {
		entry.value = value
		entry.timestamp = time.Now()
		qc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry[V]{
		key:       h,
		value:     value,
		timestamp: time.Now(),
	}
	entry.element = qc.lru.PushFront(entry)
	qc.cache[h] = entry

	if qc.lru.Len() > qc.capacity {
		oldest := qc.lru.Back()
		if oldest != nil {
			qc.removeLocked(oldest.Value.(*cacheEntry[V]).key)
		}
	}
}

func (qc *QueryCache[V]) expired(entry *cacheEntry[V]) bool {
	return qc.ttl > 0 && time.Since(entry.timestamp) > qc.ttl
}

// removeLocked removes an entry from the cache (must hold lock)
func (qc *QueryCache[V]) removeLocked(key uint64) {
	if entry, exists := qc.cache[key]; exists {
		qc.lru.Remove(entry.element)
		delete(qc.cache, key)
	}
}

// Invalidate clears all cache entries
func (qc *QueryCache[V]) Invalidate() {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	qc.cache = make(map[uint64]*cacheEntry[V])
	qc.lru = list.New()
}

// Size returns the current cache size
func (qc *QueryCache[V]) Size() int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return len(qc.cache)
}

// Stats returns cache statistics
func (qc *QueryCache[V]) Stats() CacheStats {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	expired := 0
	for _, entry := range qc.cache {
		if qc.expired(entry) {
			expired++
		}
	}

	return CacheStats{
		Size:     len(qc.cache),
		Capacity: qc.capacity,
		Expired:  expired,
		Hits:     qc.hits,
		Misses:   qc.misses,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Expired  int    `json:"expired"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

// HitRate returns the cache hit rate as a percentage
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}
