// Package chunkcache implements the bounded LRU of deserialised vector
// chunks shared by the HNSW and IVF indices when they lazily resolve
// chunk-backed vectors.
package chunkcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vecthorn/vecthorn/internal/vector"
)

// Metrics accumulates cumulative cache counters.
type Metrics struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns Hits/(Hits+Misses), with the convention 0/0 => 0.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

// Cache is a bounded map from storage path to deserialised chunk, with
// strict LRU eviction and cumulative hit/miss/eviction counters. It is
// the only component that owns chunk data; everything else borrows
// through Get.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *vector.Chunk]
	metrics Metrics
}

// New builds a cache with a fixed positive capacity.
func New(capacity int) (*Cache, error) {
	c := &Cache{}
	l, err := lru.NewWithEvict[string, *vector.Chunk](capacity, func(string, *vector.Chunk) {
		c.metrics.Evictions++
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Put inserts or overwrites the chunk at path.
func (c *Cache) Put(path string, chunk *vector.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(path, chunk)
}

// Get returns the chunk at path, updating its recency, and records a
// hit or miss.
func (c *Cache) Get(path string) (*vector.Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunk, ok := c.lru.Get(path)
	if ok {
		c.metrics.Hits++
	} else {
		c.metrics.Misses++
	}
	return chunk, ok
}

// Contains reports whether path is cached, without affecting recency
// or counters.
func (c *Cache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(path)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Metrics returns a snapshot of the cumulative counters.
func (c *Cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}
