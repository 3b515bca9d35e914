package searcher

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"

	"github.com/vecthorn/vecthorn/internal/vector"
)

// QueryCache is a small bounded cache from (query, k) to a final merged
// result list, keyed by a blake3 digest of the query's raw bits so two
// byte-identical embeddings always collide and near-identical ones
// never do. Eviction is FIFO: the cache does not try to track recency,
// matching the simplicity of the rest of this package's tuning knobs.
type QueryCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string][]ScoredResult

	hits   atomic.Int64
	misses atomic.Int64
}

// NewQueryCache builds a cache holding at most capacity entries.
// capacity<=0 disables caching: Get always misses and Put is a no-op.
func NewQueryCache(capacity int) *QueryCache {
	return &QueryCache{
		capacity: capacity,
		entries:  make(map[string][]ScoredResult),
	}
}

// queryCacheKey hashes a query vector and k into a cache key. It
// rejects queries containing NaN components: a NaN compares unequal to
// itself, so a cached NaN-query result could never be correctly
// invalidated or reused, and ok=false asks the caller to bypass the
// cache for this query entirely.
func queryCacheKey(query vector.Embedding, k int) (string, bool) {
	h := blake3.New()
	buf := make([]byte, 4)
	for _, f := range query {
		if math.IsNaN(float64(f)) {
			return "", false
		}
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		h.Write(buf)
	}
	binary.LittleEndian.PutUint32(buf, uint32(k))
	h.Write(buf)
	return string(h.Sum(nil)), true
}

// Get returns the cached result list for (query, k), if present.
func (c *QueryCache) Get(query vector.Embedding, k int) ([]ScoredResult, bool) {
	if c == nil || c.capacity <= 0 {
		return nil, false
	}
	key, ok := queryCacheKey(query, k)
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	results, found := c.entries[key]
	if found {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return results, found
}

// Put stores results under (query, k), evicting the oldest entry if
// the cache is at capacity. A query containing NaN components is
// silently not cached.
func (c *QueryCache) Put(query vector.Embedding, k int, results []ScoredResult) {
	if c == nil || c.capacity <= 0 {
		return
	}
	key, ok := queryCacheKey(query, k)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = results
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.order = append(c.order, key)
	c.entries[key] = results
}

// Stats reports cumulative hit and miss counts.
func (c *QueryCache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
