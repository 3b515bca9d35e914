package searcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecthorn/vecthorn/internal/vector"
)

func TestQueryCache_MissThenHit(t *testing.T) {
	c := NewQueryCache(4)
	q := vector.Embedding{1, 2, 3}

	_, ok := c.Get(q, 5)
	assert.False(t, ok)

	want := []ScoredResult{{ID: vector.NewID(), Score: 1}}
	c.Put(q, 5, want)

	got, ok := c.Get(q, 5)
	require.True(t, ok)
	assert.Equal(t, want, got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestQueryCache_DifferentKSameQuery_DifferentEntries(t *testing.T) {
	c := NewQueryCache(4)
	q := vector.Embedding{1, 2, 3}
	c.Put(q, 5, []ScoredResult{{Score: 1}})

	_, ok := c.Get(q, 6)
	assert.False(t, ok)
}

func TestQueryCache_EvictsOldestOnOverflow(t *testing.T) {
	c := NewQueryCache(2)
	a := vector.Embedding{1}
	b := vector.Embedding{2}
	d := vector.Embedding{3}

	c.Put(a, 1, []ScoredResult{{Score: 1}})
	c.Put(b, 1, []ScoredResult{{Score: 2}})
	c.Put(d, 1, []ScoredResult{{Score: 3}})

	_, ok := c.Get(a, 1)
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get(b, 1)
	assert.True(t, ok)
	_, ok = c.Get(d, 1)
	assert.True(t, ok)
}

func TestQueryCache_NaNQuery_NeverCached(t *testing.T) {
	c := NewQueryCache(4)
	q := vector.Embedding{float32(math.NaN()), 2}

	c.Put(q, 5, []ScoredResult{{Score: 1}})
	_, ok := c.Get(q, 5)
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(0), misses)
}

func TestQueryCache_ZeroCapacity_Disabled(t *testing.T) {
	c := NewQueryCache(0)
	q := vector.Embedding{1, 2}
	c.Put(q, 5, []ScoredResult{{Score: 1}})
	_, ok := c.Get(q, 5)
	assert.False(t, ok)
}
