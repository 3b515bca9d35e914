package chunkcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecthorn/vecthorn/internal/vector"
)

func TestCache_HitMiss(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", &vector.Chunk{ChunkID: "a"})
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", v.ChunkID)

	m := c.Metrics()
	assert.Equal(t, uint64(1), m.Hits)
	assert.Equal(t, uint64(1), m.Misses)
}

func TestCache_HitRateZeroZero(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	assert.Equal(t, float64(0), c.Metrics().HitRate())
}

func TestCache_Eviction(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	c.Put("a", &vector.Chunk{ChunkID: "a"})
	c.Put("b", &vector.Chunk{ChunkID: "b"})

	assert.Equal(t, uint64(1), c.Metrics().Evictions)
	assert.False(t, c.Contains("a"))
	assert.True(t, c.Contains("b"))
}

func TestCache_ContainsDoesNotAffectRecency(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	c.Put("a", &vector.Chunk{ChunkID: "a"})
	c.Put("b", &vector.Chunk{ChunkID: "b"})

	// Touch "a" via Contains repeatedly; it must not become the MRU entry.
	for i := 0; i < 5; i++ {
		c.Contains("a")
	}
	c.Put("c", &vector.Chunk{ChunkID: "c"})

	assert.False(t, c.Contains("a"))
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
}

func TestCache_Clear(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)
	c.Put("a", &vector.Chunk{ChunkID: "a"})
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
