package chunkloader

import (
	"context"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecthorn/vecthorn/internal/chunkcache"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/storage"
	"github.com/vecthorn/vecthorn/internal/vector"
)

func putChunk(t *testing.T, store *storage.MemDriver, path string, chunk vector.Chunk) {
	t.Helper()
	data, err := cbor.Marshal(chunk)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), path, data))
}

func TestLoader_CacheThrough(t *testing.T) {
	store := storage.NewMemDriver()
	id := vector.IDFromString("v1")
	putChunk(t, store, "p", vector.Chunk{ChunkID: "p", Vectors: map[vector.ID]vector.Embedding{id: {1, 2}}})

	cache, err := chunkcache.New(4)
	require.NoError(t, err)
	loader := New(store, cache, nil)

	chunk, err := loader.Load(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "p", chunk.ChunkID)
	assert.True(t, cache.Contains("p"))
	assert.Equal(t, 1, store.GetCalls("p"))

	_, err = loader.Load(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 1, store.GetCalls("p"), "second load should be served from cache")
}

func TestLoader_SingleFlight(t *testing.T) {
	store := storage.NewMemDriver()
	putChunk(t, store, "p", vector.Chunk{ChunkID: "p", Vectors: map[vector.ID]vector.Embedding{}})

	cache, err := chunkcache.New(4)
	require.NoError(t, err)
	loader := New(store, cache, nil)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*vector.Chunk, n)
	errsOut := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errsOut[i] = loader.Load(context.Background(), "p")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errsOut[i])
		assert.Equal(t, "p", results[i].ChunkID)
	}
	assert.Equal(t, 1, store.GetCalls("p"))
}

func TestLoader_NotFoundIsTerminal(t *testing.T) {
	store := storage.NewMemDriver()
	cache, err := chunkcache.New(4)
	require.NoError(t, err)
	loader := New(store, cache, nil)

	_, err = loader.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errs.Of(err, errs.ChunkLoadError))
	assert.Equal(t, 1, store.GetCalls("missing"), "not-found must not be retried")
}

func TestLoader_Resolve(t *testing.T) {
	store := storage.NewMemDriver()
	id := vector.IDFromString("v1")
	putChunk(t, store, "p", vector.Chunk{ChunkID: "p", Vectors: map[vector.ID]vector.Embedding{id: {1, 2, 3}}})

	cache, err := chunkcache.New(4)
	require.NoError(t, err)
	loader := New(store, cache, nil)

	emb, err := loader.Resolve(context.Background(), vector.ChunkRef{ChunkPath: "p", ID: id})
	require.NoError(t, err)
	assert.Equal(t, vector.Embedding{1, 2, 3}, emb)
}
