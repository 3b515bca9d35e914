// Package chunkloader fetches vector chunks from a storage.Driver on
// demand, populating a chunkcache.Cache and coalescing concurrent
// requests for the same path into a single fetch.
package chunkloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/singleflight"

	"github.com/vecthorn/vecthorn/internal/chunkcache"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/retry"
	"github.com/vecthorn/vecthorn/internal/storage"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// Loader fetches chunks, caches them, and deduplicates concurrent
// requests for an identical path. The golang.org/x/sync/singleflight
// group plays the role the original design gives to a hand-rolled
// per-path mutex map: at most one fetch in flight per key, waiters
// share the winner's result, and the entry is cleaned up automatically
// once the call returns.
type Loader struct {
	storage  storage.Driver
	cache    *chunkcache.Cache
	group    singleflight.Group
	schedule []time.Duration
}

// New builds a loader backed by the given storage and cache. schedule
// is the retry backoff; pass nil to use retry.DefaultSchedule.
func New(store storage.Driver, cache *chunkcache.Cache, schedule []time.Duration) *Loader {
	if schedule == nil {
		schedule = retry.DefaultSchedule
	}
	return &Loader{storage: store, cache: cache, schedule: schedule}
}

// Load returns the chunk at path, consulting the cache first, then
// coalescing concurrent misses into one retried fetch.
func (l *Loader) Load(ctx context.Context, path string) (*vector.Chunk, error) {
	if chunk, ok := l.cache.Get(path); ok {
		return chunk, nil
	}

	v, err, _ := l.group.Do(path, func() (interface{}, error) {
		// Re-check: a previous winner may have published while we were
		// waiting for the singleflight slot to become available.
		if chunk, ok := l.cache.Get(path); ok {
			return chunk, nil
		}

		data, err := retry.Do(ctx, l.schedule, func(int) ([]byte, error) {
			bytes, found, err := l.storage.Get(ctx, path)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", path, err)
			}
			if !found {
				return nil, errs.NotFoundErr("chunkloader.Load")
			}
			return bytes, nil
		})
		if err != nil {
			return nil, errs.ChunkLoadErr("chunkloader.Load", fmt.Errorf("%s: %w", path, err))
		}

		var chunk vector.Chunk
		if err := cbor.Unmarshal(data, &chunk); err != nil {
			return nil, errs.ChunkLoadErr("chunkloader.Load", fmt.Errorf("decode %s: %w", path, err))
		}

		l.cache.Put(path, &chunk)
		return &chunk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vector.Chunk), nil
}

// LoadMany fetches paths in parallel and returns results in input
// order; each sub-load carries the same cache-through, single-flight
// and retry guarantees as Load.
func (l *Loader) LoadMany(ctx context.Context, paths []string) ([]*vector.Chunk, []error) {
	results := make([]*vector.Chunk, len(paths))
	errsOut := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			chunk, err := l.Load(ctx, p)
			results[i] = chunk
			errsOut[i] = err
		}(i, p)
	}
	wg.Wait()
	return results, errsOut
}

// Resolve implements the lazy-vector resolver interface consumed by the
// HNSW and IVF indices: given a chunk reference, it returns the
// embedding for id, loading the chunk if necessary.
func (l *Loader) Resolve(ctx context.Context, ref vector.ChunkRef) (vector.Embedding, error) {
	chunk, err := l.Load(ctx, ref.ChunkPath)
	if err != nil {
		return nil, err
	}
	emb, ok := chunk.Vectors[ref.ID]
	if !ok {
		return nil, errs.ChunkLoadErr("chunkloader.Resolve", fmt.Errorf("id %s not present in chunk %s", ref.ID, ref.ChunkPath))
	}
	return emb, nil
}
