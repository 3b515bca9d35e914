package ivf

import (
	"context"
	"fmt"
	"sort"

	"github.com/vecthorn/vecthorn/internal/distance"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// Insert adds a vector with an inline embedding to its nearest cluster.
func (ix *Index) Insert(id vector.ID, emb vector.Embedding) error {
	return ix.insert(id, emb, nil)
}

// InsertWithChunk is identical to Insert but records a chunk reference
// for later lazy resolution.
func (ix *Index) InsertWithChunk(id vector.ID, emb vector.Embedding, ref vector.ChunkRef) error {
	return ix.insert(id, emb, &ref)
}

func (ix *Index) insert(id vector.ID, emb vector.Embedding, ref *vector.ChunkRef) error {
	ix.mu.RLock()
	trained := ix.trained
	dim := ix.dimension
	ix.mu.RUnlock()
	if !trained {
		return errs.NotTrainedErr("ivf.Insert")
	}
	if dim != nil && *dim != len(emb) {
		return errs.DimensionMismatchErr("ivf.Insert", *dim, len(emb))
	}

	ix.mu.RLock()
	cluster := ix.nearestCentroidLocked(emb)
	ix.mu.RUnlock()

	ix.listsMu.Lock()
	defer ix.listsMu.Unlock()
	if _, exists := ix.idIndex[id]; exists {
		return errs.DuplicateVectorErr("ivf.Insert", id.String())
	}
	ix.lists[cluster] = append(ix.lists[cluster], &entry{ID: id, Embedding: emb, ChunkRef: ref})
	ix.idIndex[id] = cluster
	ix.total++
	return nil
}

// FindCluster reports the nearest centroid to v.
func (ix *Index) FindCluster(v vector.Embedding) (ClusterID, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.trained {
		return 0, errs.NotTrainedErr("ivf.FindCluster")
	}
	return ix.nearestCentroidLocked(v), nil
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID       vector.ID
	Distance float32
}

// Search probes the index's configured n_probe nearest clusters.
func (ix *Index) Search(ctx context.Context, query vector.Embedding, k int, resolver Resolver) ([]SearchResult, error) {
	ix.mu.RLock()
	nProbe := ix.config.NProbe
	ix.mu.RUnlock()
	return ix.SearchWithProbe(ctx, query, k, nProbe, resolver)
}

// SearchWithProbe overrides the configured n_probe for this call.
func (ix *Index) SearchWithProbe(ctx context.Context, query vector.Embedding, k, nProbe int, resolver Resolver) ([]SearchResult, error) {
	ix.mu.RLock()
	trained := ix.trained
	dim := ix.dimension
	centroids := make([]Centroid, len(ix.centroids))
	copy(centroids, ix.centroids)
	ix.mu.RUnlock()

	if !trained {
		return nil, errs.NotTrainedErr("ivf.Search")
	}
	if dim != nil && *dim != len(query) {
		return nil, errs.DimensionMismatchErr("ivf.Search", *dim, len(query))
	}

	type clusterDist struct {
		id   ClusterID
		dist float32
	}
	cds := make([]clusterDist, len(centroids))
	for i, c := range centroids {
		cds[i] = clusterDist{id: c.ID, dist: distance.L2(query, c.Vector)}
	}
	sort.Slice(cds, func(i, j int) bool { return cds[i].dist < cds[j].dist })
	if nProbe > len(cds) {
		nProbe = len(cds)
	}
	cds = cds[:nProbe]

	ix.listsMu.RLock()
	defer ix.listsMu.RUnlock()

	var results []SearchResult
	for _, cd := range cds {
		for _, e := range ix.lists[cd.id] {
			if e.Deleted {
				continue
			}
			vec, err := ix.vectorOf(ctx, e, resolver)
			if err != nil {
				return nil, err
			}
			results = append(results, SearchResult{ID: e.ID, Distance: distance.L2(query, vec)})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID.Less(results[j].ID)
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (ix *Index) vectorOf(ctx context.Context, e *entry, resolver Resolver) (vector.Embedding, error) {
	if e.Embedding != nil {
		return e.Embedding, nil
	}
	if e.ChunkRef == nil || resolver == nil {
		return nil, errs.ChunkLoadErr("ivf", fmt.Errorf("entry %s has no inline embedding and no resolver was supplied", e.ID))
	}
	return resolver.Resolve(ctx, *e.ChunkRef)
}
