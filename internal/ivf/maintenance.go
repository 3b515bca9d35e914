package ivf

import (
	"context"
	"sort"

	"github.com/vecthorn/vecthorn/internal/distance"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/vector"
)

func (ix *Index) MarkDeleted(id vector.ID) error {
	ix.listsMu.Lock()
	defer ix.listsMu.Unlock()
	cid, ok := ix.idIndex[id]
	if !ok {
		return errs.NotFoundErr("ivf.MarkDeleted")
	}
	for _, e := range ix.lists[cid] {
		if e.ID == id {
			e.Deleted = true
			return nil
		}
	}
	return errs.NotFoundErr("ivf.MarkDeleted")
}

type BatchDeleteResult struct {
	ID  vector.ID
	Err error
}

func (ix *Index) BatchDelete(ids []vector.ID) []BatchDeleteResult {
	results := make([]BatchDeleteResult, len(ids))
	for i, id := range ids {
		results[i] = BatchDeleteResult{ID: id, Err: ix.MarkDeleted(id)}
	}
	return results
}

type BatchInsertResult struct {
	ID  vector.ID
	Err error
}

func (ix *Index) BatchInsert(vecs []vector.Vector) []BatchInsertResult {
	results := make([]BatchInsertResult, len(vecs))
	for i, v := range vecs {
		results[i] = BatchInsertResult{ID: v.ID, Err: ix.Insert(v.ID, v.Embedding)}
	}
	return results
}

// Vacuum physically removes every tombstoned entry from every list.
func (ix *Index) Vacuum() {
	ix.listsMu.Lock()
	defer ix.listsMu.Unlock()
	for cid, list := range ix.lists {
		kept := list[:0]
		for _, e := range list {
			if e.Deleted {
				delete(ix.idIndex, e.ID)
				ix.total--
				continue
			}
			kept = append(kept, e)
		}
		ix.lists[cid] = kept
	}
}

// Entry is a snapshot of one inverted-list member, exported for
// persistence. It carries no behavior of its own.
type Entry struct {
	ID        vector.ID
	Embedding vector.Embedding
	ChunkRef  *vector.ChunkRef
	Deleted   bool
}

// AllEntries returns every inverted list's members, keyed by cluster,
// for snapshotting. The returned slices are independent copies of the
// internal entry pointers' data.
func (ix *Index) AllEntries() map[ClusterID][]Entry {
	ix.listsMu.RLock()
	defer ix.listsMu.RUnlock()
	out := make(map[ClusterID][]Entry, len(ix.lists))
	for cid, list := range ix.lists {
		entries := make([]Entry, len(list))
		for i, e := range list {
			entries[i] = Entry{ID: e.ID, Embedding: e.Embedding, ChunkRef: e.ChunkRef, Deleted: e.Deleted}
		}
		out[cid] = entries
	}
	return out
}

// Contains reports whether id is present in the index (tombstoned or not).
func (ix *Index) Contains(id vector.ID) bool {
	ix.listsMu.RLock()
	defer ix.listsMu.RUnlock()
	_, ok := ix.idIndex[id]
	return ok
}

func (ix *Index) GetClusterSize(id ClusterID) int {
	ix.listsMu.RLock()
	defer ix.listsMu.RUnlock()
	return len(ix.lists[id])
}

func (ix *Index) GetClusterDistribution() map[ClusterID]int {
	ix.listsMu.RLock()
	defer ix.listsMu.RUnlock()
	out := make(map[ClusterID]int)
	for cid, list := range ix.lists {
		if len(list) > 0 {
			out[cid] = len(list)
		}
	}
	return out
}

// RebalanceResult reports the outcome of a rebalance pass.
type RebalanceResult struct {
	VectorsMoved int
	Improved     bool
}

// Rebalance moves outliers out of clusters whose membership exceeds
// avg*(1+threshold) into their current nearest cluster, without
// retraining centroids. "Variance" here is the variance of cluster
// population sizes, since rebalance is a load-balancing operation, not
// a refinement of cluster cohesion.
func (ix *Index) Rebalance(ctx context.Context, threshold float64, resolver Resolver) (RebalanceResult, error) {
	ix.mu.RLock()
	trained := ix.trained
	centroids := make([]Centroid, len(ix.centroids))
	copy(centroids, ix.centroids)
	ix.mu.RUnlock()
	if !trained {
		return RebalanceResult{}, errs.NotTrainedErr("ivf.Rebalance")
	}

	ix.listsMu.Lock()
	defer ix.listsMu.Unlock()

	initialVariance := sizeVariance(ix.lists)

	total := 0
	for _, list := range ix.lists {
		total += len(list)
	}
	if len(ix.lists) == 0 || total == 0 {
		return RebalanceResult{Improved: false}, nil
	}
	avg := float64(total) / float64(len(ix.lists))
	limit := avg * (1 + threshold)

	moved := 0
	for cid, list := range ix.lists {
		if float64(len(list)) <= limit {
			continue
		}
		excess := len(list) - int(limit)
		if excess <= 0 {
			continue
		}

		c := centroidByID(centroids, cid)
		type scored struct {
			e    *entry
			dist float32
		}
		scoredList := make([]scored, len(list))
		for i, e := range list {
			vec, err := ix.vectorOf(ctx, e, resolver)
			if err != nil {
				return RebalanceResult{}, err
			}
			scoredList[i] = scored{e: e, dist: distance.L2(vec, c.Vector)}
		}
		sort.Slice(scoredList, func(i, j int) bool { return scoredList[i].dist > scoredList[j].dist })

		toMove := make([]*entry, excess)
		for i := 0; i < excess; i++ {
			toMove[i] = scoredList[i].e
		}
		remaining := make([]*entry, 0, len(list)-excess)
		for i := excess; i < len(scoredList); i++ {
			remaining = append(remaining, scoredList[i].e)
		}
		ix.lists[cid] = remaining

		for _, e := range toMove {
			vec, err := ix.vectorOf(ctx, e, resolver)
			if err != nil {
				return RebalanceResult{}, err
			}
			ix.mu.RLock()
			newCluster := ix.nearestCentroidLocked(vec)
			ix.mu.RUnlock()
			ix.lists[newCluster] = append(ix.lists[newCluster], e)
			ix.idIndex[e.ID] = newCluster
			moved++
		}
	}

	finalVariance := sizeVariance(ix.lists)
	return RebalanceResult{VectorsMoved: moved, Improved: finalVariance < initialVariance}, nil
}

func sizeVariance(lists map[ClusterID][]*entry) float64 {
	n := len(lists)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, l := range lists {
		mean += float64(len(l))
	}
	mean /= float64(n)
	var sumSq float64
	for _, l := range lists {
		d := float64(len(l)) - mean
		sumSq += d * d
	}
	return sumSq / float64(n)
}

func centroidByID(centroids []Centroid, id ClusterID) Centroid {
	for _, c := range centroids {
		if c.ID == id {
			return c
		}
	}
	return Centroid{}
}

// Retrain discards centroids, collects every live vector, re-trains
// under the new config, and re-inserts every vector, preserving ids
// and dimensions but changing cluster assignments.
func (ix *Index) Retrain(ctx context.Context, cfg Config, resolver Resolver) (TrainResult, error) {
	type item struct {
		id  vector.ID
		emb vector.Embedding
		ref *vector.ChunkRef
	}

	ix.listsMu.RLock()
	items := make([]item, 0, ix.total)
	for _, list := range ix.lists {
		for _, e := range list {
			if e.Deleted {
				continue
			}
			vec, err := ix.vectorOf(ctx, e, resolver)
			if err != nil {
				ix.listsMu.RUnlock()
				return TrainResult{}, err
			}
			items = append(items, item{id: e.ID, emb: vec, ref: e.ChunkRef})
		}
	}
	ix.listsMu.RUnlock()

	ix.mu.Lock()
	ix.config = cfg
	ix.mu.Unlock()

	data := make([]vector.Embedding, len(items))
	for i, it := range items {
		data[i] = it.emb
	}
	result, err := ix.Train(data)
	if err != nil {
		return TrainResult{}, err
	}

	for _, it := range items {
		var insertErr error
		if it.ref != nil {
			insertErr = ix.InsertWithChunk(it.id, it.emb, *it.ref)
		} else {
			insertErr = ix.Insert(it.id, it.emb)
		}
		if insertErr != nil {
			return result, insertErr
		}
	}
	return result, nil
}

// SetTrained installs externally-computed centroids directly (used
// when rehydrating a persisted snapshot) without running Train.
func (ix *Index) SetTrained(centroids []Centroid, dimension int) {
	ix.mu.Lock()
	ix.centroids = centroids
	ix.dimension = &dimension
	ix.trained = true
	ix.mu.Unlock()

	ix.listsMu.Lock()
	ix.lists = make(map[ClusterID][]*entry, len(centroids))
	for _, c := range centroids {
		ix.lists[c.ID] = nil
	}
	ix.idIndex = make(map[vector.ID]ClusterID)
	ix.total = 0
	ix.listsMu.Unlock()
}

// RestoreEntry installs one inverted-list member directly into its
// cluster, bypassing the normal nearest-centroid Insert path — the
// cluster assignment is already known from the snapshot being restored.
func (ix *Index) RestoreEntry(cid ClusterID, id vector.ID, emb vector.Embedding, ref *vector.ChunkRef, deleted bool) {
	ix.listsMu.Lock()
	defer ix.listsMu.Unlock()
	ix.lists[cid] = append(ix.lists[cid], &entry{ID: id, Embedding: emb, ChunkRef: ref, Deleted: deleted})
	ix.idIndex[id] = cid
	ix.total++
}
