package hnsw

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/vecthorn/vecthorn/internal/distance"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/vector"
)

type candidate struct {
	id       vector.ID
	distance float32
}

// candidateHeap is a min-heap ordered by ascending distance.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].distance < h[j].distance }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// searchLayer acquires nodesMu itself; use searchLayerLocked when the
// caller already holds it.
func (ix *Index) searchLayer(ctx context.Context, query vector.Embedding, entry vector.ID, ef, layer int, resolver Resolver) ([]candidate, error) {
	ix.nodesMu.RLock()
	defer ix.nodesMu.RUnlock()
	return ix.searchLayerLocked(ctx, query, entry, ef, layer, resolver)
}

// searchLayerLocked is the beam search at a single layer. It assumes
// ix.nodesMu is already held (R or W) by the caller. Deleted nodes are
// never expanded and never kept as results — including the seed
// candidate itself. A ported reference only screens expanded neighbors
// for tombstones, which would let a deleted entry point leak into the
// result set; the seed is screened here too to close that gap.
func (ix *Index) searchLayerLocked(ctx context.Context, query vector.Embedding, entry vector.ID, ef, layer int, resolver Resolver) ([]candidate, error) {
	entryNode, ok := ix.nodes[entry]
	if !ok {
		return nil, nil
	}

	visited := map[vector.ID]struct{}{entry: {}}
	cands := &candidateHeap{}
	heap.Init(cands)
	var nearest []candidate

	if !entryNode.Deleted {
		entryVec, err := ix.vectorOfLocked(ctx, entryNode, resolver)
		if err != nil {
			return nil, err
		}
		seed := candidate{id: entry, distance: distance.L2(query, entryVec)}
		heap.Push(cands, seed)
		nearest = append(nearest, seed)
	} else if layer < len(entryNode.Neighbors) {
		// The seed itself is tombstoned: it cannot be a result, but the
		// graph's connectivity still runs through it, so expand its
		// neighbor set directly to seed the frontier.
		for nbID := range entryNode.Neighbors[layer] {
			nb, ok := ix.nodes[nbID]
			if !ok || nb.Deleted {
				continue
			}
			visited[nbID] = struct{}{}
			nbVec, err := ix.vectorOfLocked(ctx, nb, resolver)
			if err != nil {
				return nil, err
			}
			c := candidate{id: nbID, distance: distance.L2(query, nbVec)}
			heap.Push(cands, c)
			nearest = append(nearest, c)
		}
	}

	return ix.expandLayer(ctx, query, layer, ef, resolver, visited, cands, nearest)
}

func (ix *Index) expandLayer(ctx context.Context, query vector.Embedding, layer, ef int, resolver Resolver, visited map[vector.ID]struct{}, cands *candidateHeap, nearest []candidate) ([]candidate, error) {
	worstOf := func() float32 {
		worst := float32(0)
		for _, c := range nearest {
			if c.distance > worst {
				worst = c.distance
			}
		}
		return worst
	}

	for cands.Len() > 0 {
		current := heap.Pop(cands).(candidate)
		if len(nearest) >= ef && current.distance > worstOf() {
			break
		}

		node, ok := ix.nodes[current.id]
		if !ok || node.Level < layer {
			continue
		}
		for nbID := range node.Neighbors[layer] {
			if _, seen := visited[nbID]; seen {
				continue
			}
			visited[nbID] = struct{}{}

			nb, ok := ix.nodes[nbID]
			if !ok || nb.Deleted {
				continue
			}
			nbVec, err := ix.vectorOfLocked(ctx, nb, resolver)
			if err != nil {
				return nil, err
			}
			d := distance.L2(query, nbVec)
			if len(nearest) < ef || d < worstOf() {
				c := candidate{id: nbID, distance: d}
				heap.Push(cands, c)
				nearest = append(nearest, c)
				if len(nearest) > ef {
					sort.Slice(nearest, func(i, j int) bool { return nearest[i].distance < nearest[j].distance })
					nearest = nearest[:ef]
				}
			}
		}
	}

	sort.Slice(nearest, func(i, j int) bool { return nearest[i].distance < nearest[j].distance })
	if len(nearest) > ef {
		nearest = nearest[:ef]
	}
	return nearest, nil
}

// selectNeighbors keeps the closest m candidates, assumed pre-sorted
// ascending by distance.
func selectNeighbors(candidates []candidate, m int) []vector.ID {
	if m > len(candidates) {
		m = len(candidates)
	}
	out := make([]vector.ID, m)
	for i := 0; i < m; i++ {
		out[i] = candidates[i].id
	}
	return out
}

// pruneWithNewNode re-ranks a neighbor set by distance to base, keeping
// the closest m. newNodeID/newNodeVector let the new node (not yet
// published into ix.nodes) participate in its own neighbors' pruning
// pass without a map lookup that would otherwise fail to find it.
func (ix *Index) pruneWithNewNode(neighbors []vector.ID, base vector.Embedding, m int, newNodeID vector.ID, newNodeVector vector.Embedding) ([]vector.ID, error) {
	type scored struct {
		id   vector.ID
		dist float32
	}
	scoredList := make([]scored, 0, len(neighbors))
	for _, nid := range neighbors {
		if nid == newNodeID {
			scoredList = append(scoredList, scored{id: nid, dist: distance.L2(base, newNodeVector)})
			continue
		}
		n, ok := ix.nodes[nid]
		if !ok {
			continue
		}
		scoredList = append(scoredList, scored{id: nid, dist: distance.L2(base, n.Embedding)})
	}
	sort.Slice(scoredList, func(i, j int) bool { return scoredList[i].dist < scoredList[j].dist })
	if m > len(scoredList) {
		m = len(scoredList)
	}
	out := make([]vector.ID, m)
	for i := 0; i < m; i++ {
		out[i] = scoredList[i].id
	}
	return out, nil
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID       vector.ID
	Distance float32
}

// Search returns the k nearest non-deleted vectors to query, beam-
// searching with width ef at layer 0 and greedily descending the upper
// layers with ef=1. Ties are broken by ascending id order.
func (ix *Index) Search(ctx context.Context, query vector.Embedding, k, ef int, resolver Resolver) ([]SearchResult, error) {
	entryID, ok := ix.EntryPoint()
	if !ok {
		return nil, nil
	}

	if dim, ok := ix.Dimension(); ok && dim != len(query) {
		return nil, errs.DimensionMismatchErr("hnsw.Search", dim, len(query))
	}

	ix.nodesMu.RLock()
	entryNode, ok := ix.nodes[entryID]
	ix.nodesMu.RUnlock()
	if !ok {
		return nil, errs.ChunkLoadErr("hnsw.Search", fmt.Errorf("entry point %s is not resident", entryID))
	}
	topLayer := entryNode.Level

	current := entryID
	for lc := topLayer; lc >= 1; lc-- {
		cands, err := ix.searchLayer(ctx, query, current, 1, lc, resolver)
		if err != nil {
			return nil, err
		}
		if len(cands) > 0 {
			current = cands[0].id
		}
	}

	cands, err := ix.searchLayer(ctx, query, current, ef, 0, resolver)
	if err != nil {
		return nil, err
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		return cands[i].id.Less(cands[j].id)
	})

	if k > len(cands) {
		k = len(cands)
	}
	results := make([]SearchResult, k)
	for i := 0; i < k; i++ {
		results[i] = SearchResult{ID: cands[i].id, Distance: cands[i].distance}
	}
	return results, nil
}
