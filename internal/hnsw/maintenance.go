package hnsw

import (
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// MarkDeleted tombstones a node without touching the graph structure:
// its edges stay in place so other nodes' neighbor lists remain valid,
// and searches skip it via the Deleted check in searchLayerLocked.
func (ix *Index) MarkDeleted(id vector.ID) error {
	ix.nodesMu.Lock()
	defer ix.nodesMu.Unlock()
	node, ok := ix.nodes[id]
	if !ok {
		return errs.NotFoundErr("hnsw.MarkDeleted")
	}
	node.Deleted = true
	return nil
}

// BatchDeleteResult reports the per-item outcome of a batch delete.
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

// BatchInsertResult reports the per-item outcome of a batch insert.
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

// Vacuum physically removes tombstoned nodes: it deletes their entries
// from the node map and scrubs every remaining node's neighbor sets of
// references to them, reselecting the entry point if it was removed.
func (ix *Index) Vacuum() {
	ix.nodesMu.Lock()
	defer ix.nodesMu.Unlock()

	removed := make(map[vector.ID]struct{})
	for id, node := range ix.nodes {
		if node.Deleted {
			removed[id] = struct{}{}
		}
	}
	if len(removed) == 0 {
		return
	}

	for id := range removed {
		delete(ix.nodes, id)
	}
	for _, node := range ix.nodes {
		for layer := range node.Neighbors {
			for id := range removed {
				delete(node.Neighbors[layer], id)
			}
		}
	}

	ix.entryMu.Lock()
	if ix.entry != nil {
		if _, gone := removed[*ix.entry]; gone {
			ix.entry = ix.reselectEntryPointLocked()
		}
	}
	ix.entryMu.Unlock()
}

// reselectEntryPointLocked picks the highest-level surviving node as
// the new entry point. Assumes ix.nodesMu is already held.
func (ix *Index) reselectEntryPointLocked() *vector.ID {
	var best *vector.ID
	bestLevel := -1
	for id, node := range ix.nodes {
		if node.Level > bestLevel {
			nid := id
			best = &nid
			bestLevel = node.Level
		}
	}
	return best
}

// AllNodes returns every resident node, including tombstones, for
// snapshotting.
func (ix *Index) AllNodes() []*Node {
	ix.nodesMu.RLock()
	defer ix.nodesMu.RUnlock()
	out := make([]*Node, 0, len(ix.nodes))
	for _, node := range ix.nodes {
		out = append(out, node)
	}
	return out
}

// RestoreNode installs a fully-formed node (with its neighbor sets
// already built) directly into the graph, bypassing the normal
// level-assignment/greedy-descent/pruning insert path. This is the
// counterpart used when rehydrating a persisted snapshot, where the
// graph structure was already computed before it was written out.
func (ix *Index) RestoreNode(node *Node) {
	ix.nodesMu.Lock()
	ix.nodes[node.ID] = node
	ix.nodesMu.Unlock()

	if node.Embedding != nil {
		ix.dimMu.Lock()
		if ix.dim == nil {
			d := len(node.Embedding)
			ix.dim = &d
		}
		ix.dimMu.Unlock()
	}
}

// SetEntryPoint overrides the current entry point, for use after a
// full snapshot restore.
func (ix *Index) SetEntryPoint(id vector.ID) {
	ix.entryMu.Lock()
	eid := id
	ix.entry = &eid
	ix.entryMu.Unlock()
}

// LevelHistogram returns, for each layer 0..maxLevel, the count of
// resident nodes present at that layer or above (a cumulative count,
// not a per-layer-only histogram).
func (ix *Index) LevelHistogram() []int {
	ix.nodesMu.RLock()
	defer ix.nodesMu.RUnlock()

	maxLevel := 0
	for _, node := range ix.nodes {
		if node.Level > maxLevel {
			maxLevel = node.Level
		}
	}
	hist := make([]int, maxLevel+1)
	for _, node := range ix.nodes {
		for l := 0; l <= node.Level; l++ {
			hist[l]++
		}
	}
	return hist
}
