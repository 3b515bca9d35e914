// Package hnsw implements the hierarchical navigable small world graph:
// a multi-layer proximity graph with incremental insert, soft-delete,
// and lazy (chunk-resolved) vectors.
//
// The graph algorithms here are a direct, from-scratch port of the
// reference HNSW implementation's insert/search/prune flow, not a
// wrapper over a third-party graph library, because the behavior this
// package must reproduce (the new-node-not-yet-published pruning fix,
// the specific level-assignment distribution, tombstone-preserving
// soft delete) is not something an opaque graph implementation exposes.
package hnsw

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// Resolver materializes the embedding for a chunk-backed node.
type Resolver interface {
	Resolve(ctx context.Context, ref vector.ChunkRef) (vector.Embedding, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ref vector.ChunkRef) (vector.Embedding, error)

func (f ResolverFunc) Resolve(ctx context.Context, ref vector.ChunkRef) (vector.Embedding, error) {
	return f(ctx, ref)
}

// Config holds the graph construction parameters.
type Config struct {
	M              int
	M0             int
	EfConstruction int
	Seed           *uint64
}

func DefaultConfig() Config {
	return Config{M: 16, M0: 32, EfConstruction: 200}
}

// Node is one graph participant. Embedding is nil for a lazily-loaded
// node restored from a snapshot without its inline vector; in that case
// ChunkRef must be set and a Resolver supplied to any operation that
// touches it.
type Node struct {
	ID        vector.ID
	Embedding vector.Embedding
	ChunkRef  *vector.ChunkRef
	Level     int
	Neighbors []map[vector.ID]struct{} // Neighbors[l] = neighbor set at layer l
	Deleted   bool
}

// Index is the HNSW graph. Per §5 of the design, each piece of mutable
// state is behind its own lock so that, e.g., a search never blocks on
// the PRNG or the dimension check.
type Index struct {
	config Config

	nodesMu sync.RWMutex
	nodes   map[vector.ID]*Node

	entryMu sync.RWMutex
	entry   *vector.ID

	rngMu sync.Mutex
	rng   *rand.Rand

	dimMu sync.RWMutex
	dim   *int
}

func New(cfg Config) *Index {
	var src rand.Source
	if cfg.Seed != nil {
		src = rand.NewPCG(*cfg.Seed, *cfg.Seed)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Index{
		config: cfg,
		nodes:  make(map[vector.ID]*Node),
		rng:    rand.New(src),
	}
}

func (ix *Index) Config() Config { return ix.config }

// assignLevel samples a level with P(level >= l+1 | level >= l) = 0.408,
// giving roughly 59% of nodes at layer 0.
func (ix *Index) assignLevel() int {
	const p = 0.408
	ix.rngMu.Lock()
	defer ix.rngMu.Unlock()
	level := 0
	for ix.rng.Float64() < p {
		level++
	}
	return level
}

func (ix *Index) checkAndSetDimension(op string, d int) error {
	ix.dimMu.Lock()
	defer ix.dimMu.Unlock()
	if ix.dim == nil {
		dim := d
		ix.dim = &dim
		return nil
	}
	if *ix.dim != d {
		return errs.DimensionMismatchErr(op, *ix.dim, d)
	}
	return nil
}

func (ix *Index) Dimension() (int, bool) {
	ix.dimMu.RLock()
	defer ix.dimMu.RUnlock()
	if ix.dim == nil {
		return 0, false
	}
	return *ix.dim, true
}

func (ix *Index) EntryPoint() (vector.ID, bool) {
	ix.entryMu.RLock()
	defer ix.entryMu.RUnlock()
	if ix.entry == nil {
		return vector.ID{}, false
	}
	return *ix.entry, true
}

func (ix *Index) NodeCount() int {
	ix.nodesMu.RLock()
	defer ix.nodesMu.RUnlock()
	return len(ix.nodes)
}

// ActiveCount returns the number of non-tombstoned nodes.
func (ix *Index) ActiveCount() int {
	ix.nodesMu.RLock()
	defer ix.nodesMu.RUnlock()
	n := 0
	for _, node := range ix.nodes {
		if !node.Deleted {
			n++
		}
	}
	return n
}

// GetNode returns the resident node itself (not a copy), if present.
func (ix *Index) GetNode(id vector.ID) (*Node, bool) {
	ix.nodesMu.RLock()
	defer ix.nodesMu.RUnlock()
	n, ok := ix.nodes[id]
	return n, ok
}

// Insert adds a vector with an inline embedding.
func (ix *Index) Insert(id vector.ID, emb vector.Embedding) error {
	return ix.insert(id, emb, nil)
}

// InsertWithChunk is identical to Insert but additionally records a
// chunk reference for the vector, for later reload through a resolver.
func (ix *Index) InsertWithChunk(id vector.ID, emb vector.Embedding, ref vector.ChunkRef) error {
	return ix.insert(id, emb, &ref)
}

func (ix *Index) insert(id vector.ID, emb vector.Embedding, ref *vector.ChunkRef) error {
	ix.nodesMu.RLock()
	_, exists := ix.nodes[id]
	ix.nodesMu.RUnlock()
	if exists {
		return errs.DuplicateVectorErr("hnsw.Insert", id.String())
	}
	if err := ix.checkAndSetDimension("hnsw.Insert", len(emb)); err != nil {
		return err
	}

	level := ix.assignLevel()
	node := &Node{
		ID:        id,
		Embedding: emb,
		ChunkRef:  ref,
		Level:     level,
		Neighbors: make([]map[vector.ID]struct{}, level+1),
	}
	for i := range node.Neighbors {
		node.Neighbors[i] = make(map[vector.ID]struct{})
	}

	ix.entryMu.Lock()
	isFirst := ix.entry == nil
	if isFirst {
		eid := id
		ix.entry = &eid
	}
	ix.entryMu.Unlock()

	if isFirst {
		ix.nodesMu.Lock()
		ix.nodes[id] = node
		ix.nodesMu.Unlock()
		return nil
	}

	ix.entryMu.RLock()
	entryID := *ix.entry
	ix.entryMu.RUnlock()

	ix.nodesMu.RLock()
	entryNode := ix.nodes[entryID]
	entryLevel := entryNode.Level
	ix.nodesMu.RUnlock()

	current := entryID

	// Phase 1: greedy descent through the layers strictly above the
	// insertion range, carrying only the single best candidate forward
	// (§4.4 step 1). Layers above entryLevel never run: there is
	// nothing to descend through yet.
	for lc := entryLevel; lc > level; lc-- {
		candidates, err := ix.searchLayer(context.Background(), emb, current, 1, lc, nil)
		if err != nil {
			return err
		}
		if len(candidates) > 0 {
			current = candidates[0].id
		}
	}

	ix.nodesMu.Lock()
	defer ix.nodesMu.Unlock()

	// Phase 2: beam search each layer in the insertion range, seeded by
	// the best candidate descended (or found) from the layer above.
	searchLevel := min(level, entryLevel)
	for lc := searchLevel; lc >= 0; lc-- {
		m := ix.config.M
		if lc == 0 {
			m = ix.config.M0
		}

		candidates, err := ix.searchLayerLocked(context.Background(), emb, current, ix.config.EfConstruction, lc, nil)
		if err != nil {
			return err
		}
		if len(candidates) > 0 {
			current = candidates[0].id
		}
		neighbors := selectNeighbors(candidates, m)

		for _, nb := range neighbors {
			node.Neighbors[lc][nb] = struct{}{}
		}

		var pruneTargets []vector.ID
		for _, nbID := range neighbors {
			nbNode, ok := ix.nodes[nbID]
			if !ok || nbNode.Level < lc {
				continue
			}
			nbNode.Neighbors[lc][id] = struct{}{}
			if len(nbNode.Neighbors[lc]) > m {
				pruneTargets = append(pruneTargets, nbID)
			}
		}

		for _, nbID := range pruneTargets {
			nbNode := ix.nodes[nbID]
			neighborIDs := make([]vector.ID, 0, len(nbNode.Neighbors[lc]))
			for n := range nbNode.Neighbors[lc] {
				neighborIDs = append(neighborIDs, n)
			}
			pruned, err := ix.pruneWithNewNode(neighborIDs, nbNode.Embedding, m, id, emb)
			if err != nil {
				return err
			}
			newSet := make(map[vector.ID]struct{}, len(pruned))
			for _, p := range pruned {
				newSet[p] = struct{}{}
			}
			nbNode.Neighbors[lc] = newSet
		}
	}

	ix.nodes[id] = node
	if level > entryLevel {
		ix.entryMu.Lock()
		eid := id
		ix.entry = &eid
		ix.entryMu.Unlock()
	}
	return nil
}

// vectorOfLocked resolves a node's embedding, assuming nodesMu is
// already held by the caller (R or W).
func (ix *Index) vectorOfLocked(ctx context.Context, node *Node, resolver Resolver) (vector.Embedding, error) {
	if node.Embedding != nil {
		return node.Embedding, nil
	}
	if node.ChunkRef == nil || resolver == nil {
		return nil, errs.ChunkLoadErr("hnsw", fmt.Errorf("node %s has no inline embedding and no resolver was supplied", node.ID))
	}
	return resolver.Resolve(ctx, *node.ChunkRef)
}
