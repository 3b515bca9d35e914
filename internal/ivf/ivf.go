// Package ivf implements the inverted-file index: vectors partitioned
// into clusters by k-means, searched by probing the n_probe clusters
// nearest the query rather than scanning every vector.
package ivf

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/vecthorn/vecthorn/internal/distance"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// Resolver materializes the embedding for a chunk-backed inverted-list entry.
type Resolver interface {
	Resolve(ctx context.Context, ref vector.ChunkRef) (vector.Embedding, error)
}

type ResolverFunc func(ctx context.Context, ref vector.ChunkRef) (vector.Embedding, error)

func (f ResolverFunc) Resolve(ctx context.Context, ref vector.ChunkRef) (vector.Embedding, error) {
	return f(ctx, ref)
}

// ClusterID identifies one centroid/inverted-list pair.
type ClusterID int

// Config holds the clustering and probing parameters.
type Config struct {
	NClusters     int
	NProbe        int
	TrainSize     int
	MaxIterations int
	Seed          *uint64
}

func DefaultConfig() Config {
	return Config{NClusters: 256, NProbe: 16, TrainSize: 10000, MaxIterations: 25}
}

func (c Config) Valid() bool {
	return c.NClusters > 0 && c.NProbe > 0 && c.NProbe <= c.NClusters && c.TrainSize > 0 && c.MaxIterations > 0
}

// Centroid is one cluster center.
type Centroid struct {
	ID     ClusterID
	Vector vector.Embedding
}

// TrainResult reports the outcome of a training run.
type TrainResult struct {
	Iterations   int
	Converged    bool
	InitialError float32
	FinalError   float32
}

// entry is one inverted-list member.
type entry struct {
	ID        vector.ID
	Embedding vector.Embedding
	ChunkRef  *vector.ChunkRef
	Deleted   bool
}

// Index is the IVF index. Centroid/training state and the inverted
// lists are guarded by separate locks: a search only needs a read lock
// on the (immutable-between-trainings) centroids plus a read lock on
// the lists it actually probes, not a single global lock across both.
type Index struct {
	mu         sync.RWMutex
	config     Config
	centroids  []Centroid
	dimension  *int
	trained    bool
	total      int

	listsMu sync.RWMutex
	lists   map[ClusterID][]*entry
	idIndex map[vector.ID]ClusterID

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(cfg Config) *Index {
	var src rand.Source
	if cfg.Seed != nil {
		src = rand.NewPCG(*cfg.Seed, *cfg.Seed)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Index{
		config:  cfg,
		lists:   make(map[ClusterID][]*entry),
		idIndex: make(map[vector.ID]ClusterID),
		rng:     rand.New(src),
	}
}

func (ix *Index) Config() Config {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.config
}

func (ix *Index) IsTrained() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.trained
}

func (ix *Index) Dimension() (int, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.dimension == nil {
		return 0, false
	}
	return *ix.dimension, true
}

func (ix *Index) TotalVectors() int {
	ix.listsMu.RLock()
	defer ix.listsMu.RUnlock()
	return ix.total
}

func (ix *Index) Centroids() []Centroid {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Centroid, len(ix.centroids))
	copy(out, ix.centroids)
	return out
}

func (ix *Index) randIntN(n int) int {
	ix.rngMu.Lock()
	defer ix.rngMu.Unlock()
	return ix.rng.IntN(n)
}

func (ix *Index) randFloat64() float64 {
	ix.rngMu.Lock()
	defer ix.rngMu.Unlock()
	return ix.rng.Float64()
}

// Train fits centroids from training data via k-means++ seeding and
// Lloyd's-iteration refinement, then resets the inverted lists.
func (ix *Index) Train(data []vector.Embedding) (TrainResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(data) == 0 {
		return TrainResult{}, errs.InsufficientTrainingDataErr("ivf.Train", 0, ix.config.NClusters)
	}
	if len(data) < ix.config.NClusters {
		return TrainResult{}, errs.InsufficientTrainingDataErr("ivf.Train", len(data), ix.config.NClusters)
	}
	dim := len(data[0])
	for _, v := range data {
		if len(v) != dim {
			return TrainResult{}, errs.InconsistentDimensionsErr("ivf.Train")
		}
	}
	ix.dimension = &dim

	ix.centroids = ix.initializeCentroids(data)

	ix.listsMu.Lock()
	ix.lists = make(map[ClusterID][]*entry, ix.config.NClusters)
	ix.idIndex = make(map[vector.ID]ClusterID)
	ix.total = 0
	for i := 0; i < ix.config.NClusters; i++ {
		ix.lists[ClusterID(i)] = nil
	}
	ix.listsMu.Unlock()

	assignments := make([]ClusterID, len(data))
	prevError := float32(math.Inf(1))
	initialError := ix.computeErrorLocked(data, assignments)
	converged := false
	iterations := 0

	for iter := 0; iter < ix.config.MaxIterations; iter++ {
		iterations = iter + 1
		changed := false
		for i, v := range data {
			nc := ix.nearestCentroidLocked(v)
			if nc != assignments[i] {
				changed = true
				assignments[i] = nc
			}
		}
		ix.updateCentroidsLocked(data, assignments)

		if iterations >= ix.config.MaxIterations {
			break
		}
		currentError := ix.computeErrorLocked(data, assignments)
		errorChange := float32(math.Abs(float64(prevError-currentError))) / prevError
		if !changed || errorChange < 1e-4 {
			converged = true
			break
		}
		prevError = currentError
	}

	finalError := ix.computeErrorLocked(data, assignments)
	ix.trained = true

	return TrainResult{Iterations: iterations, Converged: converged, InitialError: initialError, FinalError: finalError}, nil
}

func (ix *Index) initializeCentroids(data []vector.Embedding) []Centroid {
	centroids := make([]Centroid, 0, ix.config.NClusters)
	first := ix.randIntN(len(data))
	centroids = append(centroids, Centroid{ID: 0, Vector: cloneEmbedding(data[first])})

	for i := 1; i < ix.config.NClusters; i++ {
		distances := make([]float32, len(data))
		for j, point := range data {
			best := float32(math.Inf(1))
			for _, c := range centroids {
				d := distance.L2(point, c.Vector)
				if d < best {
					best = d
				}
			}
			distances[j] = best
		}

		var totalDist float64
		for _, d := range distances {
			totalDist += float64(d) * float64(d)
		}
		threshold := ix.randFloat64() * totalDist

		var cumulative float64
		chosen := len(data) - 1
		for j, d := range distances {
			cumulative += float64(d) * float64(d)
			if cumulative >= threshold {
				chosen = j
				break
			}
		}
		centroids = append(centroids, Centroid{ID: ClusterID(i), Vector: cloneEmbedding(data[chosen])})
	}
	return centroids
}

func cloneEmbedding(e vector.Embedding) vector.Embedding {
	out := make(vector.Embedding, len(e))
	copy(out, e)
	return out
}

// nearestCentroidLocked assumes ix.mu is already held.
func (ix *Index) nearestCentroidLocked(v vector.Embedding) ClusterID {
	best := ClusterID(0)
	bestDist := float32(math.Inf(1))
	for _, c := range ix.centroids {
		d := distance.L2(v, c.Vector)
		if d < bestDist {
			bestDist = d
			best = c.ID
		}
	}
	return best
}

func (ix *Index) updateCentroidsLocked(data []vector.Embedding, assignments []ClusterID) {
	dim := *ix.dimension
	sums := make(map[ClusterID][]float64, len(ix.centroids))
	counts := make(map[ClusterID]int, len(ix.centroids))
	for _, c := range ix.centroids {
		sums[c.ID] = make([]float64, dim)
		counts[c.ID] = 0
	}
	for i, v := range data {
		cid := assignments[i]
		sum := sums[cid]
		for d, x := range v {
			sum[d] += float64(x)
		}
		counts[cid]++
	}
	for i, c := range ix.centroids {
		count := counts[c.ID]
		if count == 0 {
			continue
		}
		newVec := make(vector.Embedding, dim)
		sum := sums[c.ID]
		for d := 0; d < dim; d++ {
			newVec[d] = float32(sum[d] / float64(count))
		}
		ix.centroids[i].Vector = newVec
	}
}

// computeErrorLocked assumes cluster IDs are dense indices 0..len(centroids)-1,
// which initializeCentroids guarantees.
func (ix *Index) computeErrorLocked(data []vector.Embedding, assignments []ClusterID) float32 {
	var total float64
	for i, v := range data {
		c := ix.centroids[assignments[i]]
		d := distance.L2(v, c.Vector)
		total += float64(d) * float64(d)
	}
	return float32(total / float64(len(data)))
}
