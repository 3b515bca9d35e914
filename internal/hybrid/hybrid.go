// Package hybrid implements the tiered index that owns both the HNSW
// graph (recent vectors) and the IVF partition (historical vectors),
// routes writes to the appropriate tier by age, fuses reads across
// both, and migrates vectors across the boundary as they age past the
// recent threshold.
package hybrid

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vecthorn/vecthorn/internal/async"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/hnsw"
	"github.com/vecthorn/vecthorn/internal/ivf"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// Resolver materializes chunk-backed vectors for either sub-index.
// hnsw.Resolver and ivf.Resolver share this exact method set, so a
// Resolver value satisfies both without an adapter.
type Resolver interface {
	Resolve(ctx context.Context, ref vector.ChunkRef) (vector.Embedding, error)
}

// Config holds the tier's own parameters plus the sub-index configs.
type Config struct {
	RecentThreshold    time.Duration
	HNSW               hnsw.Config
	IVF                ivf.Config
	MigrationBatchSize int
	AutoMigrate        bool
}

// DefaultConfig mirrors the numeric defaults scattered through §4 of
// the design: a week-long recency window and a modest migration batch.
func DefaultConfig() Config {
	return Config{
		RecentThreshold:    7 * 24 * time.Hour,
		HNSW:               hnsw.DefaultConfig(),
		IVF:                ivf.DefaultConfig(),
		MigrationBatchSize: 100,
		AutoMigrate:        false,
	}
}

// Tier composes the recent (HNSW) and historical (IVF) indices behind
// one timestamp-driven routing layer. Each piece of shared state has
// its own lock, per §5: the sub-indices guard themselves, and the
// timestamp/location map and counters are guarded here.
type Tier struct {
	config   Config
	resolver Resolver

	recent     *hnsw.Index
	historical *ivf.Index

	stateMu    sync.RWMutex
	timestamps map[vector.ID]time.Time
	location   map[vector.ID]bool // true = recent tier, false = historical tier

	countersMu      sync.RWMutex
	recentCount     int
	historicalCount int

	initMu      sync.RWMutex
	initialized bool

	schedMu   sync.Mutex
	scheduler *async.Scheduler
}

// New builds an uninitialized tier. Call Initialize before any insert
// or search; resolver may be nil if no chunk-backed vectors will ever
// be used.
func New(cfg Config, resolver Resolver) *Tier {
	return &Tier{
		config:     cfg,
		resolver:   resolver,
		recent:     hnsw.New(cfg.HNSW),
		historical: ivf.New(cfg.IVF),
		timestamps: make(map[vector.ID]time.Time),
		location:   make(map[vector.ID]bool),
	}
}

// Restore builds an already-initialized tier directly from rehydrated
// sub-indices and a previously-persisted timestamp/location table,
// bypassing Initialize and Insert's bookkeeping. This is the
// persistence-layer counterpart to New: the persister has already
// restored each sub-index's internal state, so all that remains is to
// recompute the eagerly-maintained counters from the location map.
func Restore(cfg Config, resolver Resolver, recent *hnsw.Index, historical *ivf.Index, timestamps map[vector.ID]time.Time, location map[vector.ID]bool) *Tier {
	t := &Tier{
		config:     cfg,
		resolver:   resolver,
		recent:     recent,
		historical: historical,
		timestamps: timestamps,
		location:   location,
	}
	t.initialized = true
	for _, recentLoc := range location {
		if recentLoc {
			t.recentCount++
		} else {
			t.historicalCount++
		}
	}
	return t
}

func (t *Tier) Config() Config { return t.config }

// Recent returns the underlying HNSW index, for callers (persistence,
// statistics) that need direct access.
func (t *Tier) Recent() *hnsw.Index { return t.recent }

// Historical returns the underlying IVF index.
func (t *Tier) Historical() *ivf.Index { return t.historical }

// Initialize trains the historical side on trainingData. Training
// never admits user vectors: IVF's Train already resets the inverted
// lists to empty, so no post-training cleanup is required here.
func (t *Tier) Initialize(trainingData []vector.Embedding) (ivf.TrainResult, error) {
	result, err := t.historical.Train(trainingData)
	if err != nil {
		return result, err
	}
	t.initMu.Lock()
	t.initialized = true
	t.initMu.Unlock()
	return result, nil
}

// IsInitialized reports whether Initialize has completed successfully.
func (t *Tier) IsInitialized() bool {
	t.initMu.RLock()
	defer t.initMu.RUnlock()
	return t.initialized
}

func (t *Tier) isRecent(now, ts time.Time) bool {
	return now.Sub(ts) < t.config.RecentThreshold
}

// Insert classifies id by ts against now and routes it to the
// appropriate tier, recording the timestamp and bumping the matching
// counter. ts defaults to time.Now() when the zero value is passed.
func (t *Tier) Insert(id vector.ID, emb vector.Embedding, ts time.Time) error {
	return t.insert(id, emb, ts, nil)
}

// InsertWithChunk is identical to Insert but propagates a chunk
// reference into whichever sub-index receives the vector.
func (t *Tier) InsertWithChunk(id vector.ID, emb vector.Embedding, ts time.Time, ref vector.ChunkRef) error {
	return t.insert(id, emb, ts, &ref)
}

func (t *Tier) insert(id vector.ID, emb vector.Embedding, ts time.Time, ref *vector.ChunkRef) error {
	if !t.IsInitialized() {
		return errs.NotInitializedErr("hybrid.Insert")
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	t.stateMu.Lock()
	if _, exists := t.timestamps[id]; exists {
		t.stateMu.Unlock()
		return errs.DuplicateVectorErr("hybrid.Insert", id.String())
	}
	recent := t.isRecent(time.Now(), ts)
	t.timestamps[id] = ts
	t.location[id] = recent
	t.stateMu.Unlock()

	var err error
	if recent {
		if ref != nil {
			err = t.recent.InsertWithChunk(id, emb, *ref)
		} else {
			err = t.recent.Insert(id, emb)
		}
	} else {
		if ref != nil {
			err = t.historical.InsertWithChunk(id, emb, *ref)
		} else {
			err = t.historical.Insert(id, emb)
		}
	}
	if err != nil {
		t.stateMu.Lock()
		delete(t.timestamps, id)
		delete(t.location, id)
		t.stateMu.Unlock()
		return err
	}

	t.countersMu.Lock()
	if recent {
		t.recentCount++
	} else {
		t.historicalCount++
	}
	t.countersMu.Unlock()
	return nil
}

// IsInRecent reports whether id currently resides in the recent (HNSW) tier.
func (t *Tier) IsInRecent(id vector.ID) bool {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	loc, ok := t.location[id]
	return ok && loc
}

// IsInHistorical reports whether id currently resides in the historical (IVF) tier.
func (t *Tier) IsInHistorical(id vector.ID) bool {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	loc, ok := t.location[id]
	return ok && !loc
}

// RecentCount returns the eagerly-maintained count of vectors currently
// routed to the HNSW tier.
func (t *Tier) RecentCount() int {
	t.countersMu.RLock()
	defer t.countersMu.RUnlock()
	return t.recentCount
}

// HistoricalCount returns the eagerly-maintained count of vectors
// currently routed to the IVF tier.
func (t *Tier) HistoricalCount() int {
	t.countersMu.RLock()
	defer t.countersMu.RUnlock()
	return t.historicalCount
}

// Timestamp returns the recorded insertion timestamp for id.
func (t *Tier) Timestamp(id vector.ID) (time.Time, bool) {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	ts, ok := t.timestamps[id]
	return ts, ok
}

// SearchConfig tunes a fused search across both tiers.
type SearchConfig struct {
	SearchRecent     bool
	SearchHistorical bool
	RecentK          int
	HistoricalK      int
	EF               int
	NProbe           int
}

// DefaultSearchConfig searches both tiers with the HNSW ef and the
// IVF index's own configured n_probe.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{SearchRecent: true, SearchHistorical: true, EF: 50}
}

// SearchResult is one ranked hit, tagged with the tier it came from.
type SearchResult struct {
	ID       vector.ID
	Distance float32
	Recent   bool
}

// Search fuses HNSW and IVF results: each side is searched for its own
// k (falling back to the overall k), the two lists are concatenated,
// sorted by ascending distance, and truncated to k. An uninitialized
// tier returns an empty result rather than an error, per §4.7.
func (t *Tier) Search(ctx context.Context, query vector.Embedding, k int, cfg SearchConfig) ([]SearchResult, error) {
	if !t.IsInitialized() {
		return nil, nil
	}

	if t.config.AutoMigrate {
		_, _ = t.MigrateOldVectors(ctx)
	}

	recentK := cfg.RecentK
	if recentK == 0 {
		recentK = k
	}
	historicalK := cfg.HistoricalK
	if historicalK == 0 {
		historicalK = k
	}

	var results []SearchResult
	if cfg.SearchRecent {
		hits, err := t.recent.Search(ctx, query, recentK, cfg.EF, t.resolver)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			results = append(results, SearchResult{ID: h.ID, Distance: h.Distance, Recent: true})
		}
	}
	if cfg.SearchHistorical {
		var hits []ivf.SearchResult
		var err error
		if cfg.NProbe > 0 {
			hits, err = t.historical.SearchWithProbe(ctx, query, historicalK, cfg.NProbe, t.resolver)
		} else {
			hits, err = t.historical.Search(ctx, query, historicalK, t.resolver)
		}
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			results = append(results, SearchResult{ID: h.ID, Distance: h.Distance, Recent: false})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID.Less(results[j].ID)
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// MetadataLookup resolves the stored metadata for an id, used by
// SearchWithFilter's post-filter pass.
type MetadataLookup interface {
	Lookup(id vector.ID) (vector.Metadata, bool)
}

// MetadataTable is a plain map adapter satisfying MetadataLookup.
type MetadataTable map[vector.ID]vector.Metadata

func (m MetadataTable) Lookup(id vector.ID) (vector.Metadata, bool) {
	v, ok := m[id]
	return v, ok
}
