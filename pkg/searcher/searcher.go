package searcher

import (
	"context"
	"sort"

	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// Config tunes one HybridSearcher.
type Config struct {
	Fanout FanoutConfig

	// RecentScorer and HistoricalScorer score each side's raw distance
	// into a ScoredResult.Score. Either defaults to CosineScorer{} when
	// nil.
	RecentScorer     Scorer
	HistoricalScorer Scorer

	// SourceWeights multiplies a side's score before merging; a tag
	// absent from the map defaults to weight 1. Passed through to
	// Merge unchanged when Strategy is Weighted.
	SourceWeights map[string]float64
	Strategy      MergeStrategy

	// Metadata resolves a hit's stored metadata for scorers that need
	// it (TimeDecayScorer, PopularityScorer). Nil means every hit is
	// scored with metadata=nil.
	Metadata hybrid.MetadataLookup

	// CacheCapacity enables a QueryCache holding this many entries.
	// Zero disables caching.
	CacheCapacity int
}

// DefaultConfig returns a cosine-only, unweighted, uncached searcher.
func DefaultConfig() Config {
	return Config{
		Fanout:   DefaultFanoutConfig(),
		Strategy: TakeBest,
	}
}

// HybridSearcher ties ParallelSearch, Scorer, and Merge into a single
// query entry point over a hybrid.Tier, per §4.9.
type HybridSearcher struct {
	tier  *hybrid.Tier
	cfg   Config
	cache *QueryCache
}

// New builds a HybridSearcher over tier. cfg's nil Scorer fields
// default to CosineScorer{}.
func New(tier *hybrid.Tier, cfg Config) *HybridSearcher {
	if cfg.RecentScorer == nil {
		cfg.RecentScorer = CosineScorer{}
	}
	if cfg.HistoricalScorer == nil {
		cfg.HistoricalScorer = CosineScorer{}
	}
	return &HybridSearcher{
		tier:  tier,
		cfg:   cfg,
		cache: NewQueryCache(cfg.CacheCapacity),
	}
}

// Outcome is the result of one HybridSearcher.Search call.
type Outcome struct {
	Results  []ScoredResult
	Cached   bool
	TimedOut bool
}

// Search fans a query out across both tiers, scores and merges the
// hits, and returns the top k. A cache hit skips the fan-out entirely
// and is never marked TimedOut, since nothing was run.
func (s *HybridSearcher) Search(ctx context.Context, query vector.Embedding, k int) (Outcome, error) {
	if cached, ok := s.cache.Get(query, k); ok {
		return Outcome{Results: cached, Cached: true}, nil
	}

	fanout, err := ParallelSearch(ctx, s.tier, query, k, s.cfg.Fanout)
	if err != nil {
		return Outcome{}, err
	}

	recent := s.scoreSide(fanout.Recent, SourceRecent, s.cfg.RecentScorer)
	historical := s.scoreSide(fanout.Historical, SourceHistorical, s.cfg.HistoricalScorer)

	merged := Merge(s.cfg.Strategy, s.cfg.SourceWeights, recent, historical)
	if len(merged) > k {
		merged = merged[:k]
	}

	if !fanout.TimedOut {
		s.cache.Put(query, k, merged)
	}
	return Outcome{Results: merged, TimedOut: fanout.TimedOut}, nil
}

func (s *HybridSearcher) scoreSide(hits []hybrid.SearchResult, tag string, scorer Scorer) []ScoredResult {
	out := make([]ScoredResult, 0, len(hits))
	for _, h := range hits {
		var metadata vector.Metadata
		if s.cfg.Metadata != nil {
			metadata, _ = s.cfg.Metadata.Lookup(h.ID)
		}
		score := scorer.Score(h.Distance, metadata)
		if w, ok := s.cfg.SourceWeights[tag]; ok {
			score *= w
		}
		out = append(out, ScoredResult{ID: h.ID, Distance: h.Distance, Score: score, SourceTag: tag})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// CacheStats reports the searcher's cumulative query-cache hit/miss
// counts.
func (s *HybridSearcher) CacheStats() (hits, misses int64) {
	return s.cache.Stats()
}
