package searcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecthorn/vecthorn/internal/hnsw"
	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/ivf"
	"github.com/vecthorn/vecthorn/internal/vector"
)

func trainingData() []vector.Embedding {
	data := make([]vector.Embedding, 0, 12)
	centers := [][2]float32{{0, 0}, {5, 5}, {-5, -5}}
	for _, c := range centers {
		for i := 0; i < 4; i++ {
			data = append(data, vector.Embedding{c[0] + float32(i)*0.01, c[1] + float32(i)*0.01})
		}
	}
	return data
}

func newTestTier(t *testing.T, recentThreshold time.Duration) *hybrid.Tier {
	t.Helper()
	seed := uint64(7)
	cfg := hybrid.Config{
		RecentThreshold:    recentThreshold,
		HNSW:               hnsw.Config{M: 4, M0: 8, EfConstruction: 50, Seed: &seed},
		IVF:                ivf.Config{NClusters: 3, NProbe: 2, TrainSize: 12, MaxIterations: 25, Seed: &seed},
		MigrationBatchSize: 2,
	}
	tier := hybrid.New(cfg, nil)
	_, err := tier.Initialize(trainingData())
	require.NoError(t, err)
	return tier
}

func TestHybridSearcher_Search_ReturnsMergedResults(t *testing.T) {
	tier := newTestTier(t, 7*24*time.Hour)
	now := time.Now()

	near := vector.NewID()
	far := vector.NewID()
	require.NoError(t, tier.Insert(near, vector.Embedding{0, 0}, now))
	require.NoError(t, tier.Insert(far, vector.Embedding{5, 5}, now.Add(-30*24*time.Hour)))

	s := New(tier, DefaultConfig())
	outcome, err := s.Search(context.Background(), vector.Embedding{0, 0}, 2)
	require.NoError(t, err)
	assert.False(t, outcome.Cached)
	assert.False(t, outcome.TimedOut)
	require.NotEmpty(t, outcome.Results)
	assert.Equal(t, near, outcome.Results[0].ID)
}

func TestHybridSearcher_Search_SecondCallHitsCache(t *testing.T) {
	tier := newTestTier(t, 7*24*time.Hour)
	require.NoError(t, tier.Insert(vector.NewID(), vector.Embedding{0, 0}, time.Now()))

	cfg := DefaultConfig()
	cfg.CacheCapacity = 8
	s := New(tier, cfg)

	query := vector.Embedding{0, 0}
	first, err := s.Search(context.Background(), query, 1)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := s.Search(context.Background(), query, 1)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)

	hits, misses := s.CacheStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestHybridSearcher_Search_UninitializedTierReturnsEmpty(t *testing.T) {
	tier := hybrid.New(hybrid.DefaultConfig(), nil)
	s := New(tier, DefaultConfig())
	outcome, err := s.Search(context.Background(), vector.Embedding{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, outcome.Results)
}

func TestHybridSearcher_Search_SourceWeightsFavorOneSide(t *testing.T) {
	tier := newTestTier(t, 30*time.Minute)
	now := time.Now()

	recentID := vector.NewID()
	historicalID := vector.NewID()
	require.NoError(t, tier.Insert(recentID, vector.Embedding{0.1, 0.1}, now))
	require.NoError(t, tier.Insert(historicalID, vector.Embedding{0.1, 0.1}, now.Add(-time.Hour)))

	time.Sleep(100 * time.Millisecond)
	_, err := tier.MigrateOldVectors(context.Background())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Strategy = Weighted
	cfg.SourceWeights = map[string]float64{SourceRecent: 10, SourceHistorical: 0.01}
	s := New(tier, cfg)

	outcome, err := s.Search(context.Background(), vector.Embedding{0.1, 0.1}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, outcome.Results)
	assert.Equal(t, recentID, outcome.Results[0].ID)
}
