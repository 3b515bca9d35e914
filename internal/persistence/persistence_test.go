package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecthorn/vecthorn/internal/hnsw"
	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/ivf"
	"github.com/vecthorn/vecthorn/internal/persistence"
	"github.com/vecthorn/vecthorn/internal/storage"
	"github.com/vecthorn/vecthorn/internal/vector"
)

func seededHNSW(t *testing.T) *hnsw.Index {
	t.Helper()
	seed := uint64(42)
	ix := hnsw.New(hnsw.Config{M: 4, M0: 8, EfConstruction: 50, Seed: &seed})
	require.NoError(t, ix.Insert(vector.IDFromString("a"), vector.Embedding{1, 0}))
	require.NoError(t, ix.Insert(vector.IDFromString("b"), vector.Embedding{0, 1}))
	require.NoError(t, ix.Insert(vector.IDFromString("c"), vector.Embedding{-1, 0}))
	require.NoError(t, ix.Insert(vector.IDFromString("d"), vector.Embedding{0, -1}))
	return ix
}

func TestHNSWPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	driver, err := storage.NewFSDriver(t.TempDir())
	require.NoError(t, err)

	ix := seededHNSW(t)
	require.NoError(t, persistence.SaveHNSW(ctx, driver, "recent", ix, persistence.DefaultOptions()))

	loaded, err := persistence.LoadHNSW(ctx, driver, "recent")
	require.NoError(t, err)
	assert.Equal(t, ix.NodeCount(), loaded.NodeCount())

	before, err := ix.Search(ctx, vector.Embedding{0.5, 0.5}, 2, 50, nil)
	require.NoError(t, err)
	after, err := loaded.Search(ctx, vector.Embedding{0.5, 0.5}, 2, 50, nil)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.InDelta(t, before[i].Distance, after[i].Distance, 1e-4)
	}
}

func TestHNSWPersistence_CompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	driver, err := storage.NewFSDriver(t.TempDir())
	require.NoError(t, err)

	ix := seededHNSW(t)
	opts := persistence.Options{ChunkSize: 2, Compress: true}
	require.NoError(t, persistence.SaveHNSW(ctx, driver, "recent", ix, opts))

	loaded, err := persistence.LoadHNSW(ctx, driver, "recent")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.NodeCount())
}

func TestHNSWPersistence_IntegrityReport(t *testing.T) {
	ctx := context.Background()
	driver, err := storage.NewFSDriver(t.TempDir())
	require.NoError(t, err)

	ix := seededHNSW(t)
	require.NoError(t, persistence.SaveHNSW(ctx, driver, "recent", ix, persistence.Options{ChunkSize: 1}))

	report, err := persistence.CheckHNSWIntegrity(ctx, driver, "recent")
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, 4, report.ExpectedChunks)

	require.NoError(t, driver.Delete(ctx, "recent/nodes/chunk_0002.cbor"))
	report, err = persistence.CheckHNSWIntegrity(ctx, driver, "recent")
	require.NoError(t, err)
	assert.False(t, report.OK)
	assert.Len(t, report.MissingChunks, 1)
}

func TestHNSWPersistence_IncrementalSave(t *testing.T) {
	ctx := context.Background()
	driver, err := storage.NewFSDriver(t.TempDir())
	require.NoError(t, err)

	ix := seededHNSW(t)
	opts := persistence.Options{ChunkSize: 2}
	require.NoError(t, persistence.SaveHNSW(ctx, driver, "recent", ix, opts))

	newID := vector.IDFromString("e")
	require.NoError(t, ix.Insert(newID, vector.Embedding{2, 2}))
	require.NoError(t, ix.MarkDeleted(vector.IDFromString("a")))

	require.NoError(t, persistence.SaveHNSWIncremental(ctx, driver, "recent", ix, []vector.ID{newID, vector.IDFromString("a")}, opts))

	loaded, err := persistence.LoadHNSW(ctx, driver, "recent")
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.NodeCount())
	node, ok := loaded.GetNode(vector.IDFromString("a"))
	require.True(t, ok)
	assert.True(t, node.Deleted)
}

func trainedIVF(t *testing.T) *ivf.Index {
	t.Helper()
	seed := uint64(7)
	ix := ivf.New(ivf.Config{NClusters: 3, NProbe: 2, TrainSize: 9, MaxIterations: 25, Seed: &seed})
	data := []vector.Embedding{
		{0, 0}, {0.1, 0.1}, {0.2, -0.1},
		{5, 5}, {5.1, 4.9}, {4.9, 5.1},
		{-5, -5}, {-4.9, -5.1}, {-5.1, -4.9},
	}
	_, err := ix.Train(data)
	require.NoError(t, err)
	for i, v := range data {
		require.NoError(t, ix.Insert(vector.IDFromString(string(rune('a'+i))), v))
	}
	return ix
}

func TestIVFPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	driver, err := storage.NewFSDriver(t.TempDir())
	require.NoError(t, err)

	ix := trainedIVF(t)
	require.NoError(t, persistence.SaveIVF(ctx, driver, "historical", ix, persistence.DefaultOptions()))

	loaded, err := persistence.LoadIVF(ctx, driver, "historical")
	require.NoError(t, err)
	assert.Equal(t, ix.TotalVectors(), loaded.TotalVectors())
	assert.Equal(t, len(ix.Centroids()), len(loaded.Centroids()))

	before, err := ix.Search(ctx, vector.Embedding{0, 0}, 3, nil)
	require.NoError(t, err)
	after, err := loaded.Search(ctx, vector.Embedding{0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
}

func TestHybridPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	driver, err := storage.NewFSDriver(t.TempDir())
	require.NoError(t, err)

	seed := uint64(42)
	cfg := hybrid.Config{
		RecentThreshold:    7 * 24 * time.Hour,
		HNSW:               hnsw.Config{M: 4, M0: 8, EfConstruction: 50, Seed: &seed},
		IVF:                ivf.Config{NClusters: 3, NProbe: 2, TrainSize: 9, MaxIterations: 25, Seed: &seed},
		MigrationBatchSize: 10,
	}
	tier := hybrid.New(cfg, nil)
	trainingData := []vector.Embedding{
		{0, 0}, {0.1, 0.1}, {0.2, -0.1},
		{5, 5}, {5.1, 4.9}, {4.9, 5.1},
		{-5, -5}, {-4.9, -5.1}, {-5.1, -4.9},
	}
	_, err = tier.Initialize(trainingData)
	require.NoError(t, err)

	now := time.Now()
	recentID := vector.NewID()
	require.NoError(t, tier.Insert(recentID, vector.Embedding{0.05, 0.05}, now))
	historicalID := vector.NewID()
	require.NoError(t, tier.Insert(historicalID, vector.Embedding{5, 5}, now.Add(-30*24*time.Hour)))

	require.NoError(t, persistence.SaveHybrid(ctx, driver, "index", tier, persistence.DefaultOptions()))

	loaded, err := persistence.LoadHybrid(ctx, driver, "index", nil)
	require.NoError(t, err)

	assert.Equal(t, tier.RecentCount(), loaded.RecentCount())
	assert.Equal(t, tier.HistoricalCount(), loaded.HistoricalCount())
	assert.True(t, loaded.IsInRecent(recentID))
	assert.True(t, loaded.IsInHistorical(historicalID))

	before, err := tier.Search(ctx, vector.Embedding{0, 0}, 4, hybrid.DefaultSearchConfig())
	require.NoError(t, err)
	after, err := loaded.Search(ctx, vector.Embedding{0, 0}, 4, hybrid.DefaultSearchConfig())
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.InDelta(t, before[i].Distance, after[i].Distance, 1e-4)
	}
}
