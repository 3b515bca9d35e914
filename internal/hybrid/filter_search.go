package hybrid

import (
	"context"

	"github.com/vecthorn/vecthorn/internal/metadatafilter"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// oversampleFactor is how many extra candidates SearchWithFilter pulls
// from the inner search to survive the post-filter pass while still
// returning k results when enough live candidates satisfy the filter.
const oversampleFactor = 3

// SearchWithFilter behaves exactly like Search when filter is nil.
// Otherwise it oversamples 3*k candidates from the inner fused search,
// drops any whose id is absent from metadata or whose metadata fails
// filter, and truncates to k. Because the inner search already returns
// results in ascending distance order, dropping non-matching
// candidates preserves the relative ranking of the survivors.
func (t *Tier) SearchWithFilter(ctx context.Context, query vector.Embedding, k int, filter *metadatafilter.Filter, metadata MetadataLookup, cfg SearchConfig) ([]SearchResult, error) {
	if filter == nil {
		return t.Search(ctx, query, k, cfg)
	}

	oversampled := cfg
	if oversampled.RecentK == 0 {
		oversampled.RecentK = k * oversampleFactor
	} else {
		oversampled.RecentK *= oversampleFactor
	}
	if oversampled.HistoricalK == 0 {
		oversampled.HistoricalK = k * oversampleFactor
	} else {
		oversampled.HistoricalK *= oversampleFactor
	}

	candidates, err := t.Search(ctx, query, k*oversampleFactor, oversampled)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, k)
	for _, c := range candidates {
		if len(results) >= k {
			break
		}
		meta, ok := metadata.Lookup(c.ID)
		if !ok {
			continue
		}
		if !filter.Matches(meta) {
			continue
		}
		results = append(results, c)
	}
	return results, nil
}
