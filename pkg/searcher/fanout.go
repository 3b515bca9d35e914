package searcher

import (
	"context"
	"time"

	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// DefaultTimeout bounds a fan-out search when FanoutConfig leaves
// Timeout unset.
const DefaultTimeout = 500 * time.Millisecond

// FanoutConfig tunes one parallel fan-out call.
type FanoutConfig struct {
	Timeout   time.Duration
	SearchCfg hybrid.SearchConfig
}

func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{Timeout: DefaultTimeout, SearchCfg: hybrid.DefaultSearchConfig()}
}

// FanoutResult is the raw per-tier outcome of ParallelSearch, before
// scoring or merging.
type FanoutResult struct {
	Recent     []hybrid.SearchResult
	Historical []hybrid.SearchResult
	TimedOut   bool
}

type sideResult struct {
	hits []hybrid.SearchResult
	err  error
}

// ParallelSearch fans the recent and historical halves of a query out
// to their own goroutines under a wall-clock deadline, per §4.9 and
// §5's cancellation rule. Each side runs a full hybrid.Tier.Search
// restricted to its own half so it still benefits from the tier's
// internal locking and resolver plumbing. On expiry, ParallelSearch
// returns immediately with whatever side(s) already completed and
// TimedOut=true; the still-running side's goroutine is left alone —
// it is never forcibly cancelled, its eventual send on the buffered
// result channel is simply never read.
func ParallelSearch(ctx context.Context, tier *hybrid.Tier, query vector.Embedding, k int, cfg FanoutConfig) (FanoutResult, error) {
	if !tier.IsInitialized() {
		return FanoutResult{}, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	recentCh := make(chan sideResult, 1)
	historicalCh := make(chan sideResult, 1)

	go func() {
		c := cfg.SearchCfg
		c.SearchRecent, c.SearchHistorical = true, false
		hits, err := tier.Search(deadline, query, k, c)
		recentCh <- sideResult{hits: hits, err: err}
	}()
	go func() {
		c := cfg.SearchCfg
		c.SearchRecent, c.SearchHistorical = false, true
		hits, err := tier.Search(deadline, query, k, c)
		historicalCh <- sideResult{hits: hits, err: err}
	}()

	var result FanoutResult
	var recentErr, historicalErr error
	gotRecent, gotHistorical := false, false

	for !gotRecent || !gotHistorical {
		select {
		case r := <-recentCh:
			result.Recent, recentErr = r.hits, r.err
			gotRecent = true
		case r := <-historicalCh:
			result.Historical, historicalErr = r.hits, r.err
			gotHistorical = true
		case <-deadline.Done():
			result.TimedOut = true
			return result, nil
		}
	}

	if recentErr != nil && historicalErr != nil {
		return result, recentErr
	}
	return result, nil
}
