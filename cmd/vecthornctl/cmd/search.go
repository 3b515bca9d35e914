package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/metadatafilter"
	"github.com/vecthorn/vecthorn/internal/vector"
	"github.com/vecthorn/vecthorn/pkg/searcher"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var vecJSON string
	var k int
	var ef int
	var nProbe int
	var filterJSON string
	var recentOnly bool
	var historicalOnly bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the index for the nearest neighbors of a query vector",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			tier, _, err := openTier(ctx, cfg)
			if err != nil {
				return err
			}

			var rawVec []float32
			if err := json.Unmarshal([]byte(vecJSON), &rawVec); err != nil {
				return fmt.Errorf("parse --query: %w", err)
			}
			query := vector.Embedding(rawVec)

			table, err := loadMetadataTable(cfg)
			if err != nil {
				return fmt.Errorf("load metadata: %w", err)
			}

			fanoutCfg := searcher.DefaultFanoutConfig()
			fanoutCfg.SearchCfg = hybrid.DefaultSearchConfig()
			if ef > 0 {
				fanoutCfg.SearchCfg.EF = ef
			}
			if nProbe > 0 {
				fanoutCfg.SearchCfg.NProbe = nProbe
			}
			if recentOnly {
				fanoutCfg.SearchCfg.SearchHistorical = false
			}
			if historicalOnly {
				fanoutCfg.SearchCfg.SearchRecent = false
			}

			hs := searcher.New(tier, searcher.Config{
				Fanout:   fanoutCfg,
				Strategy: searcher.TakeBest,
				Metadata: table,
			})

			// Oversample when a filter is given so enough candidates
			// survive the post-filter pass to still fill k, the same
			// tradeoff hybrid.Tier.SearchWithFilter makes internally.
			fetchK := k
			var filter *metadatafilter.Filter
			if filterJSON != "" {
				filter, err = metadatafilter.ParseFilter([]byte(filterJSON))
				if err != nil {
					return fmt.Errorf("parse --filter: %w", err)
				}
				fetchK = k * 3
			}

			outcome, err := hs.Search(ctx, query, fetchK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			results := outcome.Results
			if filter != nil {
				filtered := make([]searcher.ScoredResult, 0, k)
				for _, r := range results {
					if len(filtered) >= k {
						break
					}
					meta, ok := table.Lookup(r.ID)
					if !ok || !filter.Matches(meta) {
						continue
					}
					filtered = append(filtered, r)
				}
				results = filtered
			} else if len(results) > k {
				results = results[:k]
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				if _, err := fmt.Fprintf(out, "%s\tdist=%.6f\tscore=%.6f\ttier=%s\n", r.ID.String(), r.Distance, r.Score, r.SourceTag); err != nil {
					return err
				}
			}
			if outcome.TimedOut {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: search timed out before all tiers finished")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vecJSON, "query", "", "Query embedding as a JSON float array")
	cmd.Flags().IntVar(&k, "k", 10, "Number of nearest neighbors to return")
	cmd.Flags().IntVar(&ef, "ef", 0, "Override HNSW search breadth (0 keeps the config default)")
	cmd.Flags().IntVar(&nProbe, "nprobe", 0, "Override IVF probe count (0 keeps the config default)")
	cmd.Flags().StringVar(&filterJSON, "filter", "", "Metadata filter as JSON, e.g. {\"kind\":\"alpha\"}")
	cmd.Flags().BoolVar(&recentOnly, "recent-only", false, "Search only the recent (HNSW) tier")
	cmd.Flags().BoolVar(&historicalOnly, "historical-only", false, "Search only the historical (IVF) tier")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}
