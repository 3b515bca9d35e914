package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the stats command.
func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print cross-tier counts, a memory estimate, and the age distribution",
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

			stats := tier.Statistics()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			out := cmd.OutOrStdout()
			_, err = fmt.Fprintf(out, "recent:     %d\nhistorical: %d\ntotal:      %d\nest. bytes: %d\nage <1h:    %d\nage <1d:    %d\nage <1w:    %d\nage >=1w:   %d\n",
				stats.RecentCount, stats.HistoricalCount, stats.TotalCount, stats.EstimatedBytes,
				stats.AgeDistribution.UnderHour, stats.AgeDistribution.UnderDay, stats.AgeDistribution.UnderWeek, stats.AgeDistribution.OverWeek)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}
