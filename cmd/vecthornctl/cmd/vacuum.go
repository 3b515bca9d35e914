package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVacuumCmd creates the vacuum command, which reclaims storage held
// by soft-deleted entries in both tiers.
func newVacuumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim storage held by soft-deleted vectors in both tiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			tier, driver, err := openTier(ctx, cfg)
			if err != nil {
				return err
			}

			before := tier.ActiveCount()
			tier.Vacuum()
			after := tier.ActiveCount()

			if err := saveTier(ctx, cfg, driver, tier); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "vacuum complete: %d -> %d live vectors\n", before, after)
			return err
		},
	}

	return cmd
}
