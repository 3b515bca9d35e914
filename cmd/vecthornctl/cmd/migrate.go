package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newMigrateCmd creates the migrate command, which sweeps the recent
// (HNSW) tier for vectors whose age has crossed the configured
// recent-threshold and moves them into the historical (IVF) tier.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Sweep aged-out vectors from the recent tier into the historical tier",
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

			result, err := tier.MigrateOldVectors(ctx)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			if err := saveTier(ctx, cfg, driver, tier); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %d vectors in %s\n", result.VectorsMigrated, result.Duration)
			return err
		},
	}

	return cmd
}
