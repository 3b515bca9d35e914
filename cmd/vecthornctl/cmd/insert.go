package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vecthorn/vecthorn/internal/vector"
)

// newInsertCmd creates the insert command.
func newInsertCmd() *cobra.Command {
	var id string
	var vecJSON string
	var metaJSON string
	var tsRFC3339 string

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert one vector into the index",
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

			var rawVec []float32
			if err := json.Unmarshal([]byte(vecJSON), &rawVec); err != nil {
				return fmt.Errorf("parse --vector: %w", err)
			}
			emb := vector.Embedding(rawVec)

			vecID := vector.IDFromString(id)
			if id == "" {
				vecID = vector.NewID()
			}

			ts := time.Now()
			if tsRFC3339 != "" {
				ts, err = time.Parse(time.RFC3339, tsRFC3339)
				if err != nil {
					return fmt.Errorf("parse --ts: %w", err)
				}
			}

			if err := tier.Insert(vecID, emb, ts); err != nil {
				return fmt.Errorf("insert: %w", err)
			}

			if metaJSON != "" {
				var meta vector.Metadata
				if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
					return fmt.Errorf("parse --metadata: %w", err)
				}

				table, err := loadMetadataTable(cfg)
				if err != nil {
					return fmt.Errorf("load metadata: %w", err)
				}
				table[vecID] = meta
				if err := saveMetadataTable(cfg, table); err != nil {
					return fmt.Errorf("save metadata: %w", err)
				}
			}

			if err := saveTier(ctx, cfg, driver, tier); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "inserted %s (recent=%v)\n", vecID.String(), tier.IsInRecent(vecID))
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Vector id; a random id is minted if omitted")
	cmd.Flags().StringVar(&vecJSON, "vector", "", "Embedding as a JSON float array, e.g. [1,0,0.5]")
	cmd.Flags().StringVar(&metaJSON, "metadata", "", "Metadata as a JSON object, e.g. {\"tag\":\"x\"}")
	cmd.Flags().StringVar(&tsRFC3339, "ts", "", "Insertion timestamp (RFC3339); defaults to now")
	_ = cmd.MarkFlagRequired("vector")

	return cmd
}
