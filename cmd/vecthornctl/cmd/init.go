package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// newInitCmd creates the init command, which trains the historical
// (IVF) side on a seed dataset and writes a fresh empty snapshot.
// Training never admits user data (§4.7): the IVF inverted lists built
// during training are discarded before any insert is accepted.
func newInitCmd() *cobra.Command {
	var trainingDataPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Train the index and write an empty snapshot",
		Long: `init trains the IVF side's centroids on a seed dataset of
embeddings and persists a fresh, empty hybrid index to --data-dir.
Run this once before any insert or search.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			data, err := loadTrainingData(trainingDataPath)
			if err != nil {
				return err
			}

			hCfg := hybrid.Config{
				HNSW:               cfg.HNSW.ToIndex(),
				IVF:                cfg.IVF.ToIndex(),
				MigrationBatchSize: cfg.Hybrid.MigrationBatchSize,
				AutoMigrate:        cfg.Hybrid.AutoMigrate,
			}
			hCfg.RecentThreshold, err = cfg.Hybrid.ParsedRecentThreshold()
			if err != nil {
				return err
			}

			tier := hybrid.New(hCfg, nil)
			result, err := tier.Initialize(data)
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}

			driver, err := openDriver(cfg)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			if err := saveTier(cmd.Context(), cfg, driver, tier); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"trained %d clusters in %d iterations (converged=%v), initial_error=%.4f final_error=%.4f\n",
				cfg.IVF.NClusters, result.Iterations, result.Converged, result.InitialError, result.FinalError)
			return err
		},
	}

	cmd.Flags().StringVar(&trainingDataPath, "training-data", "", "Path to a JSON file of training vectors ([[f32,...], ...]); required")
	_ = cmd.MarkFlagRequired("training-data")

	return cmd
}

// loadTrainingData reads a JSON array of float arrays from path.
func loadTrainingData(path string) ([]vector.Embedding, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}

	var rows [][]float32
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parse training data: %w", err)
	}

	embeddings := make([]vector.Embedding, len(rows))
	for i, r := range rows {
		embeddings[i] = vector.Embedding(r)
	}
	return embeddings, nil
}
