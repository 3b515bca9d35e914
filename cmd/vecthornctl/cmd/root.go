// Package cmd provides the CLI commands for vecthornctl.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vecthorn/vecthorn/internal/config"
	"github.com/vecthorn/vecthorn/internal/logging"
	"github.com/vecthorn/vecthorn/pkg/version"
)

var (
	dataDir        string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the vecthornctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vecthornctl",
		Short: "Operate a tiered HNSW/IVF vector index from the command line",
		Long: `vecthornctl drives a hybrid hot/cold vector index: a graph-based
(HNSW) index for recently inserted vectors and a partition-based (IVF)
index for aged ones, fused behind one read/write surface.

Run 'vecthornctl init' in a fresh data directory to train the index,
then 'vecthornctl insert' and 'vecthornctl search' against it.`,
		Version:      version.Version,
		SilenceUsage: true,
	}

	cmd.SetVersionTemplate("vecthornctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".vecthorn", "Directory holding the index snapshot and config")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newInsertCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newVacuumCmd())

	return cmd
}

// startLogging wires slog to the configured log file before any
// subcommand body runs.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the vecthornctl config for the current data
// directory, falling back to defaults if no config file is present.
func loadConfig() (*config.Config, error) {
	return config.Load(dataDir)
}
