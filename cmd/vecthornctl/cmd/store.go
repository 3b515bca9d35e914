package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vecthorn/vecthorn/internal/config"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/persistence"
	"github.com/vecthorn/vecthorn/internal/storage"
)

// resolveUnderDataDir anchors a relative config path to --data-dir, so
// "storage.dir: vecthorn-data" means "<data-dir>/vecthorn-data"
// regardless of the caller's working directory. Absolute paths pass
// through unchanged.
func resolveUnderDataDir(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}

// openDriver builds the storage.Driver the current config selects.
func openDriver(cfg *config.Config) (storage.Driver, error) {
	switch cfg.Storage.Kind {
	case "memory":
		return storage.NewMemDriver(), nil
	default:
		return storage.NewFSDriver(resolveUnderDataDir(cfg.Storage.Dir))
	}
}

// openTier loads a previously-initialized tier from its snapshot.
// Callers should invoke newInitCmd first if this fails with a
// PersistenceMissingComponent error.
func openTier(ctx context.Context, cfg *config.Config) (*hybrid.Tier, storage.Driver, error) {
	driver, err := openDriver(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	tier, err := persistence.LoadHybrid(ctx, driver, cfg.Persistence.Root, nil)
	if err != nil {
		if errs.Of(err, errs.PersistenceMissingComponent) {
			return nil, driver, fmt.Errorf("no index found at %q: run 'vecthornctl init' first", cfg.Persistence.Root)
		}
		return nil, driver, fmt.Errorf("load index: %w", err)
	}
	return tier, driver, nil
}

// saveTier writes the tier's current state back to its snapshot.
func saveTier(ctx context.Context, cfg *config.Config, driver storage.Driver, tier *hybrid.Tier) error {
	opts := cfg.Persistence.ToOptions()
	if err := persistence.SaveHybrid(ctx, driver, cfg.Persistence.Root, tier, opts); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}
