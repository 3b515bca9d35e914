package persistence

import (
	"context"
	"path"
	"time"

	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/hybrid"
	"github.com/vecthorn/vecthorn/internal/storage"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// hybridMetadataWire is the root-level header; the sub-index metadata
// files under recent/ and historical/ carry their own headers.
type hybridMetadataWire struct {
	Version              int
	RecentThreshold      time.Duration
	MigrationBatchSize   int
	AutoMigrate          bool
	RecentCount          int
	HistoricalCount      int
	TimestampsCompressed bool
}

// timestampEntryWire is one row of the root timestamps.cbor table.
type timestampEntryWire struct {
	ID       string
	Unix     int64
	UnixNano int32
	Recent   bool
}

// SaveHybrid writes the tier's own metadata and timestamp/location map
// at the root, then delegates to SaveHNSW and SaveIVF under the
// recent/ and historical/ subpaths, per §4.8's composition rule.
func SaveHybrid(ctx context.Context, driver storage.Driver, root string, t *hybrid.Tier, opts Options) error {
	const op = "persistence.SaveHybrid"

	cfg := t.Config()
	meta := hybridMetadataWire{
		Version:              CurrentVersion,
		RecentThreshold:      cfg.RecentThreshold,
		MigrationBatchSize:   cfg.MigrationBatchSize,
		AutoMigrate:          cfg.AutoMigrate,
		RecentCount:          t.RecentCount(),
		HistoricalCount:      t.HistoricalCount(),
		TimestampsCompressed: opts.Compress,
	}
	metaBytes, err := encodeCBOR(meta, false)
	if err != nil {
		return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	if err := put(ctx, driver, op, path.Join(root, "metadata.cbor"), metaBytes); err != nil {
		return err
	}

	wire := collectTimestamps(t)
	tsBytes, err := encodeCBOR(wire, opts.Compress)
	if err != nil {
		return errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	if err := put(ctx, driver, op, path.Join(root, "timestamps.cbor"), tsBytes); err != nil {
		return err
	}

	if err := SaveHNSW(ctx, driver, path.Join(root, "recent"), t.Recent(), opts); err != nil {
		return err
	}
	return SaveIVF(ctx, driver, path.Join(root, "historical"), t.Historical(), opts)
}

func collectTimestamps(t *hybrid.Tier) []timestampEntryWire {
	var wire []timestampEntryWire
	for _, id := range idsOf(t) {
		ts, ok := t.Timestamp(id)
		if !ok {
			continue
		}
		recent := t.IsInRecent(id)
		wire = append(wire, timestampEntryWire{
			ID:       id.String(),
			Unix:     ts.Unix(),
			UnixNano: int32(ts.Nanosecond()),
			Recent:   recent,
		})
	}
	return wire
}

// idsOf enumerates every id the tier currently tracks by walking both
// sub-indices, since Tier exposes no direct id iterator of its own.
func idsOf(t *hybrid.Tier) []vector.ID {
	seen := make(map[vector.ID]struct{})
	var ids []vector.ID
	for _, n := range t.Recent().AllNodes() {
		if _, ok := seen[n.ID]; !ok {
			seen[n.ID] = struct{}{}
			ids = append(ids, n.ID)
		}
	}
	for _, list := range t.Historical().AllEntries() {
		for _, e := range list {
			if _, ok := seen[e.ID]; !ok {
				seen[e.ID] = struct{}{}
				ids = append(ids, e.ID)
			}
		}
	}
	return ids
}

// LoadHybrid rehydrates a hybrid tier from a snapshot written by
// SaveHybrid: it restores the sub-indices first, then hands the
// timestamp/location table to hybrid.Restore, which recomputes
// RecentCount/HistoricalCount from the location map so they stay
// consistent with what the sub-indices actually hold.
func LoadHybrid(ctx context.Context, driver storage.Driver, root string, resolver hybrid.Resolver) (*hybrid.Tier, error) {
	const op = "persistence.LoadHybrid"

	metaBytes, err := getRequired(ctx, driver, op, path.Join(root, "metadata.cbor"))
	if err != nil {
		return nil, err
	}
	var meta hybridMetadataWire
	if err := decodeCBOR(metaBytes, false, &meta); err != nil {
		return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}
	if err := checkVersion(op, meta.Version); err != nil {
		return nil, err
	}

	recentIx, err := LoadHNSW(ctx, driver, path.Join(root, "recent"))
	if err != nil {
		return nil, err
	}
	historicalIx, err := LoadIVF(ctx, driver, path.Join(root, "historical"))
	if err != nil {
		return nil, err
	}

	tsBytes, err := getRequired(ctx, driver, op, path.Join(root, "timestamps.cbor"))
	if err != nil {
		return nil, err
	}

	var wire []timestampEntryWire
	if err := decodeCBOR(tsBytes, meta.TimestampsCompressed, &wire); err != nil {
		return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
	}

	cfg := hybrid.Config{
		RecentThreshold:    meta.RecentThreshold,
		HNSW:               recentIx.Config(),
		IVF:                historicalIx.Config(),
		MigrationBatchSize: meta.MigrationBatchSize,
		AutoMigrate:        meta.AutoMigrate,
	}

	timestamps := make(map[vector.ID]time.Time, len(wire))
	locations := make(map[vector.ID]bool, len(wire))
	for _, w := range wire {
		var id vector.ID
		if err := id.UnmarshalText([]byte(w.ID)); err != nil {
			return nil, errs.PersistenceErr(errs.PersistenceSerialization, op, err)
		}
		timestamps[id] = time.Unix(w.Unix, int64(w.UnixNano))
		locations[id] = w.Recent
	}

	return hybrid.Restore(cfg, resolver, recentIx, historicalIx, timestamps, locations), nil
}
