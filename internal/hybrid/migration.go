package hybrid

import (
	"context"
	"fmt"
	"time"

	"github.com/vecthorn/vecthorn/internal/async"
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// MigrationResult reports the outcome of one migration sweep.
type MigrationResult struct {
	VectorsMigrated int
	Duration        time.Duration
}

// MigrateOldVectors sweeps every id still in the recent tier whose age
// has crossed RecentThreshold, moving each into the historical tier in
// MigrationBatchSize batches. A per-item failure is skipped and left
// for the next sweep rather than aborting the batch.
func (t *Tier) MigrateOldVectors(ctx context.Context) (MigrationResult, error) {
	start := time.Now()

	t.stateMu.RLock()
	var due []vector.ID
	for id, recent := range t.location {
		if !recent {
			continue
		}
		if !t.isRecent(start, t.timestamps[id]) {
			due = append(due, id)
		}
	}
	t.stateMu.RUnlock()

	batch := t.config.MigrationBatchSize
	if batch <= 0 {
		batch = len(due)
	}
	if batch == 0 {
		batch = 1
	}

	migrated := 0
	for i := 0; i < len(due); i += batch {
		end := i + batch
		if end > len(due) {
			end = len(due)
		}
		for _, id := range due[i:end] {
			if err := t.migrateOne(ctx, id); err != nil {
				continue
			}
			migrated++
		}
	}

	return MigrationResult{VectorsMigrated: migrated, Duration: time.Since(start)}, nil
}

// migrateOne moves a single vector out of HNSW and into IVF: read the
// vector (resolving through the chunk loader if it is lazy), insert
// into the historical tier, soft-delete the HNSW node, and flip its
// location and counters in the same step. Soft-deleting the migrated
// node (rather than leaving it untouched) is this implementation's
// resolution of the §9 open question: it keeps active HNSW node count
// equal to recent_count instead of letting the two drift apart.
func (t *Tier) migrateOne(ctx context.Context, id vector.ID) error {
	node, ok := t.recent.GetNode(id)
	if !ok {
		return errs.NotFoundErr("hybrid.migrate")
	}

	emb := node.Embedding
	var err error
	if emb == nil {
		if t.resolver == nil || node.ChunkRef == nil {
			return errs.ChunkLoadErr("hybrid.migrate", fmt.Errorf("node %s has no inline vector or resolver", id))
		}
		emb, err = t.resolver.Resolve(ctx, *node.ChunkRef)
		if err != nil {
			return err
		}
	}

	if node.ChunkRef != nil {
		err = t.historical.InsertWithChunk(id, emb, *node.ChunkRef)
	} else {
		err = t.historical.Insert(id, emb)
	}
	if err != nil {
		return err
	}

	if err := t.recent.MarkDeleted(id); err != nil {
		return err
	}

	t.stateMu.Lock()
	t.location[id] = false
	t.stateMu.Unlock()

	t.countersMu.Lock()
	t.recentCount--
	t.historicalCount++
	t.countersMu.Unlock()

	return nil
}

// StartAutoMigration runs MigrateOldVectors on a fixed interval in a
// background goroutine until StopAutoMigration is called. It is
// independent of the auto_migrate-on-search behavior in Search; both
// may be used, though running both is redundant.
func (t *Tier) StartAutoMigration(ctx context.Context, interval time.Duration) {
	t.schedMu.Lock()
	defer t.schedMu.Unlock()
	if t.scheduler != nil && t.scheduler.IsRunning() {
		return
	}
	t.scheduler = async.NewScheduler(interval, func(ctx context.Context, p *async.SweepProgress) error {
		res, err := t.MigrateOldVectors(ctx)
		if err != nil {
			return err
		}
		p.RecordSweep(res.VectorsMigrated)
		return nil
	})
	t.scheduler.Start(ctx)
}

// StopAutoMigration stops the background migration loop started by
// StartAutoMigration, waiting for the in-flight sweep to reach its
// next batch boundary.
func (t *Tier) StopAutoMigration() {
	t.schedMu.Lock()
	s := t.scheduler
	t.schedMu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// MigrationProgress returns a snapshot of the background scheduler's
// cumulative sweep outcomes, or the zero value if auto-migration was
// never started.
func (t *Tier) MigrationProgress() async.SweepSnapshot {
	t.schedMu.Lock()
	s := t.scheduler
	t.schedMu.Unlock()
	if s == nil {
		return async.SweepSnapshot{}
	}
	return s.Progress().Snapshot()
}
