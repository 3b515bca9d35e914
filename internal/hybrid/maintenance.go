package hybrid

import (
	"github.com/vecthorn/vecthorn/internal/errs"
	"github.com/vecthorn/vecthorn/internal/vector"
)

// Delete soft-deletes id, routing to whichever tier currently owns it.
func (t *Tier) Delete(id vector.ID) error {
	t.stateMu.RLock()
	recent, ok := t.location[id]
	t.stateMu.RUnlock()
	if !ok {
		return errs.NotFoundErr("hybrid.Delete")
	}
	if recent {
		return t.recent.MarkDeleted(id)
	}
	return t.historical.MarkDeleted(id)
}

// BatchDeleteResult reports the per-item outcome of a batch delete.
type BatchDeleteResult struct {
	ID  vector.ID
	Err error
}

// BatchDelete is best-effort: it does not abort on the first failure.
func (t *Tier) BatchDelete(ids []vector.ID) []BatchDeleteResult {
	results := make([]BatchDeleteResult, len(ids))
	for i, id := range ids {
		results[i] = BatchDeleteResult{ID: id, Err: t.Delete(id)}
	}
	return results
}

// Vacuum fans out to both sub-indices, physically reclaiming every
// tombstoned node/entry in each.
func (t *Tier) Vacuum() {
	t.recent.Vacuum()
	t.historical.Vacuum()
}

// ActiveCount sums the non-tombstoned counts across both tiers.
func (t *Tier) ActiveCount() int {
	active := t.recent.ActiveCount()
	for _, list := range t.historical.AllEntries() {
		for _, e := range list {
			if !e.Deleted {
				active++
			}
		}
	}
	return active
}

// DeletionStats reports the tombstoned-but-not-yet-vacuumed count per tier.
type DeletionStats struct {
	RecentTombstones     int
	HistoricalTombstones int
}

// DeletionStats computes how many tombstoned nodes/entries are
// currently resident in each tier, awaiting Vacuum.
func (t *Tier) DeletionStats() DeletionStats {
	stats := DeletionStats{
		RecentTombstones: t.recent.NodeCount() - t.recent.ActiveCount(),
	}
	for _, list := range t.historical.AllEntries() {
		for _, e := range list {
			if e.Deleted {
				stats.HistoricalTombstones++
			}
		}
	}
	return stats
}
