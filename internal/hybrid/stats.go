package hybrid

import "time"

// AgeDistribution buckets live vectors by how long ago they were
// inserted, irrespective of which tier currently holds them.
type AgeDistribution struct {
	UnderHour int
	UnderDay  int
	UnderWeek int
	OverWeek  int
}

// Stats aggregates cross-tier counts, a rough memory estimate, and the
// age distribution of every recorded vector.
type Stats struct {
	RecentCount     int
	HistoricalCount int
	TotalCount      int
	EstimatedBytes  int64
	AgeDistribution AgeDistribution
}

// bytesPerDimension approximates the per-component storage cost of an
// f32 embedding; used only for the coarse memory estimate below.
const bytesPerDimension = 4

// Statistics computes a snapshot of the tier's aggregate state. The
// memory estimate is necessarily approximate: it counts resident
// embeddings (inline or cached) and a fixed per-node overhead for
// graph edges, not actual heap usage.
func (t *Tier) Statistics() Stats {
	recent := t.RecentCount()
	historical := t.HistoricalCount()

	var estBytes int64
	dim, _ := t.recent.Dimension()
	if dim == 0 {
		dim, _ = t.historical.Dimension()
	}
	perVector := int64(dim * bytesPerDimension)
	estBytes += perVector * int64(t.recent.NodeCount())
	estBytes += perVector * int64(t.historical.TotalVectors())

	now := time.Now()
	var ages AgeDistribution
	t.stateMu.RLock()
	for _, ts := range t.timestamps {
		age := now.Sub(ts)
		switch {
		case age < time.Hour:
			ages.UnderHour++
		case age < 24*time.Hour:
			ages.UnderDay++
		case age < 7*24*time.Hour:
			ages.UnderWeek++
		default:
			ages.OverWeek++
		}
	}
	total := len(t.timestamps)
	t.stateMu.RUnlock()

	return Stats{
		RecentCount:     recent,
		HistoricalCount: historical,
		TotalCount:      total,
		EstimatedBytes:  estBytes,
		AgeDistribution: ages,
	}
}
