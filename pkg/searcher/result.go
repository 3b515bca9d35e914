package searcher

import "github.com/vecthorn/vecthorn/internal/vector"

// ScoredResult is one ranked hit after conversion from a raw distance,
// tagged with the tier it came from so per-source weighting and merge
// strategies can tell them apart.
type ScoredResult struct {
	ID        vector.ID
	Distance  float32
	Score     float64
	SourceTag string
}

const (
	SourceRecent     = "recent"
	SourceHistorical = "historical"
)
