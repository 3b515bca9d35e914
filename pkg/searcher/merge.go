package searcher

import "sort"

// MergeStrategy selects how Merge combines same-id hits across
// multiple scored result lists.
type MergeStrategy int

const (
	// TakeBest keeps the highest-scoring occurrence of each id.
	TakeBest MergeStrategy = iota
	// Average replaces each id's score and distance with their
	// unweighted mean across every list it appeared in.
	Average
	// Weighted replaces each id's score and distance with their mean
	// weighted by each occurrence's per-source weight.
	Weighted
)

type mergeAcc struct {
	best        ScoredResult
	hasBest     bool
	scoreSum    float64
	distSum     float64
	weightedSc  float64
	weightedDs  float64
	weightSum   float64
	occurrences int
}

// Merge combines N scored-result lists, deduplicated by id, per §4.9.
// Ties on score break by id's lexical order (vector.ID.String()).
// weights maps a SourceTag to its contribution weight for Weighted;
// a tag absent from weights defaults to 1.
func Merge(strategy MergeStrategy, weights map[string]float64, lists ...[]ScoredResult) []ScoredResult {
	accs := make(map[string]*mergeAcc)
	var order []string

	for _, list := range lists {
		for _, r := range list {
			key := r.ID.String()
			a, ok := accs[key]
			if !ok {
				a = &mergeAcc{}
				accs[key] = a
				order = append(order, key)
			}
			w := 1.0
			if weights != nil {
				if wv, ok := weights[r.SourceTag]; ok {
					w = wv
				}
			}
			a.occurrences++
			a.scoreSum += r.Score
			a.distSum += float64(r.Distance)
			a.weightedSc += r.Score * w
			a.weightedDs += float64(r.Distance) * w
			a.weightSum += w
			if !a.hasBest || r.Score > a.best.Score {
				a.best = r
				a.hasBest = true
			}
		}
	}

	out := make([]ScoredResult, 0, len(order))
	for _, key := range order {
		a := accs[key]
		switch strategy {
		case Average:
			n := float64(a.occurrences)
			out = append(out, ScoredResult{
				ID:        a.best.ID,
				Distance:  float32(a.distSum / n),
				Score:     a.scoreSum / n,
				SourceTag: a.best.SourceTag,
			})
		case Weighted:
			if a.weightSum == 0 {
				out = append(out, a.best)
				break
			}
			out = append(out, ScoredResult{
				ID:        a.best.ID,
				Distance:  float32(a.weightedDs / a.weightSum),
				Score:     a.weightedSc / a.weightSum,
				SourceTag: a.best.SourceTag,
			})
		default: // TakeBest
			out = append(out, a.best)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID.Less(out[j].ID)
	})
	return out
}
