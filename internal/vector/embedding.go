package vector

import (
	"math"

	"github.com/vecthorn/vecthorn/internal/distance"
	"github.com/vecthorn/vecthorn/internal/errs"
)

// Embedding is a non-empty ordered sequence of f32 components. Its
// dimension is intrinsic to the slice length; operations across two
// embeddings of differing dimension are rejected rather than silently
// truncated.
type Embedding []float32

func (e Embedding) Dimension() int { return len(e) }

// Magnitude returns the Euclidean norm of e.
func (e Embedding) Magnitude() float32 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum))
}

// Normalize returns a unit-length copy of e. A zero-magnitude embedding
// is returned unchanged (there is no well-defined direction to normalize to).
func (e Embedding) Normalize() Embedding {
	mag := e.Magnitude()
	if mag == 0 {
		out := make(Embedding, len(e))
		copy(out, e)
		return out
	}
	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = v / mag
	}
	return out
}

// CosineSimilarity returns the cosine similarity between e and other.
func (e Embedding) CosineSimilarity(other Embedding) (float32, error) {
	if len(e) != len(other) {
		return 0, errs.DimensionMismatchErr("Embedding.CosineSimilarity", len(e), len(other))
	}
	return distance.Cosine(e, other), nil
}

// L2Distance returns the Euclidean distance between e and other.
func (e Embedding) L2Distance(other Embedding) (float32, error) {
	if len(e) != len(other) {
		return 0, errs.DimensionMismatchErr("Embedding.L2Distance", len(e), len(other))
	}
	return distance.L2(e, other), nil
}
