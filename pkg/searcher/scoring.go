package searcher

import "math"

// Scorer computes a relevance score from a raw distance and the hit's
// optional metadata. The score has no lower bound: CosineScorer goes
// negative for any distance above 1. Lower distance should always
// yield a higher score for any well-behaved Scorer.
type Scorer interface {
	Score(distance float32, metadata map[string]interface{}) float64
}

// CosineScorer is the baseline: score = 1 - distance.
type CosineScorer struct{}

func (CosineScorer) Score(distance float32, _ map[string]interface{}) float64 {
	return 1 - float64(distance)
}

// AgeFunc extracts a result's age from its metadata; TimeDecayScorer
// treats a nil AgeFunc as age zero and returns the baseline score.
type AgeFunc func(metadata map[string]interface{}) float64

// TimeDecayScorer applies exponential decay by age to a baseline
// score: baseline * 0.5^(age/half_life). Age and HalfLife must use the
// same unit (e.g. both in hours); Age is typically sourced from a
// metadata field such as "inserted_at".
type TimeDecayScorer struct {
	Base     Scorer
	Age      AgeFunc
	HalfLife float64
}

func (s TimeDecayScorer) Score(distance float32, metadata map[string]interface{}) float64 {
	base := s.Base.Score(distance, metadata)
	if s.Age == nil || s.HalfLife <= 0 {
		return base
	}
	age := s.Age(metadata)
	return base * math.Pow(0.5, age/s.HalfLife)
}

// ViewsFunc extracts a result's view count from its metadata.
type ViewsFunc func(metadata map[string]interface{}) int

// PopularityScorer boosts a baseline score by view count:
// baseline * (1 + ln(1+views)/10).
type PopularityScorer struct {
	Base  Scorer
	Views ViewsFunc
}

func (s PopularityScorer) Score(distance float32, metadata map[string]interface{}) float64 {
	base := s.Base.Score(distance, metadata)
	views := 0
	if s.Views != nil {
		views = s.Views(metadata)
	}
	return base * (1 + math.Log1p(float64(views))/10)
}

// WeightedScorer combines several scorers as a weighted average. A
// missing entry in Weights defaults that sub-scorer's weight to 1.
type WeightedScorer struct {
	Scorers []Scorer
	Weights []float64
}

func (s WeightedScorer) Score(distance float32, metadata map[string]interface{}) float64 {
	if len(s.Scorers) == 0 {
		return 0
	}
	var sum, weightSum float64
	for i, sc := range s.Scorers {
		w := 1.0
		if i < len(s.Weights) {
			w = s.Weights[i]
		}
		sum += sc.Score(distance, metadata) * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}
