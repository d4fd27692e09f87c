package voiceprint

import (
	"fmt"
	"math"
)

// DefaultThreshold is the confidence at or above which a voice is accepted.
const DefaultThreshold = 0.85

// normEpsilon treats vectors with a smaller L2 norm as zero.
const normEpsilon = 1e-12

// Cosine returns the cosine similarity of a and b clamped to [0, 1].
// Vectors of different length yield ErrSchemaMismatch; if either vector is
// (numerically) zero the similarity is 0.
func Cosine(a, b FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d dimensions", ErrSchemaMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	na, nb = math.Sqrt(na), math.Sqrt(nb)
	if na < normEpsilon || nb < normEpsilon {
		return 0, nil
	}
	sim := dot / (na * nb)
	switch {
	case math.IsNaN(sim) || sim < 0:
		return 0, nil
	case sim > 1:
		return 1, nil
	}
	return sim, nil
}

// Engine makes accept/reject decisions from feature vectors.
type Engine struct {
	// Threshold is the minimum confidence for acceptance.
	Threshold float64
}

// NewEngine returns an Engine with the given threshold. A threshold outside
// (0, 1] falls back to DefaultThreshold.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Engine{Threshold: threshold}
}

// Compare returns the confidence that sample comes from the speaker of
// enrolled.
func (e *Engine) Compare(enrolled, sample FeatureVector) (float64, error) {
	return Cosine(enrolled, sample)
}

// Decide reports whether confidence meets the threshold.
func (e *Engine) Decide(confidence float64) bool {
	return confidence >= e.Threshold
}

// Verify compares and decides in one step.
func (e *Engine) Verify(enrolled, sample FeatureVector) (accepted bool, confidence float64, err error) {
	confidence, err = e.Compare(enrolled, sample)
	if err != nil {
		return false, 0, err
	}
	return e.Decide(confidence), confidence, nil
}
