package core

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	magnitude := Magnitude(v)
	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}

	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// Magnitude returns the Euclidean length of v.
func Magnitude(v []float32) float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return float32(math.Sqrt(sum))
}

// CosineSimilarity returns the cosine of the angle between a and b.
// A zero-magnitude operand scores 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

// Ranked is a scored chunk paired with its insertion position.
type Ranked struct {
	ScoredChunk
	Order uint64
}

// TopK sorts candidates by descending score, breaking ties by insertion order,
// and returns at most k of them.
func TopK(candidates []Ranked, k int) RetrievalResult {
	slices.SortStableFunc(candidates, func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Order, b.Order)
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	result := make(RetrievalResult, len(candidates))
	for i, c := range candidates {
		result[i] = c.ScoredChunk
	}
	return result
}
