package database

import (
	"math"

	"github.com/coder/hnsw"
	"github.com/viterin/vek/vek32"
)

// Normalize returns an L2-normalized copy of v.
// Returns ErrZeroEmbedding when v has no direction to preserve.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, ErrZeroEmbedding
	}
	n := vek32.Norm(v)
	if n == 0 || math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
		return nil, ErrZeroEmbedding
	}
	return vek32.MulNumber(v, 1/n), nil
}

// Dot is the inner product of two equal-length vectors.
// For normalized vectors this is their cosine similarity.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return float64(vek32.Dot(a, b))
}

// CosineSimilarity computes the cosine similarity between two vectors that
// are not necessarily normalized.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	if vek32.Norm(a) == 0 || vek32.Norm(b) == 0 {
		return 0
	}

	similarity := 1 - float64(hnsw.CosineDistance(a, b))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}
