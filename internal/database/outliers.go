package database

import "github.com/viterin/vek/vek32"

// Centroid is the element-wise mean of equal-length embeddings. It returns nil
// when embeddings is empty or the lengths differ.
func Centroid(embeddings [][]float32) []float32 {
	if len(embeddings) == 0 {
		return nil
	}
	dim := len(embeddings[0])
	sum := make([]float32, dim)
	for _, e := range embeddings {
		if len(e) != dim {
			return nil
		}
		vek32.Add_Inplace(sum, e)
	}
	return vek32.MulNumber(sum, 1/float32(len(embeddings)))
}

// Outliers returns the positions of embeddings whose cosine similarity to the
// centroid of the whole batch is below minSimilarity, in input order.
// A photo set with fewer than three faces has no meaningful majority and
// never reports outliers.
func Outliers(embeddings [][]float32, minSimilarity float64) []int {
	if len(embeddings) < 3 {
		return nil
	}
	centroid := Centroid(embeddings)
	if centroid == nil {
		return nil
	}

	var out []int
	for i, e := range embeddings {
		if CosineSimilarity(e, centroid) < minSimilarity {
			out = append(out, i)
		}
	}
	return out
}
