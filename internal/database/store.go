package database

import "fmt"

// EmbeddingStore is an append-only arena of normalized embeddings with exact
// nearest-neighbor search.
//
// Rows cannot be removed in place. Deletion goes through Rebuild, which
// copies the kept rows into a new store, so every delete or merge is O(n)
// over the whole population. That is fine for the tens to low thousands of
// identities a camera installation enrolls; approximate indexes are not used.
type EmbeddingStore struct {
	dim  int
	data []float32 // row i is data[i*dim : (i+1)*dim]
}

// NewEmbeddingStore creates an empty store for vectors of length dim.
func NewEmbeddingStore(dim int) *EmbeddingStore {
	return &EmbeddingStore{dim: dim}
}

// Dim returns the vector length accepted by the store.
func (s *EmbeddingStore) Dim() int {
	return s.dim
}

// Len returns the number of rows.
func (s *EmbeddingStore) Len() int {
	if s.dim == 0 {
		return 0
	}
	return len(s.data) / s.dim
}

// Row returns the normalized embedding at row i. The slice aliases the
// arena and must not be modified.
func (s *EmbeddingStore) Row(i int) []float32 {
	return s.data[i*s.dim : (i+1)*s.dim : (i+1)*s.dim]
}

// Insert normalizes e and appends it, returning its row id.
func (s *EmbeddingStore) Insert(e []float32) (int, error) {
	if len(e) != s.dim {
		return -1, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e), s.dim)
	}
	n, err := Normalize(e)
	if err != nil {
		return -1, err
	}
	s.data = append(s.data, n...)
	return s.Len() - 1, nil
}

// appendNormalized appends a vector that is already normalized.
func (s *EmbeddingStore) appendNormalized(e []float32) {
	s.data = append(s.data, e...)
}

// SearchNearest scans every row and returns the one with the highest inner
// product with q. On an empty store it returns (-1, 0, false).
// q does not need to be normalized.
func (s *EmbeddingStore) SearchNearest(q []float32) (int, float64, bool) {
	if s.Len() == 0 || len(q) != s.dim {
		return -1, 0, false
	}
	nq, err := Normalize(q)
	if err != nil {
		return -1, 0, false
	}

	best, bestSim := -1, 0.0
	for i := range s.Len() {
		sim := Dot(nq, s.Row(i))
		if best == -1 || sim > bestSim {
			best, bestSim = i, sim
		}
	}
	return best, bestSim, true
}

// Rebuild returns a new store holding only the rows for which keep returns
// true, in their original relative order.
func (s *EmbeddingStore) Rebuild(keep func(row int) bool) *EmbeddingStore {
	out := &EmbeddingStore{dim: s.dim, data: make([]float32, 0, len(s.data))}
	for i := range s.Len() {
		if keep(i) {
			out.appendNormalized(s.Row(i))
		}
	}
	return out
}
