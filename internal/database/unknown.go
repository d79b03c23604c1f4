package database

import "fmt"

// PromoteUnknown stores e under a freshly minted Unknown identity and
// persists the index. The counter only moves forward within a process.
//
// If only the save fails, the identity is valid and the returned error wraps
// ErrPersistence.
func (idx *Index) PromoteUnknown(e []float32) (Identity, error) {
	if len(e) != idx.dim {
		return Identity{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e), idx.dim)
	}
	n, err := Normalize(e)
	if err != nil {
		return Identity{}, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.readOnly {
		return Identity{}, ErrReadOnly
	}

	id := Unknown(idx.nextUnknown)
	idx.nextUnknown++

	idx.store.appendNormalized(n)
	idx.reg.Append(id)

	if err := idx.saveLocked(); err != nil {
		return id, err
	}
	return id, nil
}

// mergeLocked removes every Unknown identity with at least one row whose
// similarity to any of the new embeddings exceeds the merge threshold. All
// matching identities are dropped in one rebuild. The embeddings must be
// normalized.
func (idx *Index) mergeLocked(embeddings [][]float32) []Identity {
	reg := idx.reg
	doomed := make(map[Identity]bool)
	var merged []Identity

	for row := range reg.Len() {
		id := reg.At(row)
		if !id.IsUnknown() || doomed[id] {
			continue
		}
		stored := idx.store.Row(row)
		for _, e := range embeddings {
			if Dot(stored, e) > idx.mergeSimilarity {
				doomed[id] = true
				merged = append(merged, id)
				break
			}
		}
	}

	if len(merged) == 0 {
		return nil
	}
	idx.rebuildLocked(func(row int) bool { return !doomed[reg.At(row)] })
	return merged
}
