package database

// Registry is the row-ordered list of identities parallel to an
// EmbeddingStore: row i of the store belongs to Identity i.
type Registry struct {
	ids []Identity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of rows.
func (r *Registry) Len() int {
	return len(r.ids)
}

// At returns the identity of row i.
func (r *Registry) At(i int) Identity {
	return r.ids[i]
}

// Append adds the identity of a newly inserted row.
func (r *Registry) Append(id Identity) {
	r.ids = append(r.ids, id)
}

// Has reports whether id owns at least one row.
func (r *Registry) Has(id Identity) bool {
	for _, x := range r.ids {
		if x == id {
			return true
		}
	}
	return false
}

// Relabel moves every row owned by from to to, returning the number of rows
// changed.
func (r *Registry) Relabel(from, to Identity) int {
	n := 0
	for i, x := range r.ids {
		if x == from {
			r.ids[i] = to
			n++
		}
	}
	return n
}

// Rebuild returns a new registry with the rows for which keep returns true.
// It must be called with the same predicate as EmbeddingStore.Rebuild.
func (r *Registry) Rebuild(keep func(row int) bool) *Registry {
	out := &Registry{ids: make([]Identity, 0, len(r.ids))}
	for i, id := range r.ids {
		if keep(i) {
			out.ids = append(out.ids, id)
		}
	}
	return out
}

// Labels renders every row's label for persistence.
func (r *Registry) Labels() []string {
	labels := make([]string, len(r.ids))
	for i, id := range r.ids {
		labels[i] = id.String()
	}
	return labels
}

// Identities returns each distinct identity with its row count, in order of
// first appearance.
func (r *Registry) Identities() []IdentitySummary {
	index := make(map[Identity]int)
	var out []IdentitySummary
	for _, id := range r.ids {
		if i, ok := index[id]; ok {
			out[i].Rows++
			continue
		}
		index[id] = len(out)
		out = append(out, IdentitySummary{Identity: id, Rows: 1})
	}
	return out
}

// maxUnknownSerial returns the highest Unknown serial present, or 0.
func (r *Registry) maxUnknownSerial() int {
	highest := 0
	for _, id := range r.ids {
		if id.IsUnknown() && id.Serial > highest {
			highest = id.Serial
		}
	}
	return highest
}
