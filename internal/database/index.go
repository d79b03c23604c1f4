package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

// IndexOptions configures an Index.
type IndexOptions struct {
	// Dim is the embedding length. Defaults to EmbeddingDim.
	Dim int
	// DataDir holds the persisted file pair. Empty keeps the index in memory.
	DataDir string
	// MergeSimilarity is the threshold for merge-on-enroll. Defaults to
	// DefaultMergeSimilarity.
	MergeSimilarity float64
	// ReadOnly opens the persisted state without taking the writer lock.
	// Every mutation then fails with ErrReadOnly.
	ReadOnly bool
}

// Index is the shared face index: embedding store, identity registry and the
// Unknown counter behind a single writer lock.
//
// Searches take the read lock. Every mutation, including the save that
// follows it, runs under the write lock, so a rebuild never swaps the store
// out from under a concurrent search.
type Index struct {
	mu sync.RWMutex

	store       *EmbeddingStore
	reg         *Registry
	nextUnknown int

	dim             int
	mergeSimilarity float64
	files           Files
	persist         bool
	readOnly        bool
	dirty           bool
	lastSaved       time.Time

	lock *flock.Flock // held from OpenIndex until Close
}

// NewIndex creates an empty index. Nothing is read from disk.
func NewIndex(opts IndexOptions) *Index {
	if opts.Dim <= 0 {
		opts.Dim = EmbeddingDim
	}
	if opts.MergeSimilarity <= 0 {
		opts.MergeSimilarity = DefaultMergeSimilarity
	}

	idx := &Index{
		store:           NewEmbeddingStore(opts.Dim),
		reg:             NewRegistry(),
		nextUnknown:     1,
		dim:             opts.Dim,
		mergeSimilarity: opts.MergeSimilarity,
		readOnly:        opts.ReadOnly,
	}
	if opts.DataDir != "" {
		idx.files = FilesIn(opts.DataDir)
		idx.persist = true
	}
	return idx
}

// OpenIndex creates an index and loads its persisted state.
//
// A writable index with a data directory holds an exclusive lock on that
// directory until Close. A second writer gets ErrIndexLocked instead of
// silently overwriting the first one's saves.
func OpenIndex(opts IndexOptions) (*Index, error) {
	idx := NewIndex(opts)
	if idx.persist && !idx.readOnly {
		lock, err := lockDataDir(opts.DataDir)
		if err != nil {
			return nil, err
		}
		idx.lock = lock
	}
	if err := idx.Load(); err != nil {
		_ = idx.unlock()
		return nil, err
	}
	return idx, nil
}

// Close flushes pending changes and releases the data directory lock.
// Closing twice is a no-op.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var flushErr error
	if idx.dirty && !idx.readOnly {
		flushErr = idx.saveLocked()
	}
	return errors.Join(flushErr, idx.unlock())
}

func (idx *Index) unlock() error {
	if idx.lock == nil {
		return nil
	}
	err := idx.lock.Unlock()
	idx.lock = nil
	if err != nil {
		return fmt.Errorf("%w: unlock: %w", ErrPersistence, err)
	}
	return nil
}

// Load replaces the in-memory state with the persisted pair.
//
// A missing pair yields an empty index. A half-present or unreadable pair is
// logged and reset to an empty index. Corruption is returned to the caller and
// leaves the in-memory state untouched.
func (idx *Index) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.persist {
		return nil
	}

	snap, err := LoadFiles(idx.files, idx.dim)
	switch {
	case errors.Is(err, ErrRegistryCorruption):
		return err
	case err != nil:
		log.Warn().Err(err).
			Str("vectors", idx.files.Vectors).
			Str("labels", idx.files.Labels).
			Msg("Discarding unusable face index, starting empty")
		snap = Snapshot{Store: NewEmbeddingStore(idx.dim), Registry: NewRegistry()}
	}

	store, reg := snap.Store, snap.Registry
	idx.store = store
	idx.reg = reg
	idx.nextUnknown = reg.maxUnknownSerial() + 1
	idx.dirty = false
	idx.lastSaved = snap.SavedAt

	log.Info().
		Int("rows", store.Len()).
		Int("next_unknown", idx.nextUnknown).
		Msg("Face index loaded")
	return nil
}

// Save writes the current state unconditionally.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.readOnly {
		return ErrReadOnly
	}
	return idx.saveLocked()
}

// Flush retries a save if an earlier one failed.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}
	return idx.saveLocked()
}

// saveLocked persists the state. On failure the in-memory state is kept and
// the index is marked dirty so the next Flush retries.
func (idx *Index) saveLocked() error {
	if !idx.persist {
		return nil
	}
	if err := SaveFiles(idx.files, idx.store, idx.reg); err != nil {
		idx.dirty = true
		return err
	}
	idx.dirty = false
	idx.lastSaved = time.Now()
	return nil
}

// Search returns the nearest stored identity to q.
func (idx *Index) Search(q []float32) Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	row, sim, found := idx.store.SearchNearest(q)
	if !found {
		return Match{Row: -1}
	}
	return Match{
		Row:        row,
		Identity:   idx.reg.At(row),
		Similarity: sim,
		Found:      true,
	}
}

// Enroll adds embeddings under the known name. Unknown identities that look
// like the same person are removed first. An existing identity with exactly
// this name gains the new rows.
//
// If only the final save fails, the outcome is valid and the returned error
// wraps ErrPersistence.
func (idx *Index) Enroll(name string, embeddings [][]float32) (EnrollOutcome, error) {
	if err := ValidateKnownName(name); err != nil {
		return EnrollOutcome{}, err
	}
	if len(embeddings) == 0 {
		return EnrollOutcome{}, ErrNoEmbeddings
	}

	normalized := make([][]float32, 0, len(embeddings))
	for i, e := range embeddings {
		if len(e) != idx.dim {
			return EnrollOutcome{}, fmt.Errorf("embedding %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(e), idx.dim)
		}
		n, err := Normalize(e)
		if err != nil {
			return EnrollOutcome{}, fmt.Errorf("embedding %d: %w", i, err)
		}
		normalized = append(normalized, n)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.readOnly {
		return EnrollOutcome{}, ErrReadOnly
	}

	id := Known(name)
	if other, ok := idx.conflictingNameLocked(name, Identity{}); ok && other != id {
		return EnrollOutcome{}, fmt.Errorf("%w: %q vs existing %q", ErrLabelConflict, name, other.Name)
	}

	out := EnrollOutcome{Identity: id}
	out.Merged = idx.mergeLocked(normalized)
	for _, e := range normalized {
		idx.store.appendNormalized(e)
		idx.reg.Append(id)
		out.Added++
	}

	if err := idx.saveLocked(); err != nil {
		return out, err
	}
	return out, nil
}

// Rename moves every row of the identity labelled oldLabel to the known name
// newName. oldLabel may be an Unknown label such as "Unknown3".
func (idx *Index) Rename(oldLabel, newName string) error {
	from, err := ParseLabel(oldLabel)
	if err != nil {
		return err
	}
	if err := ValidateKnownName(newName); err != nil {
		return err
	}
	to := Known(newName)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.readOnly {
		return ErrReadOnly
	}

	if !idx.reg.Has(from) {
		return fmt.Errorf("%w: %s", ErrLabelNotFound, oldLabel)
	}
	if from == to {
		return nil
	}
	if idx.reg.Has(to) {
		return fmt.Errorf("%w: %s", ErrLabelExists, newName)
	}
	if other, ok := idx.conflictingNameLocked(newName, from); ok {
		return fmt.Errorf("%w: %q matches %q", ErrLabelExists, newName, other.Name)
	}

	idx.reg.Relabel(from, to)
	return idx.saveLocked()
}

// Delete removes every row of the identity labelled label and returns how
// many rows were removed.
func (idx *Index) Delete(label string) (int, error) {
	id, err := ParseLabel(label)
	if err != nil {
		return 0, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.readOnly {
		return 0, ErrReadOnly
	}

	reg := idx.reg
	before := reg.Len()
	if !idx.rebuildLocked(func(row int) bool { return reg.At(row) != id }) {
		return 0, fmt.Errorf("%w: %s", ErrLabelNotFound, label)
	}
	removed := before - idx.reg.Len()

	return removed, idx.saveLocked()
}

// rebuildLocked keeps only the rows accepted by keep. It reports whether any
// row was dropped.
func (idx *Index) rebuildLocked(keep func(row int) bool) bool {
	dropped := false
	for i := range idx.reg.Len() {
		if !keep(i) {
			dropped = true
			break
		}
	}
	if !dropped {
		return false
	}
	idx.store, idx.reg = idx.store.Rebuild(keep), idx.reg.Rebuild(keep)
	return true
}

// conflictingNameLocked returns an existing known identity, other than skip,
// whose name normalizes to the same form as name.
func (idx *Index) conflictingNameLocked(name string, skip Identity) (Identity, bool) {
	for _, s := range idx.reg.Identities() {
		if s.Identity.Kind != KindKnown || s.Identity == skip {
			continue
		}
		if facematch.SameName(s.Identity.Name, name) {
			return s.Identity, true
		}
	}
	return Identity{}, false
}

// Identities lists every identity with its row count.
func (idx *Index) Identities() []IdentitySummary {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.reg.Identities()
}

// Len returns the number of stored rows.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.store.Len()
}

// Dim returns the embedding length.
func (idx *Index) Dim() int {
	return idx.dim
}

// Stats summarizes the index.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	st := Stats{
		Rows:              idx.store.Len(),
		NextUnknownSerial: idx.nextUnknown,
		Dim:               idx.dim,
		LastSavedAt:       idx.lastSaved,
		Dirty:             idx.dirty,
	}
	for _, s := range idx.reg.Identities() {
		if s.Identity.IsUnknown() {
			st.UnknownIdentities++
		} else {
			st.KnownIdentities++
		}
	}
	return st
}
