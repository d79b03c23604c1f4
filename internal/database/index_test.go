package database

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testDim = 4

func axis(i int) []float32 {
	v := make([]float32, testDim)
	v[i] = 1
	return v
}

// near returns a unit vector whose cosine similarity with axis(0) is sim.
func near(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0, 0}
}

func newTestIndex(t *testing.T, dir string) *Index {
	t.Helper()
	idx, err := OpenIndex(IndexOptions{Dim: testDim, DataDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexSearchEmpty(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})
	m := idx.Search(axis(0))
	require.False(t, m.Found)
	require.Equal(t, -1, m.Row)
	require.Zero(t, m.Similarity)
}

func TestPromoteUnknownCounter(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})

	first, err := idx.PromoteUnknown(axis(0))
	require.NoError(t, err)
	second, err := idx.PromoteUnknown(axis(1))
	require.NoError(t, err)

	require.Equal(t, Unknown(1), first)
	require.Equal(t, Unknown(2), second)
	require.Equal(t, 3, idx.Stats().NextUnknownSerial)

	m := idx.Search(axis(1))
	require.True(t, m.Found)
	require.Equal(t, Unknown(2), m.Identity)
	require.InDelta(t, 1.0, m.Similarity, 0.0001)
}

func TestPromoteUnknownRejectsBadEmbedding(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})

	_, err := idx.PromoteUnknown([]float32{1, 0})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = idx.PromoteUnknown(make([]float32, testDim))
	require.ErrorIs(t, err, ErrZeroEmbedding)

	require.Equal(t, 0, idx.Len())
	require.Equal(t, 1, idx.Stats().NextUnknownSerial)
}

func TestCounterReconstructedOnLoad(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndex(t, dir)

	for i := range 3 {
		_, err := idx.PromoteUnknown(axis(i))
		require.NoError(t, err)
	}
	_, err := idx.Delete("Unknown2")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened := newTestIndex(t, dir)
	require.Equal(t, 2, reopened.Len())
	require.Equal(t, 4, reopened.Stats().NextUnknownSerial)
	require.False(t, reopened.Stats().LastSavedAt.IsZero())

	id, err := reopened.PromoteUnknown(axis(3))
	require.NoError(t, err)
	require.Equal(t, Unknown(4), id)
}

func TestEnrollMergesSimilarUnknown(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})

	for i := range 3 {
		_, err := idx.PromoteUnknown(axis(i + 1))
		require.NoError(t, err)
	}
	// Unknown4 is the person about to be enrolled.
	_, err := idx.PromoteUnknown(near(0.95))
	require.NoError(t, err)
	require.Equal(t, 4, idx.Len())

	out, err := idx.Enroll("Alice", [][]float32{axis(0)})
	require.NoError(t, err)
	require.Equal(t, Known("Alice"), out.Identity)
	require.Equal(t, 1, out.Added)
	require.Equal(t, []Identity{Unknown(4)}, out.Merged)

	require.Equal(t, []IdentitySummary{
		{Identity: Unknown(1), Rows: 1},
		{Identity: Unknown(2), Rows: 1},
		{Identity: Unknown(3), Rows: 1},
		{Identity: Known("Alice"), Rows: 1},
	}, idx.Identities())

	m := idx.Search(near(0.95))
	require.Equal(t, Known("Alice"), m.Identity)
}

func TestEnrollKeepsDissimilarUnknown(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})

	_, err := idx.PromoteUnknown(near(0.6))
	require.NoError(t, err)

	out, err := idx.Enroll("Alice", [][]float32{axis(0)})
	require.NoError(t, err)
	require.Empty(t, out.Merged)
	require.Equal(t, 2, idx.Len())
}

func TestEnrollAppendsToExistingName(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})

	_, err := idx.Enroll("Alice", [][]float32{axis(0)})
	require.NoError(t, err)
	out, err := idx.Enroll("Alice", [][]float32{axis(1), axis(2)})
	require.NoError(t, err)
	require.Equal(t, 2, out.Added)

	require.Equal(t, []IdentitySummary{{Identity: Known("Alice"), Rows: 3}}, idx.Identities())
}

func TestEnrollValidation(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})
	_, err := idx.Enroll("Jiří Novák", [][]float32{axis(0)})
	require.NoError(t, err)

	tests := []struct {
		name       string
		label      string
		embeddings [][]float32
		wantErr    error
	}{
		{"normalized collision", "jiri novak", [][]float32{axis(1)}, ErrLabelConflict},
		{"dash collision", "Jiri-Novak", [][]float32{axis(1)}, ErrLabelConflict},
		{"reserved", "Unknown7", [][]float32{axis(1)}, ErrReservedLabel},
		{"empty name", "", [][]float32{axis(1)}, ErrInvalidLabel},
		{"no embeddings", "Bob", nil, ErrNoEmbeddings},
		{"wrong dimension", "Bob", [][]float32{{1, 0}}, ErrDimensionMismatch},
		{"zero embedding", "Bob", [][]float32{axis(1), make([]float32, testDim)}, ErrZeroEmbedding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := idx.Enroll(tt.label, tt.embeddings)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, 1, idx.Len())
		})
	}
}

func TestDeletePreservesOrder(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})
	_, err := idx.Enroll("Alice", [][]float32{axis(0)})
	require.NoError(t, err)
	_, err = idx.Enroll("Bob", [][]float32{axis(1)})
	require.NoError(t, err)
	_, err = idx.Enroll("Alice", [][]float32{axis(2)})
	require.NoError(t, err)
	_, err = idx.Enroll("Carol", [][]float32{axis(3)})
	require.NoError(t, err)

	removed, err := idx.Delete("Alice")
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	require.Equal(t, Known("Bob"), idx.Search(axis(1)).Identity)
	require.Equal(t, 0, idx.Search(axis(1)).Row)
	require.Equal(t, Known("Carol"), idx.Search(axis(3)).Identity)
	require.Equal(t, 1, idx.Search(axis(3)).Row)

	_, err = idx.Delete("Alice")
	require.ErrorIs(t, err, ErrLabelNotFound)
}

func TestRename(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})
	unknown, err := idx.PromoteUnknown(axis(0))
	require.NoError(t, err)
	_, err = idx.Enroll("Bob", [][]float32{axis(1)})
	require.NoError(t, err)

	require.NoError(t, idx.Rename(unknown.String(), "Alice"))
	require.Equal(t, Known("Alice"), idx.Search(axis(0)).Identity)

	require.ErrorIs(t, idx.Rename("Unknown1", "Zed"), ErrLabelNotFound)
	require.ErrorIs(t, idx.Rename("Alice", "Bob"), ErrLabelExists)
	require.ErrorIs(t, idx.Rename("Alice", "bob"), ErrLabelExists)
	require.ErrorIs(t, idx.Rename("Alice", "Unknown9"), ErrReservedLabel)
	require.NoError(t, idx.Rename("Alice", "alice"))
	require.Equal(t, Known("alice"), idx.Search(axis(0)).Identity)
}

func TestLoadResetsHalfPresentPair(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndex(t, dir)
	_, err := idx.Enroll("Alice", [][]float32{axis(0)})
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, LabelsFile)))

	reopened := newTestIndex(t, dir)
	require.Equal(t, 0, reopened.Len())
	require.Equal(t, 1, reopened.Stats().NextUnknownSerial)
}

func TestLoadCorruptionIsFatal(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndex(t, dir)
	_, err := idx.Enroll("Alice", [][]float32{axis(0), axis(1)})
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, LabelsFile), []byte(`["Alice"]`), 0600))

	_, err = OpenIndex(IndexOptions{Dim: testDim, DataDir: dir})
	require.ErrorIs(t, err, ErrRegistryCorruption)

	// The failed open must not keep the directory locked.
	_, err = OpenIndex(IndexOptions{Dim: testDim, DataDir: dir})
	require.ErrorIs(t, err, ErrRegistryCorruption)
}

func TestSecondWriterIsLockedOut(t *testing.T) {
	dir := t.TempDir()
	first := newTestIndex(t, dir)

	_, err := OpenIndex(IndexOptions{Dim: testDim, DataDir: dir})
	require.ErrorIs(t, err, ErrIndexLocked)

	_, err = first.Enroll("Alice", [][]float32{axis(0)})
	require.NoError(t, err)

	viewer, err := OpenIndex(IndexOptions{Dim: testDim, DataDir: dir, ReadOnly: true})
	require.NoError(t, err)
	require.Equal(t, Known("Alice"), viewer.Search(axis(0)).Identity)
	_, err = viewer.Enroll("Bob", [][]float32{axis(1)})
	require.ErrorIs(t, err, ErrReadOnly)
	_, err = viewer.PromoteUnknown(axis(2))
	require.ErrorIs(t, err, ErrReadOnly)
	require.ErrorIs(t, viewer.Rename("Alice", "Alicia"), ErrReadOnly)
	_, err = viewer.Delete("Alice")
	require.ErrorIs(t, err, ErrReadOnly)
	require.NoError(t, viewer.Close())

	_, err = first.PromoteUnknown(axis(1))
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	second := newTestIndex(t, dir)
	require.Equal(t, Known("Alice"), second.Search(axis(0)).Identity)
	require.Equal(t, Unknown(1), second.Search(axis(1)).Identity)
}

func TestSaveFailureKeepsStateAndRetries(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.WriteFile(dataDir, nil, 0600))

	idx := NewIndex(IndexOptions{Dim: testDim, DataDir: dataDir})
	id, err := idx.PromoteUnknown(axis(0))
	require.ErrorIs(t, err, ErrPersistence)
	require.Equal(t, Unknown(1), id)
	require.Equal(t, 1, idx.Len())
	require.True(t, idx.Stats().Dirty)

	require.NoError(t, os.Remove(dataDir))
	require.NoError(t, idx.Flush())
	require.False(t, idx.Stats().Dirty)

	reopened := newTestIndex(t, dataDir)
	require.Equal(t, Unknown(1), reopened.Search(axis(0)).Identity)
}

func TestIdentitiesAndStats(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})

	_, err := idx.Enroll("Alice", [][]float32{axis(0), near(0.9)})
	require.NoError(t, err)
	_, err = idx.PromoteUnknown(axis(2))
	require.NoError(t, err)

	require.Equal(t, []IdentitySummary{
		{Identity: Known("Alice"), Rows: 2},
		{Identity: Unknown(1), Rows: 1},
	}, idx.Identities())

	st := idx.Stats()
	require.Equal(t, 3, st.Rows)
	require.Equal(t, 1, st.KnownIdentities)
	require.Equal(t, 1, st.UnknownIdentities)
	require.Equal(t, 2, st.NextUnknownSerial)
	require.Equal(t, testDim, st.Dim)
	require.False(t, st.Dirty)
	require.True(t, st.LastSavedAt.IsZero())
}

func TestRebuildKeepAllLeavesIndexUntouched(t *testing.T) {
	idx := NewIndex(IndexOptions{Dim: testDim})
	_, err := idx.Enroll("Alice", [][]float32{axis(0), axis(1)})
	require.NoError(t, err)
	store, reg := idx.store, idx.reg

	require.False(t, idx.rebuildLocked(func(int) bool { return true }))
	require.Same(t, store, idx.store)
	require.Same(t, reg, idx.reg)

	_, err = idx.Delete("Nobody")
	require.ErrorIs(t, err, ErrLabelNotFound)
	require.Same(t, store, idx.store)
	require.Equal(t, 2, idx.Len())
}
