package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
)

// Files names the pair of files an index is persisted to. Both are always
// written and read together.
type Files struct {
	Vectors string
	Labels  string
}

// FilesIn returns the default file pair inside dir.
func FilesIn(dir string) Files {
	return Files{
		Vectors: filepath.Join(dir, VectorsFile),
		Labels:  filepath.Join(dir, LabelsFile),
	}
}

// vectorFile is the gob payload of the vectors file.
type vectorFile struct {
	Version int
	Dim     int
	Rows    int
	Data    []float32
	SavedAt time.Time
}

// SaveFiles writes store and registry to files. Both payloads go to temp
// files in the target directories first; the renames only happen once both
// temp files are complete, so a failed write leaves the previous pair intact.
func SaveFiles(files Files, store *EmbeddingStore, reg *Registry) error {
	if store.Len() != reg.Len() {
		return fmt.Errorf("%w: %d rows, %d labels", ErrRegistryCorruption, store.Len(), reg.Len())
	}

	var vec bytes.Buffer
	payload := vectorFile{
		Version: vectorFileVersion,
		Dim:     store.Dim(),
		Rows:    store.Len(),
		Data:    store.data,
		SavedAt: time.Now().UTC(),
	}
	if err := gob.NewEncoder(&vec).Encode(payload); err != nil {
		return fmt.Errorf("%w: failed to encode vectors: %w", ErrPersistence, err)
	}

	labels, err := json.Marshal(reg.Labels())
	if err != nil {
		return fmt.Errorf("%w: failed to encode labels: %w", ErrPersistence, err)
	}

	for _, path := range []string{files.Vectors, files.Labels} {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return fmt.Errorf("%w: failed to create data directory: %w", ErrPersistence, err)
		}
	}

	pv, err := writePending(files.Vectors, vec.Bytes())
	if err != nil {
		return err
	}
	defer pv.Cleanup()

	pl, err := writePending(files.Labels, labels)
	if err != nil {
		return err
	}
	defer pl.Cleanup()

	if err := pv.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: failed to replace %s: %w", ErrPersistence, files.Vectors, err)
	}
	if err := pl.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: failed to replace %s: %w", ErrPersistence, files.Labels, err)
	}
	return nil
}

func writePending(path string, data []byte) (*renameio.PendingFile, error) {
	pf, err := renameio.TempFile("", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temp file for %s: %w", ErrPersistence, path, err)
	}
	if _, err := pf.Write(data); err != nil {
		_ = pf.Cleanup()
		return nil, fmt.Errorf("%w: failed to write %s: %w", ErrPersistence, path, err)
	}
	return pf, nil
}

// Snapshot is a persisted pair read back into memory.
type Snapshot struct {
	Store    *EmbeddingStore
	Registry *Registry
	SavedAt  time.Time // zero for a missing pair
}

// LoadFiles reads a persisted pair.
//
// When neither file exists it returns an empty store and registry. When only
// one exists, or either cannot be read or decoded, the error wraps
// ErrPersistence. Disagreeing row counts, a dimension other than dim, or a
// malformed label wrap ErrRegistryCorruption.
func LoadFiles(files Files, dim int) (Snapshot, error) {
	vecOK, err := exists(files.Vectors)
	if err != nil {
		return Snapshot{}, err
	}
	labOK, err := exists(files.Labels)
	if err != nil {
		return Snapshot{}, err
	}

	switch {
	case !vecOK && !labOK:
		return Snapshot{Store: NewEmbeddingStore(dim), Registry: NewRegistry()}, nil
	case !vecOK:
		return Snapshot{}, fmt.Errorf("%w: %s present without %s", ErrPersistence, files.Labels, files.Vectors)
	case !labOK:
		return Snapshot{}, fmt.Errorf("%w: %s present without %s", ErrPersistence, files.Vectors, files.Labels)
	}

	raw, err := os.ReadFile(files.Vectors)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: failed to read vectors: %w", ErrPersistence, err)
	}
	var payload vectorFile
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&payload); err != nil {
		return Snapshot{}, fmt.Errorf("%w: failed to decode vectors: %w", ErrPersistence, err)
	}
	if payload.Version != vectorFileVersion {
		return Snapshot{}, fmt.Errorf("%w: unsupported vectors version %d", ErrPersistence, payload.Version)
	}

	raw, err = os.ReadFile(files.Labels)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: failed to read labels: %w", ErrPersistence, err)
	}
	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return Snapshot{}, fmt.Errorf("%w: failed to decode labels: %w", ErrPersistence, err)
	}

	if payload.Rows != len(labels) {
		return Snapshot{}, fmt.Errorf("%w: %d rows, %d labels", ErrRegistryCorruption, payload.Rows, len(labels))
	}
	if payload.Rows > 0 && payload.Dim != dim {
		return Snapshot{}, fmt.Errorf("%w: stored dimension %d, configured %d", ErrRegistryCorruption, payload.Dim, dim)
	}
	if len(payload.Data) != payload.Rows*dim {
		return Snapshot{}, fmt.Errorf("%w: %d values for %d rows", ErrRegistryCorruption, len(payload.Data), payload.Rows)
	}

	reg := &Registry{ids: make([]Identity, 0, len(labels))}
	for i, label := range labels {
		id, err := ParseLabel(label)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: row %d: %w", ErrRegistryCorruption, i, err)
		}
		reg.Append(id)
	}

	return Snapshot{
		Store:    &EmbeddingStore{dim: dim, data: payload.Data},
		Registry: reg,
		SavedAt:  payload.SavedAt,
	}, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: failed to stat %s: %w", ErrPersistence, path, err)
}
