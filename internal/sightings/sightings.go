// Package sightings keeps a per-identity log of when and where each face was
// seen. Known and Unknown identities are written to separate JSON files.
package sightings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/renameio"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

const (
	KnownFile   = "known.json"
	UnknownFile = "unknown.json"
)

// Sighting is one confident observation of an identity.
type Sighting struct {
	Identity  database.Identity
	Camera    string
	At        time.Time
	BBox      facematch.BBox
	Score     float64
	Embedding []float32
}

// Detection is a logged sighting
type Detection struct {
	At       time.Time  `json:"at"`
	Camera   string     `json:"camera"`
	BBox     [4]float64 `json:"bbox"`
	Score    float64    `json:"score"`
	FaceHash string     `json:"face_hash,omitempty"`
}

// Entry is the history of one identity
type Entry struct {
	Name          string      `json:"name"`
	Kind          string      `json:"kind"`
	FirstDetected time.Time   `json:"first_detected"`
	LastDetected  time.Time   `json:"last_detected"`
	Count         int         `json:"count"` // all sightings, including trimmed ones
	Detections    []Detection `json:"detections"`
}

// Log is safe for concurrent use by several camera sessions.
type Log struct {
	mu      sync.Mutex
	dir     string
	max     int
	known   map[string]*Entry
	unknown map[string]*Entry
	dirty   bool
}

// New creates an empty log stored in dir. Each identity keeps at most
// maxPerIdentity detections; older ones are dropped. Zero keeps everything.
func New(dir string, maxPerIdentity int) *Log {
	return &Log{
		dir:     dir,
		max:     maxPerIdentity,
		known:   make(map[string]*Entry),
		unknown: make(map[string]*Entry),
	}
}

// Record adds a sighting.
func (l *Log) Record(s Sighting) {
	l.mu.Lock()
	defer l.mu.Unlock()

	label := s.Identity.String()
	entries := l.known
	if s.Identity.IsUnknown() {
		entries = l.unknown
	}

	e, ok := entries[label]
	if !ok {
		e = &Entry{Name: label, Kind: s.Identity.Kind.String(), FirstDetected: s.At}
		entries[label] = e
	}
	e.LastDetected = s.At
	e.Count++

	d := Detection{At: s.At, Camera: s.Camera, BBox: s.BBox, Score: s.Score}
	if len(s.Embedding) > 0 {
		d.FaceHash = facematch.FaceHash(s.Embedding)
	}
	e.Detections = append(e.Detections, d)
	if l.max > 0 && len(e.Detections) > l.max {
		e.Detections = slices.Delete(e.Detections, 0, len(e.Detections)-l.max)
	}
	l.dirty = true
}

// Entries returns copies of all entries, most recently seen first.
func (l *Log) Entries() (known, unknown []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedCopy(l.known), sortedCopy(l.unknown)
}

func sortedCopy(m map[string]*Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		c := *e
		c.Detections = slices.Clone(e.Detections)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := b.LastDetected.Compare(a.LastDetected); c != 0 {
			return c
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

// Load reads both files. Missing files leave the corresponding half empty.
func (l *Log) Load() error {
	known, err := readEntries(filepath.Join(l.dir, KnownFile))
	if err != nil {
		return err
	}
	unknown, err := readEntries(filepath.Join(l.dir, UnknownFile))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.known, l.unknown = known, unknown
	l.dirty = false
	return nil
}

func readEntries(path string) (map[string]*Entry, error) {
	out := make(map[string]*Entry)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sightings %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode sightings %s: %w", path, err)
	}
	if out == nil {
		// A file holding "null" decodes to a nil map.
		out = make(map[string]*Entry)
	}
	return out, nil
}

// Flush writes both files if anything changed since the last flush.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return nil
	}
	return l.writeLocked()
}

// Clear forgets every sighting and writes empty files.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.known = make(map[string]*Entry)
	l.unknown = make(map[string]*Entry)
	return l.writeLocked()
}

func (l *Log) writeLocked() error {
	if err := os.MkdirAll(l.dir, 0750); err != nil {
		return fmt.Errorf("failed to create sightings directory: %w", err)
	}
	files := []struct {
		name    string
		entries map[string]*Entry
	}{
		{KnownFile, l.known},
		{UnknownFile, l.unknown},
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode sightings: %w", err)
		}
		if err := renameio.WriteFile(filepath.Join(l.dir, f.name), data, 0600); err != nil {
			return fmt.Errorf("failed to write sightings %s: %w", f.name, err)
		}
	}
	l.dirty = false
	return nil
}
