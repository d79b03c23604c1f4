// Package thumbnail writes cropped face images for identities. It decides
// where and how often crops are written, never when they are deleted.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/detector"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

const (
	knownDir   = "known"
	unknownDir = "unknown"
	timeLayout = "20060102_150405.000"
)

// Options configures a Store.
type Options struct {
	Dir            string
	Padding        int           // pixels added around the face box
	UpdateInterval time.Duration // minimum time between crops of one identity
	Quality        int           // JPEG quality
	DedupeDistance int           // skip crops within this dHash distance of the previous one; negative disables
}

// Store writes crops to <dir>/{known,unknown}/<label>/<timestamp>_<facehash>.jpg.
type Store struct {
	opts     Options
	throttle *cache.Cache
	now      func() time.Time

	mu       sync.Mutex
	lastHash map[database.Identity]uint64
}

// New creates a Store.
func New(opts Options) *Store {
	if opts.Quality <= 0 {
		opts.Quality = 90
	}
	return &Store{
		opts:     opts,
		throttle: cache.New(opts.UpdateInterval, time.Minute),
		now:      time.Now,
		lastHash: make(map[database.Identity]uint64),
	}
}

// SaveFace crops bbox out of frame and writes it for id. Calls within the
// update interval of the previous crop for the same identity are ignored.
func (s *Store) SaveFace(_ context.Context, frame []byte, bbox facematch.BBox, id database.Identity, embedding []float32) error {
	if id.IsZero() {
		return nil
	}
	key := id.String()
	if s.opts.UpdateInterval > 0 {
		if err := s.throttle.Add(key, struct{}{}, s.opts.UpdateInterval); err != nil {
			return nil // written recently
		}
	}

	img, err := detector.Decode(frame)
	if err != nil {
		return err
	}
	rect := bbox.Rect(s.opts.Padding, img.Bounds())
	if rect.Empty() {
		return fmt.Errorf("face box %v outside frame %v", bbox, img.Bounds())
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), img, rect.Min, draw.Src)

	if s.isDuplicate(id, crop) {
		log.Debug().Str("identity", key).Msg("Skipping near-duplicate face crop")
		return nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: s.opts.Quality}); err != nil {
		return fmt.Errorf("failed to encode face crop: %w", err)
	}

	dir := s.identityDir(id)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create face directory: %w", err)
	}
	name := s.now().UTC().Format(timeLayout) + "_" + facematch.FaceHash(embedding) + ".jpg"
	if err := renameio.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write face crop: %w", err)
	}
	return nil
}

func (s *Store) isDuplicate(id database.Identity, crop image.Image) bool {
	if s.opts.DedupeDistance < 0 {
		return false
	}
	h := DHash(crop)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.lastHash[id]
	s.lastHash[id] = h
	return ok && HammingDistance(prev, h) <= s.opts.DedupeDistance
}

// Latest returns the path of the newest crop for id.
func (s *Store) Latest(id database.Identity) (string, bool) {
	entries, err := os.ReadDir(s.identityDir(id))
	if err != nil {
		return "", false
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	slices.Sort(names)
	return filepath.Join(s.identityDir(id), names[len(names)-1]), true
}

// Rename moves the crops of from to the directory of to, merging into any
// crops to already has.
func (s *Store) Rename(from, to database.Identity) error {
	src, dst := s.identityDir(from), s.identityDir(to)
	if src == dst {
		// Names that fold to the same directory, e.g. "Jiří" and "Jiri".
		return nil
	}
	entries, err := os.ReadDir(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.MkdirAll(dst, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return fmt.Errorf("failed to move %s: %w", e.Name(), err)
		}
	}
	s.forget(from)
	return os.Remove(src)
}

// Remove deletes every crop of id.
func (s *Store) Remove(id database.Identity) error {
	s.forget(id)
	if err := os.RemoveAll(s.identityDir(id)); err != nil {
		return fmt.Errorf("failed to remove face crops of %s: %w", id, err)
	}
	return nil
}

func (s *Store) forget(id database.Identity) {
	s.throttle.Delete(id.String())
	s.mu.Lock()
	delete(s.lastHash, id)
	s.mu.Unlock()
}

func (s *Store) identityDir(id database.Identity) string {
	kind := knownDir
	if id.IsUnknown() {
		kind = unknownDir
	}
	return filepath.Join(s.opts.Dir, kind, dirName(id.String()))
}

// dirName makes a label safe to use as a single path element.
func dirName(label string) string {
	label = facematch.RemoveDiacritics(label)
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
