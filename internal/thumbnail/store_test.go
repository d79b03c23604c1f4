package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

func frame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for x := range 100 {
		for y := range 100 {
			img.Set(x, y, color.RGBA{uint8(x * 2), uint8(y * 2), uint8(x + y), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	s := New(opts)
	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func crops(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSaveFaceCrop(t *testing.T) {
	s := newTestStore(t, Options{Padding: 20, UpdateInterval: time.Hour, Quality: 80})
	alice := database.Known("Alice")

	err := s.SaveFace(context.Background(), frame(t), facematch.BBox{30, 30, 50, 60}, alice, []float32{1, 2})
	require.NoError(t, err)

	dir := filepath.Join(s.opts.Dir, "known", "Alice")
	names := crops(t, dir)
	require.Len(t, names, 1)
	require.True(t, strings.HasPrefix(names[0], "20240501_120001.000_"))
	require.True(t, strings.HasSuffix(names[0], "_"+facematch.FaceHash([]float32{1, 2})+".jpg"))

	data, err := os.ReadFile(filepath.Join(dir, names[0]))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 60, img.Bounds().Dx())
	require.Equal(t, 70, img.Bounds().Dy())
}

func TestSaveFaceThrottled(t *testing.T) {
	s := newTestStore(t, Options{Padding: 20, UpdateInterval: time.Hour, DedupeDistance: -1})
	f := frame(t)

	require.NoError(t, s.SaveFace(context.Background(), f, facematch.BBox{30, 30, 50, 60}, database.Unknown(1), nil))
	require.NoError(t, s.SaveFace(context.Background(), f, facematch.BBox{10, 10, 40, 40}, database.Unknown(1), nil))
	require.NoError(t, s.SaveFace(context.Background(), f, facematch.BBox{10, 10, 40, 40}, database.Unknown(2), nil))

	require.Len(t, crops(t, filepath.Join(s.opts.Dir, "unknown", "Unknown1")), 1)
	require.Len(t, crops(t, filepath.Join(s.opts.Dir, "unknown", "Unknown2")), 1)
}

func TestSaveFaceDedupe(t *testing.T) {
	f := frame(t)
	bbox := facematch.BBox{30, 30, 50, 60}

	s := newTestStore(t, Options{Padding: 20})
	require.NoError(t, s.SaveFace(context.Background(), f, bbox, database.Known("Bob"), nil))
	require.NoError(t, s.SaveFace(context.Background(), f, bbox, database.Known("Bob"), nil))
	require.Len(t, crops(t, filepath.Join(s.opts.Dir, "known", "Bob")), 1)

	s = newTestStore(t, Options{Padding: 20, DedupeDistance: -1})
	require.NoError(t, s.SaveFace(context.Background(), f, bbox, database.Known("Bob"), nil))
	require.NoError(t, s.SaveFace(context.Background(), f, bbox, database.Known("Bob"), nil))
	require.Len(t, crops(t, filepath.Join(s.opts.Dir, "known", "Bob")), 2)
}

func TestSaveFaceErrors(t *testing.T) {
	s := newTestStore(t, Options{})
	err := s.SaveFace(context.Background(), []byte("garbage"), facematch.BBox{0, 0, 10, 10}, database.Known("A"), nil)
	require.Error(t, err)

	err = s.SaveFace(context.Background(), frame(t), facematch.BBox{200, 200, 220, 220}, database.Known("B"), nil)
	require.Error(t, err)

	require.NoError(t, s.SaveFace(context.Background(), frame(t), facematch.BBox{0, 0, 10, 10}, database.Identity{}, nil))
}

func TestRenameRemoveLatest(t *testing.T) {
	s := newTestStore(t, Options{Padding: 5, DedupeDistance: -1})
	f := frame(t)
	unknown := database.Unknown(3)
	alice := database.Known("Alice")

	require.NoError(t, s.SaveFace(context.Background(), f, facematch.BBox{10, 10, 30, 30}, unknown, nil))
	require.NoError(t, s.SaveFace(context.Background(), f, facematch.BBox{40, 40, 60, 60}, unknown, nil))

	latest, ok := s.Latest(unknown)
	require.True(t, ok)
	require.Contains(t, latest, "20240501_120002.000_")

	require.NoError(t, s.Rename(unknown, alice))
	_, ok = s.Latest(unknown)
	require.False(t, ok)
	require.Len(t, crops(t, filepath.Join(s.opts.Dir, "known", "Alice")), 2)

	require.NoError(t, s.Remove(alice))
	_, ok = s.Latest(alice)
	require.False(t, ok)

	require.NoError(t, s.Rename(database.Unknown(99), alice))
}

func TestDirName(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Alice", "Alice"},
		{"Jan Novák", "Jan_Novak"},
		{"../etc", "__etc"},
		{"a/b", "ab"},
		{"///", "_"},
	}

	for _, tt := range tests {
		if got := dirName(tt.label); got != tt.want {
			t.Errorf("dirName(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		hash1    uint64
		hash2    uint64
		expected int
	}{
		{"identical", 0x0, 0x0, 0},
		{"completely different", 0xFFFFFFFFFFFFFFFF, 0x0, 64},
		{"four bits different", 0xF, 0x0, 4},
		{"alternating", 0xAAAAAAAAAAAAAAAA, 0x5555555555555555, 64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HammingDistance(tc.hash1, tc.hash2); got != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d", tc.hash1, tc.hash2, got, tc.expected)
			}
		})
	}
}

func TestDHashStable(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(frame(t)))
	require.NoError(t, err)
	require.Equal(t, DHash(img), DHash(img))

	flat := image.NewRGBA(image.Rect(0, 0, 20, 20))
	require.Equal(t, uint64(0), DHash(flat))
}

func TestRenameIntoSameDirectoryKeepsCrops(t *testing.T) {
	s := newTestStore(t, Options{DedupeDistance: -1})
	jiri := database.Known("Jiří")
	require.NoError(t, s.SaveFace(context.Background(), frame(t), facematch.BBox{10, 10, 30, 30}, jiri, nil))

	require.NoError(t, s.Rename(jiri, jiri))
	require.NoError(t, s.Rename(jiri, database.Known("Jiri")))

	_, ok := s.Latest(jiri)
	require.True(t, ok)
	_, ok = s.Latest(database.Known("Jiri"))
	require.True(t, ok)
}
