package cmd

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

func useTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = config.Default()
	cfg.Store.Dim = 4
	cfg.Store.DataDir = filepath.Join(t.TempDir(), "index")
	cfg.Thumbnails.Dir = filepath.Join(t.TempDir(), "faces")
	t.Cleanup(func() { cfg = prev })
}

func TestOpenIndexWhileWatcherRuns(t *testing.T) {
	useTestConfig(t)

	watcher, err := openIndex(false)
	require.NoError(t, err)
	defer closeIndex(watcher)
	_, err = watcher.Enroll("Alice", [][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)

	_, err = openIndex(false)
	require.ErrorIs(t, err, database.ErrIndexLocked)
	require.True(t, strings.Contains(err.Error(), "/api/v1/identities"), err.Error())

	viewer, err := openIndex(true)
	require.NoError(t, err)
	defer closeIndex(viewer)
	require.Equal(t, 1, viewer.Len())
}

func TestListIdentitiesShowsLatestFace(t *testing.T) {
	useTestConfig(t)
	cfg.Thumbnails.Enabled = true

	idx := database.NewIndex(database.IndexOptions{Dim: 4})
	_, err := idx.Enroll("Alice", [][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)
	bob, err := idx.PromoteUnknown([]float32{0, 1, 0, 0})
	require.NoError(t, err)

	var frame bytes.Buffer
	require.NoError(t, jpeg.Encode(&frame, image.NewRGBA(image.Rect(0, 0, 64, 64)), nil))
	crops := newFaceStore()
	require.NotNil(t, crops)
	require.NoError(t, crops.SaveFace(context.Background(), frame.Bytes(), facematch.BBox{8, 8, 40, 40}, bob, nil))

	out := listIdentities(idx, crops)
	require.Len(t, out, 2)
	require.Equal(t, identityOutput{Label: "Alice", Kind: "known", Faces: 1}, out[0])
	require.Equal(t, "Unknown1", out[1].Label)
	require.True(t, strings.HasPrefix(out[1].LatestFace, cfg.Thumbnails.Dir), out[1].LatestFace)

	require.Equal(t, out[0], listIdentities(idx, nil)[0])
	require.Empty(t, listIdentities(idx, nil)[1].LatestFace)
}
