package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/detector"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/recognition"
	"github.com/kozaktomas/facewatch/internal/sightings"
	"github.com/kozaktomas/facewatch/internal/thumbnail"
)

// app is everything a command needs to talk to the face index.
type app struct {
	index     *database.Index
	engine    *recognition.Engine
	faces     *thumbnail.Store // nil when thumbnails are disabled
	sightings *sightings.Log   // nil when sightings are disabled
}

// openIndex loads the persisted face index. A writable index locks the data
// directory until it is closed.
func openIndex(readOnly bool) (*database.Index, error) {
	idx, err := database.OpenIndex(database.IndexOptions{
		Dim:             cfg.Store.Dim,
		DataDir:         cfg.Store.DataDir,
		MergeSimilarity: cfg.Recognition.UnknownMergeSimilarity,
		ReadOnly:        readOnly,
	})
	if errors.Is(err, database.ErrIndexLocked) {
		return nil, fmt.Errorf("%w (stop the watcher or use its /api/v1/identities endpoints)", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open face index in %s: %w", cfg.Store.DataDir, err)
	}
	return idx, nil
}

// closeIndex releases the index and logs what could not be saved.
func closeIndex(idx *database.Index) {
	if err := idx.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close face index")
	}
}

// Close flushes sightings and releases the face index.
func (a *app) Close() {
	if a.sightings != nil {
		if err := a.sightings.Flush(); err != nil {
			log.Error().Err(err).Msg("Failed to flush sightings")
		}
	}
	closeIndex(a.index)
}

// newApp wires the index, detector, face crops and sightings into an engine.
// scaled enables detection on downsized frames.
func newApp(m *metrics.Metrics, scaled bool) (*app, error) {
	idx, err := openIndex(false)
	if err != nil {
		return nil, err
	}

	var det recognition.Detector = detector.NewClient(cfg.Detector.URL, cfg.Detector.Timeout, cfg.Detector.MinFaceSize)
	if scaled {
		det = detector.Scaled{Inner: det, Factor: cfg.Stream.Scale}
	}

	a := &app{index: idx}
	opts := []recognition.Option{recognition.WithMetrics(m)}

	if a.faces = newFaceStore(); a.faces != nil {
		opts = append(opts, recognition.WithFaceSink(a.faces))
	}

	if cfg.Sightings.Enabled {
		a.sightings = sightings.New(cfg.Sightings.Dir, cfg.Sightings.MaxPerIdentity)
		if err := a.sightings.Load(); err != nil {
			closeIndex(idx)
			return nil, fmt.Errorf("failed to load sightings: %w", err)
		}
		opts = append(opts, recognition.WithSightings(a.sightings))
	}

	a.engine, err = recognition.New(cfg.Recognition, idx, det, opts...)
	if err != nil {
		closeIndex(idx)
		return nil, err
	}
	return a, nil
}

// newFaceStore returns the configured face crop store, or nil when
// thumbnails are disabled.
func newFaceStore() *thumbnail.Store {
	if !cfg.Thumbnails.Enabled {
		return nil
	}
	return thumbnail.New(thumbnail.Options{
		Dir:            cfg.Thumbnails.Dir,
		Padding:        cfg.Thumbnails.Padding,
		UpdateInterval: cfg.Thumbnails.UpdateInterval,
		Quality:        cfg.Thumbnails.Quality,
		DedupeDistance: cfg.Thumbnails.DedupeDistance,
	})
}

// confirm asks a yes/no question on stdin.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
