// Package recognition resolves the identity of faces detected in camera
// frames and keeps the shared face index up to date.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/detector"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/metrics"
)

// Engine holds the decision thresholds and the collaborators shared by
// every camera session. It is safe for concurrent use; per-camera state
// lives in Session.
type Engine struct {
	cfg      config.RecognitionConfig
	strategy facematch.Strategy
	index    *database.Index
	detector Detector

	faces     FaceSink
	sightings SightingRecorder
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithFaceSink sets where face crops are written.
func WithFaceSink(sink FaceSink) Option {
	return func(e *Engine) { e.faces = sink }
}

// WithSightings sets the sighting log.
func WithSightings(rec SightingRecorder) Option {
	return func(e *Engine) { e.sightings = rec }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New validates cfg and creates an Engine.
func New(cfg config.RecognitionConfig, index *database.Index, det Detector, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recognition config: %w", err)
	}
	strategy, err := facematch.ParseStrategy(cfg.Association)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		strategy: strategy,
		index:    index,
		detector: det,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics.SetIndexRows(index.Len())
	return e, nil
}

// Index returns the shared face index.
func (e *Engine) Index() *database.Index {
	return e.index
}

// EnrollResult reports the outcome of an enrollment
type EnrollResult struct {
	Identity database.Identity
	Added    int                 // embeddings stored
	Skipped  int                 // images without a face
	Merged   []database.Identity // Unknown identities absorbed
	// Outliers are positions in the enrolled embeddings that look unlike the
	// rest of the batch. They are still stored.
	Outliers []int
}

// FaceEmbedding returns the embedding of the largest face in an image.
// It returns an error wrapping detector.ErrDecodeFailure for undecodable
// bytes and ErrNoFaceDetected when the image has no face.
func (e *Engine) FaceEmbedding(ctx context.Context, image []byte) ([]float32, error) {
	if err := detector.CheckImage(image); err != nil {
		return nil, err
	}
	dets, err := e.detector.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}
	if len(dets) == 0 {
		return nil, ErrNoFaceDetected
	}

	largest := dets[0]
	for _, d := range dets[1:] {
		if d.BBox.Area() > largest.BBox.Area() {
			largest = d
		}
	}
	return largest.Embedding, nil
}

// Enroll stores the largest face of every image under label. Images without
// a face are skipped; an undecodable image aborts the enrollment before the
// index is touched.
func (e *Engine) Enroll(ctx context.Context, label string, images [][]byte) (EnrollResult, error) {
	if err := database.ValidateKnownName(label); err != nil {
		return EnrollResult{}, err
	}

	var embeddings [][]float32
	skipped := 0
	for i, img := range images {
		emb, err := e.FaceEmbedding(ctx, img)
		if errors.Is(err, ErrNoFaceDetected) {
			skipped++
			continue
		}
		if err != nil {
			return EnrollResult{}, fmt.Errorf("image %d: %w", i+1, err)
		}
		embeddings = append(embeddings, emb)
	}

	res, err := e.EnrollEmbeddings(label, embeddings)
	res.Skipped = skipped
	return res, err
}

// EnrollEmbeddings stores already computed embeddings under label.
//
// When only the save fails, the result is valid and the error wraps
// database.ErrPersistence.
func (e *Engine) EnrollEmbeddings(label string, embeddings [][]float32) (EnrollResult, error) {
	if len(embeddings) == 0 {
		return EnrollResult{}, ErrNoFaceDetected
	}

	out, err := e.index.Enroll(label, embeddings)
	if err != nil && !errors.Is(err, database.ErrPersistence) {
		return EnrollResult{}, err
	}
	e.afterSave(err)

	res := EnrollResult{
		Identity: out.Identity,
		Added:    out.Added,
		Merged:   out.Merged,
		Outliers: database.Outliers(embeddings, e.cfg.RecognizeNew),
	}
	for _, i := range res.Outliers {
		log.Warn().
			Str("identity", out.Identity.String()).
			Int("embedding", i).
			Msg("Enrolled face looks unlike the others, check the photo")
	}
	e.metrics.Merged(len(out.Merged))
	for _, merged := range out.Merged {
		log.Info().
			Str("identity", out.Identity.String()).
			Str("merged", merged.String()).
			Msg("Merged unknown identity into enrolled face")
		if store, ok := e.faces.(FaceStore); ok {
			if ferr := store.Rename(merged, out.Identity); ferr != nil {
				log.Warn().Err(ferr).Str("merged", merged.String()).Msg("Failed to move face crops")
			}
		}
	}
	return res, err
}

// Rename relabels an identity, typically giving an Unknown a name.
func (e *Engine) Rename(oldLabel, newName string) error {
	err := e.index.Rename(oldLabel, newName)
	if err != nil && !errors.Is(err, database.ErrPersistence) {
		return err
	}
	e.afterSave(err)

	from, _ := database.ParseLabel(oldLabel)
	to := database.Known(newName)
	if store, ok := e.faces.(FaceStore); ok && from != to {
		if ferr := store.Rename(from, to); ferr != nil {
			log.Warn().Err(ferr).Str("from", oldLabel).Str("to", newName).Msg("Failed to move face crops")
		}
	}
	return err
}

// Delete removes an identity and returns how many embeddings it owned.
func (e *Engine) Delete(label string) (int, error) {
	removed, err := e.index.Delete(label)
	if err != nil && !errors.Is(err, database.ErrPersistence) {
		return 0, err
	}
	e.afterSave(err)

	if store, ok := e.faces.(FaceStore); ok {
		id, _ := database.ParseLabel(label)
		if ferr := store.Remove(id); ferr != nil {
			log.Warn().Err(ferr).Str("identity", label).Msg("Failed to remove face crops")
		}
	}
	return removed, err
}

// Recognize matches every face of a single image against the index without
// tracking or mutating anything.
func (e *Engine) Recognize(ctx context.Context, image []byte) ([]Result, error) {
	if err := detector.CheckImage(image); err != nil {
		return nil, err
	}
	dets, err := e.detector.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}

	results := make([]Result, 0, len(dets))
	for _, d := range dets {
		r := Result{BBox: d.BBox, State: StateIdentifying}
		if m := e.index.Search(d.Embedding); m.Found && m.Similarity > e.cfg.RecognizeNew {
			id := m.Identity
			r.Identity = &id
			r.Score = m.Similarity
			r.State = StateRecognized
		}
		results = append(results, r)
	}
	return results, nil
}

// Identities lists every identity in the index.
func (e *Engine) Identities() []database.IdentitySummary {
	return e.index.Identities()
}

// Stats summarizes the index.
func (e *Engine) Stats() database.Stats {
	return e.index.Stats()
}

// Flush retries a failed index save.
func (e *Engine) Flush() error {
	err := e.index.Flush()
	e.afterSave(err)
	return err
}

// afterSave logs a failed save and refreshes the size gauge.
func (e *Engine) afterSave(err error) {
	if err != nil {
		e.metrics.SaveFailed()
		log.Error().Err(err).Msg("Face index not saved, keeping changes in memory")
	}
	e.metrics.SetIndexRows(e.index.Len())
}
