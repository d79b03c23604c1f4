package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/sightings"
	"github.com/kozaktomas/facewatch/internal/tracking"
)

// Session follows the faces of one camera. It must be used from a single
// goroutine; sessions of different cameras share the Engine and its index.
type Session struct {
	engine *Engine
	camera string
	tracks *tracking.Table
}

// NewSession starts an empty track table for camera.
func (e *Engine) NewSession(camera string) *Session {
	return &Session{
		engine: e,
		camera: camera,
		tracks: tracking.NewTable(e.strategy, e.cfg.IOUMatch),
	}
}

// Camera returns the camera id.
func (s *Session) Camera() string {
	return s.camera
}

// Tracks returns the live tracks.
func (s *Session) Tracks() []*tracking.Track {
	return s.tracks.Tracks()
}

// ProcessFrame detects the faces of an encoded frame and resolves them.
// A detector error leaves the track table untouched.
func (s *Session) ProcessFrame(ctx context.Context, frame []byte) ([]Result, error) {
	start := time.Now()
	dets, err := s.engine.detector.Detect(ctx, frame)
	if err != nil {
		s.engine.metrics.FrameFailed(s.camera)
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}

	results := s.Observe(ctx, frame, s.engine.now(), dets)
	s.engine.metrics.ObserveFrame(s.camera, len(dets), time.Since(start))
	return results, nil
}

// Observe runs one decision pass over the detections of a frame taken at
// now. frame is only used for face crops and may be nil.
//
// Results list the detections in order, followed by live tracks that were
// not seen in this frame.
func (s *Session) Observe(ctx context.Context, frame []byte, now time.Time, dets []facematch.Detection) []Result {
	cfg := s.engine.cfg

	expired := s.tracks.Expire(now, cfg.GracePeriod)
	s.tracks.BeginFrame()

	results := make([]Result, 0, len(dets)+s.tracks.Len())
	for _, det := range dets {
		m := s.engine.index.Search(det.Embedding)
		if tr := s.tracks.Match(det.BBox); tr != nil {
			s.updateTrack(ctx, frame, now, tr, det, m)
			results = append(results, trackResult(tr, false))
			continue
		}
		tr := s.newTrack(ctx, frame, now, det, m)
		results = append(results, trackResult(tr, false))
	}

	for _, tr := range s.tracks.Unclaimed() {
		results = append(results, trackResult(tr, true))
	}

	s.engine.metrics.Tracks(s.camera, s.tracks.Len(), len(expired))
	return results
}

// updateTrack applies a detection to a track it overlaps.
func (s *Session) updateTrack(ctx context.Context, frame []byte, now time.Time, tr *tracking.Track, det facematch.Detection, m database.Match) {
	cfg := s.engine.cfg
	prev := tr.Identity
	tr.Observe(det, now)

	if m.Found && m.Similarity > cfg.RecognizeExisting {
		tr.SetIdentity(m.Identity)
		tr.UnrecognizedStreak = 0
		tr.Score = m.Similarity
		s.recognized(ctx, frame, now, tr, det)
		return
	}

	if prev != nil {
		// Still tracked under its earlier label.
		s.saveFace(ctx, frame, det, *prev)
	}

	if m.Similarity < cfg.Reject {
		tr.UnrecognizedStreak++
	}
	if tr.UnrecognizedStreak < cfg.UnknownPromoteStreak || (tr.Identity != nil && tr.Identity.IsUnknown()) {
		return
	}

	id, err := s.engine.index.PromoteUnknown(det.Embedding)
	switch {
	case errors.Is(err, database.ErrPersistence):
		s.engine.afterSave(err)
	case err != nil:
		log.Error().Err(err).Str("camera", s.camera).Msg("Failed to promote unknown face")
		return
	default:
		s.engine.afterSave(nil)
	}

	tr.SetIdentity(id)
	tr.Score = 0
	s.engine.metrics.Promoted(s.camera)
	s.record(now, id, det, 0)
	log.Info().
		Str("camera", s.camera).
		Str("identity", id.String()).
		Int("streak", tr.UnrecognizedStreak).
		Msg("Promoted unrecognized face to unknown identity")
}

// newTrack starts a track for a detection that overlaps none.
func (s *Session) newTrack(ctx context.Context, frame []byte, now time.Time, det facematch.Detection, m database.Match) *tracking.Track {
	tr := s.tracks.Add(det, now)
	if m.Found && m.Similarity > s.engine.cfg.RecognizeNew {
		tr.SetIdentity(m.Identity)
		tr.Score = m.Similarity
		s.recognized(ctx, frame, now, tr, det)
		return tr
	}
	tr.UnrecognizedStreak = 1
	tr.Score = 0
	return tr
}

// recognized handles a confident match of a track.
func (s *Session) recognized(ctx context.Context, frame []byte, now time.Time, tr *tracking.Track, det facematch.Detection) {
	id := *tr.Identity
	s.engine.metrics.Recognized(s.camera, id.Kind.String())
	s.record(now, id, det, tr.Score)
	s.saveFace(ctx, frame, det, id)
}

func (s *Session) record(now time.Time, id database.Identity, det facematch.Detection, score float64) {
	if s.engine.sightings == nil {
		return
	}
	s.engine.sightings.Record(sightings.Sighting{
		Identity:  id,
		Camera:    s.camera,
		At:        now,
		BBox:      det.BBox,
		Score:     score,
		Embedding: det.Embedding,
	})
}

func (s *Session) saveFace(ctx context.Context, frame []byte, det facematch.Detection, id database.Identity) {
	if s.engine.faces == nil || frame == nil {
		return
	}
	if err := s.engine.faces.SaveFace(ctx, frame, det.BBox, id, det.Embedding); err != nil {
		log.Warn().Err(err).Str("camera", s.camera).Str("identity", id.String()).Msg("Failed to save face crop")
	}
}

func trackResult(tr *tracking.Track, stale bool) Result {
	r := Result{
		TrackID:  tr.ID,
		BBox:     tr.BBox,
		Score:    tr.Score,
		State:    StateIdentifying,
		Tracking: stale,
	}
	if tr.Identity != nil {
		id := *tr.Identity
		r.Identity = &id
		r.State = StateRecognized
	}
	return r
}
