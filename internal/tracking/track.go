// Package tracking keeps the per-stream table of faces followed across
// frames. A Table is owned by a single goroutine.
package tracking

import (
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

// Track is a face followed across frames. It is never persisted.
type Track struct {
	ID                 uuid.UUID
	BBox               facematch.BBox
	Identity           *database.Identity // nil while identifying
	Embedding          []float32
	UnrecognizedStreak int
	LastSeen           time.Time
	Score              float64
}

// Recognized reports whether the track carries an identity.
func (t *Track) Recognized() bool {
	return t.Identity != nil
}

// Label returns the identity label or "" while identifying.
func (t *Track) Label() string {
	if t.Identity == nil {
		return ""
	}
	return t.Identity.String()
}

// Observe moves the track to a new detection.
func (t *Track) Observe(det facematch.Detection, now time.Time) {
	t.BBox = det.BBox
	t.Embedding = det.Embedding
	t.LastSeen = now
}

// SetIdentity labels the track. The identity is copied.
func (t *Track) SetIdentity(id database.Identity) {
	t.Identity = &id
}
