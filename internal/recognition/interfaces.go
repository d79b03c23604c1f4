package recognition

import (
	"context"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/sightings"
)

// Detector turns an encoded frame into face boxes with embeddings. An image
// without faces yields an empty slice.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]facematch.Detection, error)
}

// FaceSink stores a face crop for an identity.
type FaceSink interface {
	SaveFace(ctx context.Context, frame []byte, bbox facematch.BBox, id database.Identity, embedding []float32) error
}

// SightingRecorder logs confident observations.
type SightingRecorder interface {
	Record(s sightings.Sighting)
}

// FaceStore is a FaceSink that also follows identity renames and deletes.
type FaceStore interface {
	FaceSink
	Rename(from, to database.Identity) error
	Remove(id database.Identity) error
}
