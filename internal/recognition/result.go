package recognition

import (
	"github.com/google/uuid"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

// IdentifyingLabel is displayed for faces without an identity yet.
const IdentifyingLabel = "Identifying..."

// State of a face in a frame
type State uint8

const (
	StateIdentifying State = iota // no identity yet
	StateRecognized               // carries a Known or Unknown identity
)

func (s State) String() string {
	if s == StateRecognized {
		return "recognized"
	}
	return "identifying"
}

// Result describes one face in a processed frame.
type Result struct {
	TrackID  uuid.UUID // zero for single-shot recognition
	BBox     facematch.BBox
	Identity *database.Identity // nil while identifying
	Score    float64
	State    State
	Tracking bool // not detected this frame, reported from the track
}

// Label is the display label, e.g. "Alice", "Unknown3 (tracking)" or
// "Identifying...".
func (r Result) Label() string {
	label := IdentifyingLabel
	if r.Identity != nil {
		label = r.Identity.String()
	}
	if r.Tracking {
		label += " (tracking)"
	}
	return label
}
