package tracking

import (
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

// Table holds live tracks in creation order.
type Table struct {
	strategy  facematch.Strategy
	threshold float64

	tracks  []*Track
	claimed []bool // parallel to tracks, reset by BeginFrame
}

// NewTable creates an empty table. Detections are associated with tracks
// whose IoU is strictly above threshold.
func NewTable(strategy facematch.Strategy, threshold float64) *Table {
	return &Table{strategy: strategy, threshold: threshold}
}

// Len returns the number of live tracks.
func (t *Table) Len() int {
	return len(t.tracks)
}

// Tracks returns the live tracks in creation order.
func (t *Table) Tracks() []*Track {
	return t.tracks
}

// Expire drops every track idle for at least grace and returns them. It must
// be called before BeginFrame.
func (t *Table) Expire(now time.Time, grace time.Duration) []*Track {
	var expired []*Track
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if now.Sub(tr.LastSeen) >= grace {
			expired = append(expired, tr)
			continue
		}
		kept = append(kept, tr)
	}
	clear(t.tracks[len(kept):])
	t.tracks = kept
	t.claimed = nil
	return expired
}

// BeginFrame forgets which tracks were matched in the previous frame.
func (t *Table) BeginFrame() {
	t.claimed = make([]bool, len(t.tracks))
}

// Match returns the track a detection at bbox belongs to, or nil. A matched
// track counts as claimed for the rest of the frame.
func (t *Table) Match(bbox facematch.BBox) *Track {
	boxes := make([]facematch.BBox, len(t.tracks))
	for i, tr := range t.tracks {
		boxes[i] = tr.BBox
	}

	i := facematch.Match(t.strategy, bbox, boxes, t.threshold, t.claimed)
	if i < 0 {
		return nil
	}
	t.claim(i)
	return t.tracks[i]
}

// Add starts a new track for det. New tracks are claimed for the current
// frame.
func (t *Table) Add(det facematch.Detection, now time.Time) *Track {
	tr := &Track{
		ID:        uuid.New(),
		BBox:      det.BBox,
		Embedding: det.Embedding,
		LastSeen:  now,
	}
	t.tracks = append(t.tracks, tr)
	t.claim(len(t.tracks) - 1)
	return tr
}

// Unclaimed returns the tracks not matched or created in the current frame.
func (t *Table) Unclaimed() []*Track {
	var out []*Track
	for i, tr := range t.tracks {
		if i < len(t.claimed) && t.claimed[i] {
			continue
		}
		out = append(out, tr)
	}
	return out
}

func (t *Table) claim(i int) {
	for len(t.claimed) <= i {
		t.claimed = append(t.claimed, false)
	}
	t.claimed[i] = true
}
