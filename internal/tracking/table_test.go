package tracking

import (
	"testing"
	"time"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func det(x float64) facematch.Detection {
	return facematch.Detection{BBox: facematch.BBox{x, 0, x + 10, 10}}
}

func TestTableMatchGreedy(t *testing.T) {
	tbl := NewTable(facematch.StrategyGreedy, 0.5)
	tbl.BeginFrame()
	first := tbl.Add(det(0), t0)
	second := tbl.Add(det(100), t0)

	tbl.BeginFrame()
	if got := tbl.Match(det(1).BBox); got != first {
		t.Errorf("Match(near first) = %v, want first track", got)
	}
	// Greedy matching lets a second detection reuse the same track.
	if got := tbl.Match(det(1).BBox); got != first {
		t.Errorf("second Match(near first) = %v, want first track", got)
	}
	if got := tbl.Match(det(101).BBox); got != second {
		t.Errorf("Match(near second) = %v, want second track", got)
	}
	if got := tbl.Match(det(50).BBox); got != nil {
		t.Errorf("Match(far) = %v, want nil", got)
	}
}

func TestTableMatchBestClaims(t *testing.T) {
	tbl := NewTable(facematch.StrategyBest, 0.5)
	tbl.BeginFrame()
	first := tbl.Add(det(0), t0)

	tbl.BeginFrame()
	if got := tbl.Match(det(1).BBox); got != first {
		t.Fatalf("Match() = %v, want first track", got)
	}
	if got := tbl.Match(det(1).BBox); got != nil {
		t.Errorf("Match() on claimed track = %v, want nil", got)
	}
}

func TestTableUnclaimed(t *testing.T) {
	tbl := NewTable(facematch.StrategyGreedy, 0.5)
	tbl.BeginFrame()
	tbl.Add(det(0), t0)
	b := tbl.Add(det(100), t0)

	tbl.BeginFrame()
	tbl.Match(det(1).BBox)
	tbl.Add(det(200), t0)

	got := tbl.Unclaimed()
	if len(got) != 1 || got[0] != b {
		t.Errorf("Unclaimed() = %v, want only the second track", got)
	}
}

func TestTableExpire(t *testing.T) {
	grace := 15 * time.Second
	tbl := NewTable(facematch.StrategyGreedy, 0.5)
	tbl.BeginFrame()
	old := tbl.Add(det(0), t0)
	fresh := tbl.Add(det(100), t0.Add(5*time.Second))

	if expired := tbl.Expire(t0.Add(14900*time.Millisecond), grace); len(expired) != 0 {
		t.Errorf("Expire at 14.9s = %d tracks, want 0", len(expired))
	}

	expired := tbl.Expire(t0.Add(grace), grace)
	if len(expired) != 1 || expired[0] != old {
		t.Errorf("Expire at 15s = %v, want the old track", expired)
	}
	if tbl.Len() != 1 || tbl.Tracks()[0] != fresh {
		t.Errorf("Tracks() after expire = %v, want the fresh track", tbl.Tracks())
	}
}

func TestTrackLabel(t *testing.T) {
	tr := &Track{}
	if tr.Recognized() || tr.Label() != "" {
		t.Errorf("new track Recognized() = %v, Label() = %q", tr.Recognized(), tr.Label())
	}

	id := database.Unknown(3)
	tr.SetIdentity(id)
	id.Serial = 99
	if tr.Label() != "Unknown3" {
		t.Errorf("Label() = %q, want Unknown3", tr.Label())
	}
}
