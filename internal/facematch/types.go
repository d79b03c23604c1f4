// Package facematch provides the geometry and association rules that tie a
// detection in the current frame to a track from earlier frames.
package facematch

import "fmt"

// Detection is one face reported by the detector for a frame
type Detection struct {
	BBox      BBox
	Embedding []float32
	Score     float64 // detector confidence
}

// Strategy selects how a detection picks a track
type Strategy string

const (
	StrategyGreedy Strategy = "greedy" // First track in creation order above the threshold
	StrategyBest   Strategy = "best"   // Highest overlap among tracks not yet claimed this frame
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyGreedy, StrategyBest:
		return Strategy(s), nil
	case "":
		return StrategyGreedy, nil
	default:
		return "", fmt.Errorf("unknown association strategy %q", s)
	}
}
