package facematch

// MatchFirst returns the index of the first box whose IoU with bbox is
// strictly above threshold, or -1. Boxes are scanned in order and may be
// matched by several detections in the same frame.
func MatchFirst(bbox BBox, boxes []BBox, threshold float64) int {
	for i, b := range boxes {
		if ComputeIoU(bbox, b) > threshold {
			return i
		}
	}
	return -1
}

// MatchBest returns the index of the unclaimed box with the highest IoU
// strictly above threshold, or -1. claimed may be nil. Ties keep the earlier
// box.
func MatchBest(bbox BBox, boxes []BBox, threshold float64, claimed []bool) int {
	best, bestIoU := -1, threshold
	for i, b := range boxes {
		if i < len(claimed) && claimed[i] {
			continue
		}
		if iou := ComputeIoU(bbox, b); iou > bestIoU {
			best, bestIoU = i, iou
		}
	}
	return best
}

// Match dispatches to MatchFirst or MatchBest.
func Match(strategy Strategy, bbox BBox, boxes []BBox, threshold float64, claimed []bool) int {
	if strategy == StrategyBest {
		return MatchBest(bbox, boxes, threshold, claimed)
	}
	return MatchFirst(bbox, boxes, threshold)
}
