package facematch

import "image"

// BBox is a face bounding box [x1, y1, x2, y2] in pixel coordinates.
type BBox [4]float64

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b[3] - b[1] }

// Area returns Width * Height, or 0 for degenerate boxes.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Scale multiplies every coordinate by f.
// Used to map boxes detected on a downscaled frame back to the source frame.
func (b BBox) Scale(f float64) BBox {
	return BBox{b[0] * f, b[1] * f, b[2] * f, b[3] * f}
}

// Rect expands the box by padding pixels on every side and clips it to
// bounds.
func (b BBox) Rect(padding int, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(b[0])-padding,
		int(b[1])-padding,
		int(b[2])+padding,
		int(b[3])+padding,
	)
	return r.Intersect(bounds)
}

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 BBox) float64 {
	// Calculate intersection.
	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	// Calculate union.
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}
