package facematch

import (
	"image"
	"math"
	"testing"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		bbox1    BBox
		bbox2    BBox
		expected float64
	}{
		{
			name:     "identical boxes",
			bbox1:    BBox{0, 0, 10, 10},
			bbox2:    BBox{0, 0, 10, 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			bbox1:    BBox{0, 0, 10, 10},
			bbox2:    BBox{20, 20, 30, 30},
			expected: 0.0,
		},
		{
			name:     "touching edges",
			bbox1:    BBox{0, 0, 10, 10},
			bbox2:    BBox{10, 0, 20, 10},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			bbox1:    BBox{0, 0, 10, 10},
			bbox2:    BBox{5, 5, 15, 15},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			bbox1:    BBox{0, 0, 20, 20},
			bbox2:    BBox{5, 5, 15, 15},
			expected: 100.0 / 400.0, // intersection=100, union=400 (larger box)
		},
		{
			name:     "zero boxes",
			bbox1:    BBox{},
			bbox2:    BBox{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.bbox1, tt.bbox2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.bbox1, tt.bbox2, result, tt.expected)
			}
			if reverse := ComputeIoU(tt.bbox2, tt.bbox1); math.Abs(reverse-result) > 0.0001 {
				t.Errorf("ComputeIoU is not symmetric: %v vs %v", result, reverse)
			}
		})
	}
}

func TestBBoxArea(t *testing.T) {
	tests := []struct {
		bbox     BBox
		expected float64
	}{
		{BBox{0, 0, 10, 20}, 200},
		{BBox{5, 5, 5, 10}, 0},
		{BBox{10, 10, 0, 0}, 0},
	}

	for _, tt := range tests {
		if got := tt.bbox.Area(); got != tt.expected {
			t.Errorf("%v.Area() = %v, want %v", tt.bbox, got, tt.expected)
		}
	}
}

func TestBBoxScale(t *testing.T) {
	got := BBox{10, 20, 30, 40}.Scale(2)
	want := BBox{20, 40, 60, 80}
	if got != want {
		t.Errorf("Scale(2) = %v, want %v", got, want)
	}
}

func TestBBoxRect(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	tests := []struct {
		name     string
		bbox     BBox
		padding  int
		expected image.Rectangle
	}{
		{"padded inside", BBox{30, 30, 50, 60}, 20, image.Rect(10, 10, 70, 80)},
		{"clipped at origin", BBox{5, 5, 20, 20}, 20, image.Rect(0, 0, 40, 40)},
		{"clipped at far edge", BBox{90, 90, 99, 99}, 20, image.Rect(70, 70, 100, 100)},
		{"outside", BBox{200, 200, 210, 210}, 0, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.bbox.Rect(tt.padding, bounds)
			if !got.Eq(tt.expected) {
				t.Errorf("%v.Rect(%d) = %v, want %v", tt.bbox, tt.padding, got, tt.expected)
			}
		})
	}
}
