package database

import (
	"errors"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize([]float32{3, 4})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := []float32{0.6, 0.8}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 0.0001 {
			t.Errorf("Normalize([3 4])[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNormalizeZero(t *testing.T) {
	for _, v := range [][]float32{nil, {}, {0, 0, 0}} {
		if _, err := Normalize(v); !errors.Is(err, ErrZeroEmbedding) {
			t.Errorf("Normalize(%v) error = %v, want ErrZeroEmbedding", v, err)
		}
	}
}

func TestNormalizeDoesNotModifyInput(t *testing.T) {
	v := []float32{3, 4}
	if _, err := Normalize(v); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("Normalize modified input: %v", v)
	}
}

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"parallel", []float32{1, 0}, []float32{1, 0}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Dot(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("Dot(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled copy", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1, 0, 0}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}
