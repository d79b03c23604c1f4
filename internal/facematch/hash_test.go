package facematch

import "testing"

func TestFaceHash(t *testing.T) {
	a := FaceHash([]float32{0.1, 0.2, 0.3})
	if len(a) != 10 {
		t.Errorf("FaceHash length = %d, want 10", len(a))
	}
	if b := FaceHash([]float32{0.1, 0.2, 0.3}); a != b {
		t.Errorf("FaceHash is not stable: %q vs %q", a, b)
	}
	if c := FaceHash([]float32{0.1, 0.2, 0.31}); a == c {
		t.Errorf("FaceHash collided for different embeddings: %q", a)
	}
	if got := FaceHash(nil); len(got) != 10 {
		t.Errorf("FaceHash(nil) = %q, want 10 characters", got)
	}
}
