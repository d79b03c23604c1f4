package detector

import (
	"context"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

// Detector finds faces in an encoded image.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]facematch.Detection, error)
}

// Scaled runs an inner detector on a downscaled copy of each image and maps
// the boxes back to the source resolution.
type Scaled struct {
	Inner  Detector
	Factor float64 // in (0, 1]; 1 passes images through unchanged
}

// Detect implements Detector.
func (s Scaled) Detect(ctx context.Context, imageData []byte) ([]facematch.Detection, error) {
	if s.Factor <= 0 || s.Factor >= 1 {
		return s.Inner.Detect(ctx, imageData)
	}

	small, err := ResizeImage(imageData, s.Factor)
	if err != nil {
		return nil, err
	}

	dets, err := s.Inner.Detect(ctx, small)
	if err != nil {
		return nil, err
	}
	for i := range dets {
		dets[i].BBox = dets[i].BBox.Scale(1 / s.Factor)
	}
	return dets, nil
}
