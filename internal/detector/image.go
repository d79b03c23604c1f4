package detector

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecodeFailure is returned for bytes that are not a supported image.
var ErrDecodeFailure = errors.New("image could not be decoded")

// CheckImage verifies that data is a decodable image with a non-empty size.
// Only the header is parsed.
func CheckImage(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", ErrDecodeFailure, cfg.Width, cfg.Height)
	}
	return nil
}

// Decode decodes a full image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	return img, nil
}

// ResizeImage scales an image by factor and returns it JPEG-encoded.
func ResizeImage(data []byte, factor float64) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	newWidth := max(1, int(float64(bounds.Dx())*factor))
	newHeight := max(1, int(float64(bounds.Dy())*factor))

	// Create resized image.
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	// Encode as JPEG.
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}
