package thumbnail

import (
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

// DHash computes a 64-bit difference hash of img.
func DHash(img image.Image) uint64 {
	// 9 columns give 8 horizontal differences per row.
	small := image.NewRGBA(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Over, nil)

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if luma(small, x, y) > luma(small, x+1, y) {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// luma is the ITU-R BT.601 brightness of one pixel.
func luma(img *image.RGBA, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

// HammingDistance counts the differing bits of two hashes.
func HammingDistance(hash1, hash2 uint64) int {
	return bits.OnesCount64(hash1 ^ hash2)
}
