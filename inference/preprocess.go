// Package inference - Image to tensor preparation.
package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ErrInputTooSmall is returned when the destination buffer cannot hold the prepared image.
var ErrInputTooSmall = errors.New("input buffer too small")

// PrepareInput resizes img to a size x size square and writes it into dst as planar
// RGB floats in [0,1], laid out as [3, size, size].
//
// Arguments:
//   - img: The image to prepare.
//   - dst: The destination buffer, typically the backing slice of the model's input tensor.
//   - size: The model's square input edge in pixels.
//
// Returns:
//   - error: ErrInputTooSmall if dst holds fewer than 3*size*size floats.
func PrepareInput(img image.Image, dst []float32, size int) error {
	channelSize := size * size
	if size <= 0 || len(dst) < channelSize*3 {
		return errors.Wrapf(ErrInputTooSmall, "%d floats for a %dx%d input", len(dst), size, size)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	if b := img.Bounds(); b.Dx() != size || b.Dy() != size {
		img = resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	}
	origin := img.Bounds().Min

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(origin.X+x, origin.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
