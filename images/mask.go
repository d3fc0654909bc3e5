// Package images - Instance mask compositing.
package images

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// RenderMaskComposite flattens per-instance probability masks into one label image.
//
// Every pixel whose probability exceeds threshold in some instance is painted with
// a gray level identifying that instance (later instances win on overlap); all other
// pixels stay black. The composite is produced at mask resolution and then scaled
// to the original image size with nearest-neighbour sampling so instance levels are
// preserved.
//
// Arguments:
//   - masks: Probabilities indexed as [instance][row][col]. All instances share one shape.
//   - threshold: Minimum probability for a pixel to belong to an instance.
//   - size: The original image size to scale the composite to.
//
// Returns:
//   - image.Image: The composite, or nil when there is nothing to render.
func RenderMaskComposite(masks [][][]float32, threshold float32, size Size) image.Image {
	if len(masks) == 0 || len(masks[0]) == 0 || len(masks[0][0]) == 0 || size.Empty() {
		return nil
	}

	rows, cols := len(masks[0]), len(masks[0][0])
	composite := image.NewGray(image.Rect(0, 0, cols, rows))

	for i, instance := range masks {
		level := instanceLevel(i, len(masks))
		for y, row := range instance {
			for x, p := range row {
				if p > threshold {
					composite.SetGray(x, y, color.Gray{Y: level})
				}
			}
		}
	}

	if cols == size.Width && rows == size.Height {
		return composite
	}
	return resize.Resize(uint(size.Width), uint(size.Height), composite, resize.NearestNeighbor)
}

// instanceLevel spreads instance identifiers over the non-zero gray range.
func instanceLevel(i, n int) uint8 {
	return uint8(255 - (i*254)/n)
}
