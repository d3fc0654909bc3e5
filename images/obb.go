// Package images - Oriented bounding box geometry.
package images

import "github.com/chewxy/math32"

// OBB is an oriented bounding box in the model's square normalized space.
//
// CenterX and CenterY are in [0,1]. Width and Height are normalized extents along
// the box's own axes, and Angle is the counter-clockwise rotation in radians.
type OBB struct {
	CenterX float32 `json:"center_x"`
	CenterY float32 `json:"center_y"`
	Width   float32 `json:"width"`
	Height  float32 `json:"height"`
	Angle   float32 `json:"angle"`
}

// NormalizedArea returns Width*Height in normalized units (fractions of the model input).
func (o OBB) NormalizedArea() float32 {
	return o.Width * o.Height
}

// PixelArea returns the area, in square pixels, of the polygon produced by
// ToPolygonPixelSpace for an image of the given size.
//
// For axis-aligned boxes or square images this equals NormalizedArea()*width*height.
// Rotated boxes on non-square images get their half extents corrected independently,
// so their pixel area differs from that product.
//
// Arguments:
//   - width: The image width in pixels.
//   - height: The image height in pixels.
//
// Returns:
//   - float32: The area in square pixels.
func (o OBB) PixelArea(width, height int) float32 {
	halfWidth, halfHeight, _ := o.pixelExtents(float32(width), float32(height))
	return 4 * halfWidth * halfHeight
}

// ToPolygonModelSpace rotates the four half-extent corners about the center.
//
// No scaling is applied, so the returned corners stay in normalized model space.
// For Angle == 0 the corners are, in order, top-left, top-right, bottom-right and
// bottom-left.
//
// Returns:
//   - Polygon: The four corners in normalized coordinates.
func (o OBB) ToPolygonModelSpace() Polygon {
	return rotateCorners(o.Width/2, o.Height/2, o.Angle, o.CenterX, o.CenterY)
}

// ToPolygonPixelSpace projects the box onto a (possibly non-square) image.
//
// The model predicts in a square normalized space, while the image may be stretched
// differently along each axis. Rotating first and scaling afterwards would shear the
// rectangle, so the angle and both half extents are corrected for the anisotropy:
//
//	adjusted   = atan2(H·sinθ, W·cosθ)
//	halfWidth  = (w/2)·√((cosθ·W)² + (sinθ·H)²)
//	halfHeight = (h/2)·√((sinθ·W)² + (cosθ·H)²)
//
// The corners are then rotated by the adjusted angle and translated to (cx·W, cy·H).
// When W == H this is plain uniform scaling of ToPolygonModelSpace.
//
// Arguments:
//   - width: The image width in pixels.
//   - height: The image height in pixels.
//
// Returns:
//   - Polygon: The four corners in pixel coordinates.
func (o OBB) ToPolygonPixelSpace(width, height int) Polygon {
	w, h := float32(width), float32(height)
	halfWidth, halfHeight, adjusted := o.pixelExtents(w, h)
	return rotateCorners(halfWidth, halfHeight, adjusted, o.CenterX*w, o.CenterY*h)
}

// pixelExtents returns the corrected half extents and angle for a w×h image.
func (o OBB) pixelExtents(w, h float32) (halfWidth, halfHeight, angle float32) {
	sin, cos := math32.Sincos(o.Angle)
	angle = math32.Atan2(h*sin, w*cos)
	halfWidth = (o.Width / 2) * math32.Hypot(cos*w, sin*h)
	halfHeight = (o.Height / 2) * math32.Hypot(sin*w, cos*h)
	return halfWidth, halfHeight, angle
}

func rotateCorners(halfWidth, halfHeight, angle, cx, cy float32) Polygon {
	sin, cos := math32.Sincos(angle)
	corners := Polygon{
		{X: -halfWidth, Y: -halfHeight},
		{X: halfWidth, Y: -halfHeight},
		{X: halfWidth, Y: halfHeight},
		{X: -halfWidth, Y: halfHeight},
	}
	for i, c := range corners {
		corners[i] = Point{
			X: cx + c.X*cos - c.Y*sin,
			Y: cy + c.X*sin + c.Y*cos,
		}
	}
	return corners
}
