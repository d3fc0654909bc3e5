// Package images - Geometry primitives shared by the decoders.
package images

import "github.com/chewxy/math32"

// Size is the pixel extent of an image.
type Size struct {
	// Width of the image in pixels.
	Width int `json:"width" yaml:"width"`
	// Height of the image in pixels.
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the size covers no pixels.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Point is a 2D coordinate in either normalized or pixel space.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Scale multiplies each axis independently.
func (p Point) Scale(sx, sy float32) Point {
	return Point{X: p.X * sx, Y: p.Y * sy}
}

// Rect is a lightweight axis-aligned bounding box.
type Rect struct {
	// X1,Y1 is the top-left corner; X2,Y2 the bottom-right corner.
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Canon returns the rectangle with corners ordered so that X1 <= X2 and Y1 <= Y2.
func (r Rect) Canon() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

// Clamp limits every coordinate of a normalized rectangle to the unit square.
//
// Engines routinely emit boxes that spill slightly past the frame edge; the clamp
// keeps normalized rectangles inside [0,1]².
//
// Returns:
//   - Rect: The canonical rectangle with all coordinates in [0,1].
func (r Rect) Clamp() Rect {
	return Rect{
		X1: clampUnit(r.X1),
		Y1: clampUnit(r.Y1),
		X2: clampUnit(r.X2),
		Y2: clampUnit(r.Y2),
	}.Canon()
}

// Scale converts a normalized rectangle into the pixel space of an image.
//
// Arguments:
//   - size: The pixel dimensions of the target image.
//
// Returns:
//   - Rect: The rectangle in pixel coordinates.
//
// Example:
//
//	r := Rect{X1: 0.25, Y1: 0.5, X2: 0.75, Y2: 1}
//	px := r.Scale(Size{Width: 640, Height: 480}) // {160 240 480 480}
func (r Rect) Scale(size Size) Rect {
	w, h := float32(size.Width), float32(size.Height)
	return Rect{X1: r.X1 * w, Y1: r.Y1 * h, X2: r.X2 * w, Y2: r.Y2 * h}
}

// Polygon is an ordered ring of four corners with consistent winding.
//
// Polygons are only ever derived from an OBB; see OBB.ToPolygonModelSpace and
// OBB.ToPolygonPixelSpace.
type Polygon [4]Point

// Bounds returns the axis-aligned rectangle enclosing the polygon.
func (p Polygon) Bounds() Rect {
	r := Rect{X1: p[0].X, Y1: p[0].Y, X2: p[0].X, Y2: p[0].Y}
	for _, pt := range p[1:] {
		r.X1 = math32.Min(r.X1, pt.X)
		r.Y1 = math32.Min(r.Y1, pt.Y)
		r.X2 = math32.Max(r.X2, pt.X)
		r.Y2 = math32.Max(r.Y2, pt.Y)
	}
	return r
}

// clampUnit limits v to [0,1]; NaN maps to 0.
func clampUnit(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return math32.Max(0, math32.Min(1, v))
}
