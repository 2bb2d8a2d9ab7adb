// Package geometry provides the value types shared by the embedder packages:
// offsets, sizes, rectangles and 2D affine matrices.
//
// Rectangles are edge-based (left, top, right, bottom). A rectangle with no
// area is empty; the zero Rect is the canonical empty value.
package geometry

import "math"

// tolerance used by Equal.
const epsilon = 0.0001

// Offset is a point or a displacement.
type Offset struct {
	X, Y float64
}

// Size is a width and height in logical units.
type Size struct {
	Width, Height float64
}

// IsEmpty reports whether either dimension is zero or negative.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// ISize is an integer size in physical pixels, used for frames and surfaces.
type ISize struct {
	Width, Height int
}

// IsEmpty reports whether either dimension is zero or negative.
func (s ISize) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect returns the rectangle (0, 0, Width, Height).
func (s ISize) Rect() Rect {
	return Rect{Right: float64(s.Width), Bottom: float64(s.Height)}
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// RectFromLTWH builds a Rect from its origin and extent.
func RectFromLTWH(left, top, width, height float64) Rect {
	return Rect{left, top, left + width, top + height}
}

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Bottom - r.Top }
func (r Rect) Size() Size      { return Size{r.Width(), r.Height()} }

// Intersect returns the overlap of r and other, or the zero Rect when they
// share no area.
func (r Rect) Intersect(other Rect) Rect {
	out := Rect{
		max(r.Left, other.Left), max(r.Top, other.Top),
		min(r.Right, other.Right), min(r.Bottom, other.Bottom),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Touches reports whether the closed rectangles share at least one point.
// Rectangles that only meet along an edge or a corner touch.
func (r Rect) Touches(other Rect) bool {
	return r.Left <= other.Right && other.Left <= r.Right &&
		r.Top <= other.Bottom && other.Top <= r.Bottom
}

// IsEmpty reports whether r has no area.
func (r Rect) IsEmpty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// Translate moves r by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{r.Left + dx, r.Top + dy, r.Right + dx, r.Bottom + dy}
}

// Union returns the bounding box of r and other.
func (r Rect) Union(other Rect) Rect {
	return Rect{
		min(r.Left, other.Left), min(r.Top, other.Top),
		max(r.Right, other.Right), max(r.Bottom, other.Bottom),
	}
}

// Inflate grows the rect by d on every side.
func (r Rect) Inflate(d float64) Rect {
	return Rect{r.Left - d, r.Top - d, r.Right + d, r.Bottom + d}
}

// Equal compares edges with a small tolerance.
func (r Rect) Equal(other Rect) bool {
	return near(r.Left, other.Left) && near(r.Top, other.Top) &&
		near(r.Right, other.Right) && near(r.Bottom, other.Bottom)
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= epsilon
}
