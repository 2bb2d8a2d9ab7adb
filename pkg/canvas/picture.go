package canvas

import (
	"image/color"

	"github.com/go-drift/flatland/pkg/geometry"
)

// OpKind identifies the shape of a recorded operation.
type OpKind int

const (
	// OpFill fills Bounds.
	OpFill OpKind = iota
	// OpOval fills the ellipse inscribed in Shape, limited to Bounds.
	OpOval
	// OpRRect fills Shape with corners of radii RadiusX and RadiusY,
	// limited to Bounds.
	OpRRect
)

// Op is one recorded draw operation in device space. Bounds is the painted
// area after clipping; Shape is the unclipped device bounds of the geometry
// that Bounds is cut from.
type Op struct {
	Kind             OpKind
	Bounds           geometry.Rect
	Shape            geometry.Rect
	RadiusX, RadiusY float64
	Color            color.NRGBA
}

// Picture is an immutable list of drawing operations.
// It can be replayed by any rasterizer.
type Picture struct {
	ops  []Op
	size geometry.ISize
}

// Ops returns the recorded operations in paint order.
func (p *Picture) Ops() []Op {
	return p.ops
}

// Size returns the size recorded when the picture was created.
func (p *Picture) Size() geometry.ISize {
	return p.size
}

// Empty reports whether the picture paints nothing.
func (p *Picture) Empty() bool {
	return len(p.ops) == 0
}
