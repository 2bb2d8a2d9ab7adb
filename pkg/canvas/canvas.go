// Package canvas provides the recording canvas handed to callers for each
// layer slot of a frame.
//
// The canvas records draw calls as device-space operations and remembers
// where it painted, which is what the hit regions of the layer are derived
// from. A Picture of the recorded operations is later replayed into the
// layer's surface by the rasterizer.
package canvas

import (
	"image/color"
	"math"

	"github.com/go-drift/flatland/pkg/geometry"
)

// PaintStyle selects fill or stroke.
type PaintStyle int

const (
	// PaintFill fills the shape.
	PaintFill PaintStyle = iota
	// PaintStroke strokes the outline with StrokeWidth.
	PaintStroke
)

// Paint describes how a shape is drawn.
type Paint struct {
	Color       color.NRGBA
	Style       PaintStyle
	StrokeWidth float64
}

// outset returns how far the painted area extends beyond the geometry.
func (p Paint) outset() float64 {
	if p.Style == PaintStroke {
		return p.StrokeWidth / 2
	}
	return 0
}

// Canvas records draw calls for one layer slot.
type Canvas struct {
	size    geometry.ISize
	tracker transformTracker
	ops     []Op
	painted []geometry.Rect
}

// New returns an empty canvas covering size physical pixels.
func New(size geometry.ISize) *Canvas {
	return &Canvas{
		size:    size,
		tracker: newTransformTracker(),
	}
}

// Size returns the canvas size in physical pixels.
func (c *Canvas) Size() geometry.ISize {
	return c.size
}

func (c *Canvas) Save() {
	c.tracker.save()
}

func (c *Canvas) Restore() {
	c.tracker.restore()
}

func (c *Canvas) Translate(dx, dy float64) {
	c.tracker.concat(geometry.Translate(dx, dy))
}

func (c *Canvas) Scale(sx, sy float64) {
	c.tracker.concat(geometry.Scale(sx, sy))
}

// Transform concatenates m with the current transform.
func (c *Canvas) Transform(m geometry.Matrix) {
	c.tracker.concat(m)
}

func (c *Canvas) ClipRect(rect geometry.Rect) {
	c.tracker.clipRect(rect)
}

// Clear fills the whole canvas, within the current clip, with col.
func (c *Canvas) Clear(col color.NRGBA) {
	bounds := c.size.Rect()
	if clip := c.tracker.currentClip(); clip != nil {
		bounds = clip.Intersect(bounds)
	}
	c.record(OpFill, bounds, col)
}

func (c *Canvas) DrawRect(rect geometry.Rect, paint Paint) {
	c.record(OpFill, c.tracker.deviceBounds(rect.Inflate(paint.outset())), paint.Color)
}

// DrawRRect draws a rectangle with circular corners of the given radius.
// Hit testing uses the bounding rectangle.
func (c *Canvas) DrawRRect(rect geometry.Rect, radius float64, paint Paint) {
	outset := paint.outset()
	shape := c.tracker.transform.MapRect(rect.Inflate(outset))
	r := max(radius+outset, 0)
	c.recordShape(Op{
		Kind:    OpRRect,
		Shape:   shape,
		RadiusX: r * math.Abs(c.tracker.transform.ScaleX()),
		RadiusY: r * math.Abs(c.tracker.transform.ScaleY()),
		Color:   paint.Color,
	})
}

func (c *Canvas) DrawCircle(center geometry.Offset, radius float64, paint Paint) {
	r := radius + paint.outset()
	local := geometry.Rect{Left: center.X - r, Top: center.Y - r, Right: center.X + r, Bottom: center.Y + r}
	c.recordShape(Op{Kind: OpOval, Shape: c.tracker.transform.MapRect(local), Color: paint.Color})
}

func (c *Canvas) DrawLine(start, end geometry.Offset, paint Paint) {
	local := geometry.Rect{Left: start.X, Top: start.Y, Right: start.X, Bottom: start.Y}.
		Union(geometry.Rect{Left: end.X, Top: end.Y, Right: end.X, Bottom: end.Y}).
		Inflate(paint.StrokeWidth / 2)
	c.record(OpFill, c.tracker.deviceBounds(local), paint.Color)
}

// record appends an operation. Operations that end up entirely clipped
// paint nothing and are dropped.
func (c *Canvas) record(kind OpKind, bounds geometry.Rect, col color.NRGBA) {
	c.recordShape(Op{Kind: kind, Shape: bounds, Color: col})
}

// recordShape sets op.Bounds to op.Shape clipped by the current clip and
// records the operation.
func (c *Canvas) recordShape(op Op) {
	op.Bounds = c.tracker.clipped(op.Shape)
	if op.Bounds.IsEmpty() {
		return
	}
	c.ops = append(c.ops, op)
	c.painted = append(c.painted, op.Bounds)
}

// DidDraw reports whether anything was painted on the canvas.
func (c *Canvas) DidDraw() bool {
	return len(c.ops) > 0
}

// PaintedRects returns the device-space bounds of every painted operation,
// in paint order.
func (c *Canvas) PaintedRects() []geometry.Rect {
	out := make([]geometry.Rect, len(c.painted))
	copy(out, c.painted)
	return out
}

// Picture returns an immutable snapshot of the recorded operations.
func (c *Canvas) Picture() *Picture {
	ops := make([]Op, len(c.ops))
	copy(ops, c.ops)
	return &Picture{ops: ops, size: c.size}
}
