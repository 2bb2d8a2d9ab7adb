package geometry

import "math"

// Matrix represents a 2D affine transformation matrix.
// It uses a 2x3 matrix in row-major order:
//
//	| a  b  c |
//	| d  e  f |
//
// This represents the transformation:
//
//	x' = a*x + b*y + c
//	y' = d*x + e*y + f
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transformation matrix.
func Identity() Matrix {
	return Matrix{
		A: 1, B: 0, C: 0,
		D: 0, E: 1, F: 0,
	}
}

// Translate creates a translation matrix.
func Translate(x, y float64) Matrix {
	return Matrix{
		A: 1, B: 0, C: x,
		D: 0, E: 1, F: y,
	}
}

// Scale creates a scaling matrix.
func Scale(x, y float64) Matrix {
	return Matrix{
		A: x, B: 0, C: 0,
		D: 0, E: y, F: 0,
	}
}

// Multiply multiplies two matrices (m * other). The result applies other
// first, then m.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.D,
		B: m.A*other.B + m.B*other.E,
		C: m.A*other.C + m.B*other.F + m.C,
		D: m.D*other.A + m.E*other.D,
		E: m.D*other.B + m.E*other.E,
		F: m.D*other.C + m.E*other.F + m.F,
	}
}

// TransformPoint applies the transformation to a point.
func (m Matrix) TransformPoint(p Offset) Offset {
	return Offset{
		X: m.A*p.X + m.B*p.Y + m.C,
		Y: m.D*p.X + m.E*p.Y + m.F,
	}
}

// MapRect returns the axis-aligned bounds of r after transformation.
func (m Matrix) MapRect(r Rect) Rect {
	if m.IsTranslation() {
		return r.Translate(m.C, m.F)
	}
	corners := [4]Offset{
		m.TransformPoint(Offset{X: r.Left, Y: r.Top}),
		m.TransformPoint(Offset{X: r.Right, Y: r.Top}),
		m.TransformPoint(Offset{X: r.Right, Y: r.Bottom}),
		m.TransformPoint(Offset{X: r.Left, Y: r.Bottom}),
	}
	out := Rect{Left: corners[0].X, Top: corners[0].Y, Right: corners[0].X, Bottom: corners[0].Y}
	for _, c := range corners[1:] {
		out.Left = math.Min(out.Left, c.X)
		out.Top = math.Min(out.Top, c.Y)
		out.Right = math.Max(out.Right, c.X)
		out.Bottom = math.Max(out.Bottom, c.Y)
	}
	return out
}

// ScaleX returns the horizontal scale component.
func (m Matrix) ScaleX() float64 { return m.A }

// ScaleY returns the vertical scale component.
func (m Matrix) ScaleY() float64 { return m.E }

// TranslateX returns the horizontal translation component.
func (m Matrix) TranslateX() float64 { return m.C }

// TranslateY returns the vertical translation component.
func (m Matrix) TranslateY() float64 { return m.F }

// IsIdentity returns true if the matrix is the identity matrix.
func (m Matrix) IsIdentity() bool {
	return m.A == 1 && m.B == 0 && m.C == 0 &&
		m.D == 0 && m.E == 1 && m.F == 0
}

// IsTranslation returns true if the matrix is only a translation.
func (m Matrix) IsTranslation() bool {
	return m.A == 1 && m.B == 0 && m.D == 0 && m.E == 1
}
