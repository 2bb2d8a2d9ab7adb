// Package mutators resolves the stack of opacity, transform and clip
// operations that the framework applies to an embedded view into the
// attributes of the view's compositor node.
package mutators

import (
	"math"

	"github.com/go-drift/flatland/pkg/geometry"
)

// Kind identifies a mutator operation.
type Kind int

const (
	// KindOpacity multiplies the view's opacity.
	KindOpacity Kind = iota
	// KindTransform concatenates an affine transform.
	KindTransform
	// KindClipRect clips to a rectangle.
	KindClipRect
	// KindClipRRect clips to a rounded rectangle. Only its bounds are used.
	KindClipRRect
)

func (k Kind) String() string {
	switch k {
	case KindOpacity:
		return "opacity"
	case KindTransform:
		return "transform"
	case KindClipRect:
		return "clipRect"
	case KindClipRRect:
		return "clipRRect"
	default:
		return "unknown"
	}
}

// Mutator is one entry of a Stack. Which fields are meaningful depends on Kind.
type Mutator struct {
	Kind   Kind
	Alpha  uint8
	Matrix geometry.Matrix
	Rect   geometry.Rect
	Radius float64
}

// AlphaFloat returns the opacity as a value in [0, 1].
func (m Mutator) AlphaFloat() float64 {
	return float64(m.Alpha) / 255
}

// Stack is an ordered sequence of mutators, outermost first.
// The zero value is an empty stack.
type Stack struct {
	mutators []Mutator
}

// PushOpacity appends an opacity mutator with alpha in [0, 255].
func (s *Stack) PushOpacity(alpha uint8) {
	s.mutators = append(s.mutators, Mutator{Kind: KindOpacity, Alpha: alpha})
}

// PushTransform appends a transform mutator.
func (s *Stack) PushTransform(m geometry.Matrix) {
	s.mutators = append(s.mutators, Mutator{Kind: KindTransform, Matrix: m})
}

// PushClipRect appends a rectangular clip.
func (s *Stack) PushClipRect(r geometry.Rect) {
	s.mutators = append(s.mutators, Mutator{Kind: KindClipRect, Rect: r})
}

// PushClipRRect appends a rounded-rectangle clip.
func (s *Stack) PushClipRRect(r geometry.Rect, radius float64) {
	s.mutators = append(s.mutators, Mutator{Kind: KindClipRRect, Rect: r, Radius: radius})
}

// Pop removes the innermost mutator. Popping an empty stack is a no-op.
func (s *Stack) Pop() {
	if len(s.mutators) > 0 {
		s.mutators = s.mutators[:len(s.mutators)-1]
	}
}

// Len returns the number of mutators.
func (s Stack) Len() int {
	return len(s.mutators)
}

// All returns a copy of the mutators, outermost first.
func (s Stack) All() []Mutator {
	out := make([]Mutator, len(s.mutators))
	copy(out, s.mutators)
	return out
}

// Clone returns an independent copy of the stack.
func (s Stack) Clone() Stack {
	return Stack{mutators: s.All()}
}

// Clip is a clip rectangle together with the transform accumulated between
// the previous clip and this one.
type Clip struct {
	Transform geometry.Matrix
	Rect      geometry.Rect
}

// Resolved holds the effective attributes of a mutator stack.
type Resolved struct {
	// TotalTransform is the composition of every transform in the stack.
	TotalTransform geometry.Matrix
	// Transform is the part of TotalTransform applied after the last clip.
	// This is what the view's own node carries.
	Transform geometry.Matrix
	// Opacity is the product of all opacities, clamped to [0, 1].
	Opacity float64
	// Clips lists every clip in stack order.
	Clips []Clip
	// ClipBounds is the intersection of all clips in device coordinates.
	// A zero-area rect means nothing is visible. Only valid if HasClip.
	ClipBounds geometry.Rect
	HasClip    bool
	// RootScale is the scale the root node applies so that content produced
	// in physical pixels is displayed in the compositor's logical units.
	RootScale float64
}

// Resolve folds the stack into effective attributes. dpr values that are
// not positive are treated as 1.
func Resolve(stack Stack, dpr float64) Resolved {
	total := geometry.Identity()
	accumulator := geometry.Identity()
	opacity := 1.0
	var clips []Clip
	var bounds geometry.Rect
	hasClip := false

	for _, m := range stack.mutators {
		switch m.Kind {
		case KindOpacity:
			opacity *= clamp01(m.AlphaFloat())
		case KindTransform:
			total = total.Multiply(m.Matrix)
			accumulator = accumulator.Multiply(m.Matrix)
		case KindClipRect, KindClipRRect:
			clips = append(clips, Clip{Transform: accumulator, Rect: m.Rect})
			accumulator = geometry.Identity()
			device := total.MapRect(m.Rect)
			if hasClip {
				bounds = bounds.Intersect(device)
			} else {
				bounds = device
				if bounds.IsEmpty() {
					bounds = geometry.Rect{}
				}
				hasClip = true
			}
		}
	}

	return Resolved{
		TotalTransform: total,
		Transform:      accumulator,
		Opacity:        clamp01(opacity),
		Clips:          clips,
		ClipBounds:     bounds,
		HasClip:        hasClip,
		RootScale:      InverseScale(dpr),
	}
}

// InverseScale returns 1/dpr, the scale applied to the root node.
func InverseScale(dpr float64) float64 {
	if dpr <= 0 || math.IsNaN(dpr) || math.IsInf(dpr, 0) {
		return 1
	}
	return 1 / dpr
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
