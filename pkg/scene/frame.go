package scene

import (
	"github.com/go-drift/flatland/pkg/canvas"
	"github.com/go-drift/flatland/pkg/geometry"
	"github.com/go-drift/flatland/pkg/mutators"
)

// EmbeddedViewParams describes where a view is placed in one frame.
type EmbeddedViewParams struct {
	// Matrix is the view's transform. It is used when the mutator stack
	// carries no transform of its own.
	Matrix geometry.Matrix
	// Size is the view's logical size.
	Size     geometry.Size
	Mutators mutators.Stack
}

// Entry is one composition entry of a frame. The first entry is the
// background slot. Every later entry is an embedded view followed by the
// overlay canvas painted on top of it.
type Entry struct {
	HasView bool
	ViewID  int64
	Params  EmbeddedViewParams
	Canvas  *canvas.Canvas
}

// Frame is one embedding pass.
type Frame struct {
	Size    geometry.ISize
	DPR     float64
	Entries []Entry
}

// NewFrame returns a frame with its background slot.
func NewFrame(size geometry.ISize, dpr float64) *Frame {
	return &Frame{
		Size:    size,
		DPR:     dpr,
		Entries: []Entry{{Canvas: canvas.New(size)}},
	}
}

// AddView appends a composition entry for a view with a fresh overlay
// canvas and returns its slot index.
func (f *Frame) AddView(viewID int64, params EmbeddedViewParams) int {
	f.Entries = append(f.Entries, Entry{
		HasView: true,
		ViewID:  viewID,
		Params:  params,
		Canvas:  canvas.New(f.Size),
	})
	return len(f.Entries) - 1
}

// Slot returns the slot index of a view, or -1.
func (f *Frame) Slot(viewID int64) int {
	for i, e := range f.Entries {
		if e.HasView && e.ViewID == viewID {
			return i
		}
	}
	return -1
}
