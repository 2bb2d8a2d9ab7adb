// Package surface defines the rasterizer boundary: drawable surfaces for
// raster layer slots and the producer that hands them out.
package surface

import (
	"github.com/go-drift/flatland/pkg/canvas"
	"github.com/go-drift/flatland/pkg/geometry"
)

// Surface is a drawable buffer for one raster layer.
//
// The import token and fences are opaque values passed through to the
// compositor.
type Surface interface {
	Size() geometry.ISize
	// ImageID is the compositor image registered for this buffer, or 0 if
	// none has been registered yet.
	ImageID() uint64
	SetImageID(id uint64)
	ImportToken() uint64
	// AcquireFence is signaled when rendering into the surface is done.
	AcquireFence() uint64
	// ReleaseFence is signaled when the compositor no longer reads it.
	ReleaseFence() uint64
	// Rasterize clears the surface and replays pic into it.
	Rasterize(pic *canvas.Picture) error
}

// Producer hands out surfaces and takes them back after a frame.
type Producer interface {
	ProduceSurface(size geometry.ISize) (Surface, error)
	// SubmitSurfaces returns surfaces after they were rasterized and
	// presented.
	SubmitSurfaces(surfaces []Surface)
}
