package surface

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/go-drift/flatland/pkg/canvas"
	"github.com/go-drift/flatland/pkg/geometry"
)

// Software produces CPU surfaces backed by *image.RGBA. Buffers are pooled
// and handed out again in the order they were returned, so a stable set of
// slots keeps getting the same buffers.
type Software struct {
	mu     sync.Mutex
	free   []*softwareSurface
	byTok  map[uint64]*softwareSurface
	tokens atomic.Uint64
	fences atomic.Uint64
}

// NewSoftware returns an empty software producer.
func NewSoftware() *Software {
	return &Software{byTok: make(map[uint64]*softwareSurface)}
}

// ProduceSurface implements [Producer].
func (s *Software) ProduceSurface(size geometry.ISize) (Surface, error) {
	if size.IsEmpty() {
		return nil, fmt.Errorf("surface: invalid size %dx%d", size.Width, size.Height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var surf *softwareSurface
	for i, f := range s.free {
		if f.size == size {
			surf = f
			s.free = append(s.free[:i], s.free[i+1:]...)
			break
		}
	}
	if surf == nil {
		surf = &softwareSurface{
			size:  size,
			img:   image.NewRGBA(image.Rect(0, 0, size.Width, size.Height)),
			token: s.tokens.Add(1),
		}
		s.byTok[surf.token] = surf
	}
	surf.acquire = s.fences.Add(1)
	surf.release = s.fences.Add(1)
	return surf, nil
}

// SubmitSurfaces implements [Producer].
func (s *Software) SubmitSurfaces(surfaces []Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, surf := range surfaces {
		if sw, ok := surf.(*softwareSurface); ok {
			s.free = append(s.free, sw)
		}
	}
}

// Image returns the pixels of the buffer with the given import token.
func (s *Software) Image(token uint64) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.byTok[token]
	if !ok {
		return nil, false
	}
	return surf.img, true
}

// Buffers returns the number of buffers allocated so far.
func (s *Software) Buffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byTok)
}

type softwareSurface struct {
	size    geometry.ISize
	img     *image.RGBA
	imageID uint64
	token   uint64
	acquire uint64
	release uint64
}

func (s *softwareSurface) Size() geometry.ISize { return s.size }
func (s *softwareSurface) ImageID() uint64      { return s.imageID }
func (s *softwareSurface) SetImageID(id uint64) { s.imageID = id }
func (s *softwareSurface) ImportToken() uint64  { return s.token }
func (s *softwareSurface) AcquireFence() uint64 { return s.acquire }
func (s *softwareSurface) ReleaseFence() uint64 { return s.release }

func (s *softwareSurface) Rasterize(pic *canvas.Picture) error {
	if pic.Size() != s.size {
		return fmt.Errorf("surface: picture size %dx%d does not match surface %dx%d",
			pic.Size().Width, pic.Size().Height, s.size.Width, s.size.Height)
	}
	bounds := s.img.Bounds()
	draw.Draw(s.img, bounds, image.Transparent, image.Point{}, draw.Src)

	for _, op := range pic.Ops() {
		r := pixelRect(op.Bounds).Intersect(bounds)
		if r.Empty() {
			continue
		}
		src := image.NewUniform(op.Color)
		switch op.Kind {
		case canvas.OpFill:
			draw.Draw(s.img, r, src, image.Point{}, draw.Over)
		case canvas.OpOval:
			draw.DrawMask(s.img, r, src, image.Point{}, &ovalMask{bounds: op.Shape}, r.Min, draw.Over)
		case canvas.OpRRect:
			mask := &rrectMask{bounds: op.Shape, rx: op.RadiusX, ry: op.RadiusY}
			draw.DrawMask(s.img, r, src, image.Point{}, mask, r.Min, draw.Over)
		}
	}
	return nil
}

// pixelRect returns the smallest pixel rectangle covering r.
func pixelRect(r geometry.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.Left)), int(math.Floor(r.Top)),
		int(math.Ceil(r.Right)), int(math.Ceil(r.Bottom)),
	)
}

// ovalMask is an alpha mask of the ellipse inscribed in bounds, sampled at
// pixel centers.
type ovalMask struct {
	bounds geometry.Rect
}

func (m *ovalMask) ColorModel() color.Model { return color.AlphaModel }

func (m *ovalMask) Bounds() image.Rectangle { return pixelRect(m.bounds) }

func (m *ovalMask) At(x, y int) color.Color {
	rx := m.bounds.Width() / 2
	ry := m.bounds.Height() / 2
	if rx <= 0 || ry <= 0 {
		return color.Transparent
	}
	dx := (float64(x) + 0.5 - (m.bounds.Left + rx)) / rx
	dy := (float64(y) + 0.5 - (m.bounds.Top + ry)) / ry
	if dx*dx+dy*dy <= 1 {
		return color.Opaque
	}
	return color.Transparent
}

// rrectMask is an alpha mask of a rectangle with elliptical corners of radii
// rx and ry, sampled at pixel centers.
type rrectMask struct {
	bounds geometry.Rect
	rx, ry float64
}

func (m *rrectMask) ColorModel() color.Model { return color.AlphaModel }

func (m *rrectMask) Bounds() image.Rectangle { return pixelRect(m.bounds) }

func (m *rrectMask) At(x, y int) color.Color {
	px, py := float64(x)+0.5, float64(y)+0.5
	b := m.bounds
	if px < b.Left || px > b.Right || py < b.Top || py > b.Bottom {
		return color.Transparent
	}
	rx := min(m.rx, b.Width()/2)
	ry := min(m.ry, b.Height()/2)
	if rx <= 0 || ry <= 0 {
		return color.Opaque
	}
	// Distance into the nearest corner box, zero outside the corners.
	dx := max(b.Left+rx-px, px-(b.Right-rx), 0) / rx
	dy := max(b.Top+ry-py, py-(b.Bottom-ry), 0) / ry
	if dx*dx+dy*dy <= 1 {
		return color.Opaque
	}
	return color.Transparent
}
