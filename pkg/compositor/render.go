package compositor

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/go-drift/flatland/pkg/geometry"
	"github.com/go-drift/flatland/pkg/scene"
)

// ImageSource resolves an image's import token to its pixels.
type ImageSource interface {
	Image(token uint64) (image.Image, bool)
}

// ViewportColor fills viewports in rendered previews, since their content
// belongs to another process.
var ViewportColor = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}

// Render composites the attached nodes of the current graph into an image
// of the given size in logical units. Images whose pixels cannot be
// resolved are skipped.
func (m *Memory) Render(size geometry.ISize) *image.RGBA {
	m.mu.Lock()
	st := m.st.clone()
	m.mu.Unlock()

	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	root, ok := st.nodes[st.root]
	if !ok {
		return dst
	}
	rootScale := geometry.Scale(root.Scale.X, root.Scale.Y)

	for _, id := range root.children {
		n, ok := st.nodes[id]
		if !ok || n.Content.Kind == scene.ContentNone {
			continue
		}
		transform := rootScale.
			Multiply(geometry.Translate(n.Translation.X, n.Translation.Y)).
			Multiply(geometry.Scale(n.Scale.X, n.Scale.Y))

		clip := dst.Bounds()
		if n.Clip != nil {
			clip = clip.Intersect(pixelRect(rootScale.MapRect(*n.Clip)))
		}

		var opts *draw.Options
		if n.Opacity < 1 {
			opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(math.Round(n.Opacity * 255))})}
		}

		switch n.Content.Kind {
		case scene.ContentImage:
			img, ok := st.images[n.Content.ID]
			if !ok || m.opts.Images == nil {
				continue
			}
			src, ok := m.opts.Images.Image(img.Token)
			if !ok {
				continue
			}
			dr := pixelRect(transform.MapRect(sizeRect(img.DestinationSize)))
			op := draw.Over
			if img.Blend == scene.BlendReplace {
				op = draw.Src
			}
			scaleClipped(dst, dr, clip, src, op, opts)

		case scene.ContentViewport:
			vp, ok := st.viewports[n.Content.ID]
			if !ok {
				continue
			}
			dr := pixelRect(transform.MapRect(sizeRect(vp.Properties.LogicalSize))).Intersect(clip)
			draw.DrawMask(dst, dr, image.NewUniform(ViewportColor), image.Point{}, maskOf(opts), image.Point{}, draw.Over)
		}
	}
	return dst
}

// scaleClipped scales src into dr, restricted to clip.
func scaleClipped(dst *image.RGBA, dr, clip image.Rectangle, src image.Image, op draw.Op, opts *draw.Options) {
	if dr.Empty() || clip.Intersect(dr).Empty() {
		return
	}
	if clip.Intersect(dr) == dr {
		draw.ApproxBiLinear.Scale(dst, dr, src, src.Bounds(), op, opts)
		return
	}
	// Scale into the clipped sub-image so pixels outside the clip stay
	// untouched.
	sub := dst.SubImage(clip).(*image.RGBA)
	draw.ApproxBiLinear.Scale(sub, dr, src, src.Bounds(), op, opts)
}

func maskOf(opts *draw.Options) image.Image {
	if opts == nil {
		return nil
	}
	return opts.SrcMask
}

func sizeRect(s geometry.ISize) geometry.Rect {
	return geometry.RectFromLTWH(0, 0, float64(s.Width), float64(s.Height))
}

func pixelRect(r geometry.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(r.Left)), int(math.Round(r.Top)),
		int(math.Round(r.Right)), int(math.Round(r.Bottom)),
	)
}
