package scene

import (
	"maps"

	"github.com/go-drift/flatland/pkg/geometry"
	"github.com/go-drift/flatland/pkg/hitregion"
	"github.com/go-drift/flatland/pkg/mutators"
)

// MaxHitRegionSize is the edge length of the input interceptor's region.
const MaxHitRegionSize = 1_000_000

// ViewInfo is the read-only view of a live embedded view used while
// building a frame.
type ViewInfo struct {
	ID            int64
	Transform     TransformID
	Content       ContentID
	OcclusionHint geometry.Rect
	HitTestable   bool
	Focusable     bool
}

// ViewSource looks up live views. Views that are pending destruction or
// unknown are reported as absent.
type ViewSource interface {
	View(id int64) (ViewInfo, bool)
}

// SlotImage is the image a slot was rasterized into.
type SlotImage struct {
	ID    ContentID
	Token uint64
	Size  geometry.ISize
}

// LayerKind distinguishes raster layers from view layers.
type LayerKind int

const (
	LayerRaster LayerKind = iota
	LayerView
)

// Layer is one entry of a frame's painter-ordered layer list.
type Layer struct {
	Kind LayerKind
	// Slot is the composition entry the layer came from.
	Slot int

	// Raster layers.
	Image      SlotImage
	Blend      Blend
	HitRegions []HitRegion

	// View layers.
	View      ViewInfo
	Transform geometry.Matrix
	Opacity   float64
	Clip      *geometry.Rect
	Size      geometry.Size
}

// LayerList is the ordered result of [Builder.Build].
type LayerList struct {
	Size      geometry.ISize
	RootScale float64
	Layers    []Layer
}

// Options configures a Builder.
type Options struct {
	// InterceptAllInput keeps a transform on top of the scene whose hit
	// region covers everything.
	InterceptAllInput bool
}

// Builder turns frames into layer lists and layer lists into graphs.
//
// It remembers the node identifiers assigned to raster slots and views, so
// that a persistent slot or view keeps its node between frames.
type Builder struct {
	ids         IDSource
	opts        Options
	root        TransformID
	interceptor TransformID
	slots       map[int]TransformID
	views       map[int64]viewNode
}

type viewNode struct {
	node     Node
	viewport *Viewport
}

// NewBuilder returns a builder that allocates identifiers from ids.
func NewBuilder(ids IDSource, opts Options) *Builder {
	return &Builder{
		ids:   ids,
		opts:  opts,
		slots: make(map[int]TransformID),
		views: make(map[int64]viewNode),
	}
}

// Build assembles the painter-ordered layer list of a frame.
//
// For every composition entry the view layer comes first, followed by the
// entry's raster layer. A raster layer is only emitted when its canvas drew
// something and an image was produced for its slot. Views that are not
// live are skipped.
func (b *Builder) Build(frame *Frame, views ViewSource, images map[int]SlotImage) LayerList {
	list := LayerList{
		Size:      frame.Size,
		RootScale: mutators.InverseScale(frame.DPR),
	}
	bounds := frame.Size.Rect()

	for slot, entry := range frame.Entries {
		if entry.HasView {
			if info, ok := views.View(entry.ViewID); ok {
				list.Layers = append(list.Layers, viewLayer(slot, info, entry.Params, frame.DPR))
			}
		}

		if entry.Canvas == nil || !entry.Canvas.DidDraw() {
			continue
		}
		img, ok := images[slot]
		if !ok {
			continue
		}
		blend := BlendSourceOver
		if slot == 0 {
			blend = BlendReplace
		}
		var regions []HitRegion
		for _, r := range hitregion.AggregateWithin(entry.Canvas.PaintedRects(), bounds) {
			regions = append(regions, HitRegion{Rect: r, Interaction: InteractionDefault})
		}
		list.Layers = append(list.Layers, Layer{
			Kind:       LayerRaster,
			Slot:       slot,
			Image:      img,
			Blend:      blend,
			HitRegions: regions,
		})
	}
	return list
}

func viewLayer(slot int, info ViewInfo, params EmbeddedViewParams, dpr float64) Layer {
	resolved := mutators.Resolve(params.Mutators, dpr)
	transform := resolved.TotalTransform
	if transform.IsIdentity() {
		transform = params.Matrix
	}
	var clip *geometry.Rect
	if resolved.HasClip {
		c := resolved.ClipBounds
		clip = &c
	}
	return Layer{
		Kind:      LayerView,
		Slot:      slot,
		View:      info,
		Transform: transform,
		Opacity:   resolved.Opacity,
		Clip:      clip,
		Size:      params.Size,
	}
}

// Graph assigns node identifiers to a layer list and returns the complete
// target graph.
//
// Raster slots that are absent from the list lose their node; a slot that
// reappears later gets a fresh one. View nodes live as long as the view:
// a live view that is not composited this frame keeps its node, detached
// from the root. A view's viewport is created the first time the view is
// composited with a non-zero size.
func (b *Builder) Graph(list LayerList, views ViewSource) *Graph {
	if b.root == 0 {
		b.root = b.ids.NextTransformID()
	}
	g := &Graph{
		Root:      b.root,
		RootScale: list.RootScale,
		Nodes:     make(map[TransformID]Node),
		Images:    make(map[ContentID]Image),
		Viewports: make(map[ContentID]Viewport),
	}
	usedSlots := make(map[int]bool)
	usedViews := make(map[int64]bool)

	for _, layer := range list.Layers {
		var node Node
		switch layer.Kind {
		case LayerRaster:
			node = b.rasterNode(layer, list.Size, g)
			usedSlots[layer.Slot] = true
		case LayerView:
			node = b.viewNode(layer, g)
			usedViews[layer.View.ID] = true
		}
		g.Nodes[node.ID] = node
		g.Children = append(g.Children, node.ID)
	}

	for slot := range b.slots {
		if !usedSlots[slot] {
			delete(b.slots, slot)
		}
	}
	for id, vn := range b.views {
		if usedViews[id] {
			continue
		}
		if _, live := views.View(id); !live {
			delete(b.views, id)
			continue
		}
		g.Nodes[vn.node.ID] = vn.node
		if vn.viewport != nil {
			g.Viewports[vn.viewport.ID] = *vn.viewport
		}
	}

	if b.opts.InterceptAllInput {
		if b.interceptor == 0 {
			b.interceptor = b.ids.NextTransformID()
		}
		node := NewNode(b.interceptor)
		node.HitRegions = []HitRegion{{
			Rect:        geometry.RectFromLTWH(0, 0, MaxHitRegionSize, MaxHitRegionSize),
			Interaction: InteractionSemanticallyInvisible,
		}}
		g.Nodes[node.ID] = node
		g.Children = append(g.Children, node.ID)
	}
	return g
}

// Prune returns g without the nodes and viewports of views that are no
// longer live, and forgets those views. g itself is not modified; it is
// returned as is when there is nothing to drop.
func (b *Builder) Prune(g *Graph, views ViewSource) *Graph {
	var drop []int64
	for id := range b.views {
		if _, live := views.View(id); !live {
			drop = append(drop, id)
		}
	}
	if len(drop) == 0 || g == nil {
		return g
	}

	out := &Graph{
		Root:      g.Root,
		RootScale: g.RootScale,
		Nodes:     maps.Clone(g.Nodes),
		Images:    maps.Clone(g.Images),
		Viewports: maps.Clone(g.Viewports),
	}
	removed := make(map[TransformID]bool)
	for _, id := range drop {
		vn := b.views[id]
		delete(b.views, id)
		if _, ok := out.Nodes[vn.node.ID]; ok {
			delete(out.Nodes, vn.node.ID)
			removed[vn.node.ID] = true
		}
		if vn.viewport != nil {
			delete(out.Viewports, vn.viewport.ID)
		}
	}
	for _, id := range g.Children {
		if !removed[id] {
			out.Children = append(out.Children, id)
		}
	}
	return out
}

func (b *Builder) rasterNode(layer Layer, frameSize geometry.ISize, g *Graph) Node {
	id, ok := b.slots[layer.Slot]
	if !ok {
		id = b.ids.NextTransformID()
		b.slots[layer.Slot] = id
	}
	node := NewNode(id)
	node.Content = Content{Kind: ContentImage, ID: layer.Image.ID}
	node.HitRegions = layer.HitRegions
	g.Images[layer.Image.ID] = Image{
		ID:              layer.Image.ID,
		Token:           layer.Image.Token,
		Size:            layer.Image.Size,
		DestinationSize: frameSize,
		Blend:           layer.Blend,
	}
	return node
}

func (b *Builder) viewNode(layer Layer, g *Graph) Node {
	info := layer.View
	vn := b.views[info.ID]

	node := NewNode(info.Transform)
	node.Translation = Vec{layer.Transform.TranslateX(), layer.Transform.TranslateY()}
	node.Scale = Vec{layer.Transform.ScaleX(), layer.Transform.ScaleY()}
	node.Opacity = layer.Opacity
	node.Clip = layer.Clip

	props := ViewportProperties{
		LogicalSize: geometry.ISize{Width: int(layer.Size.Width), Height: int(layer.Size.Height)},
		Inset:       InsetFromHint(info.OcclusionHint),
		HitTestable: info.HitTestable,
		Focusable:   info.Focusable,
	}
	if vn.viewport == nil && !props.LogicalSize.IsEmpty() {
		vn.viewport = &Viewport{ID: info.Content, ViewID: info.ID}
	}
	if vn.viewport != nil {
		vn.viewport.Properties = props
		node.Content = Content{Kind: ContentViewport, ID: vn.viewport.ID}
		g.Viewports[vn.viewport.ID] = *vn.viewport
	}

	vn.node = node
	b.views[info.ID] = vn
	return node
}
