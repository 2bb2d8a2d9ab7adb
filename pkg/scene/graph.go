package scene

import (
	"slices"

	"github.com/go-drift/flatland/pkg/geometry"
)

// ContentKind tags the content attached to a node.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentImage
	ContentViewport
)

func (k ContentKind) String() string {
	switch k {
	case ContentImage:
		return "image"
	case ContentViewport:
		return "viewport"
	default:
		return "none"
	}
}

// Content is the tagged content reference of a node. ID is zero for
// ContentNone.
type Content struct {
	Kind ContentKind
	ID   ContentID
}

// NoContent is the empty content reference.
var NoContent = Content{}

// Blend selects how an image is composited over what lies beneath it.
type Blend int

const (
	// BlendReplace overwrites the destination.
	BlendReplace Blend = iota
	// BlendSourceOver composites the image over the destination.
	BlendSourceOver
)

func (b Blend) String() string {
	if b == BlendReplace {
		return "replace"
	}
	return "source-over"
}

// Interaction is the hit test policy of a region.
type Interaction int

const (
	// InteractionDefault delivers hits to the node's owner.
	InteractionDefault Interaction = iota
	// InteractionSemanticallyInvisible receives input without being visible
	// to accessibility.
	InteractionSemanticallyInvisible
)

// HitRegion is a rectangle in node coordinates that accepts input.
type HitRegion struct {
	Rect        geometry.Rect
	Interaction Interaction
}

// Vec is a two-component vector.
type Vec struct {
	X, Y float64
}

// Node is a transform node.
type Node struct {
	ID          TransformID
	Translation Vec
	Scale       Vec
	Opacity     float64
	// Clip bounds the node's content in the parent's coordinates.
	// Nil means unclipped.
	Clip       *geometry.Rect
	Content    Content
	HitRegions []HitRegion
}

// NewNode returns a node with the attributes a freshly created transform has.
func NewNode(id TransformID) Node {
	return Node{ID: id, Scale: Vec{1, 1}, Opacity: 1}
}

func clipEqual(a, b *geometry.Rect) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Image is a registered image resource.
type Image struct {
	ID ContentID
	// Token identifies the backing buffer to the compositor.
	Token uint64
	// Size is the buffer size in pixels.
	Size geometry.ISize
	// DestinationSize is the size the image is displayed at, in node units.
	DestinationSize geometry.ISize
	Blend           Blend
}

// Inset describes the occluded edges of a viewport, in logical units.
type Inset struct {
	Top, Right, Bottom, Left int
}

// InsetFromHint converts an occlusion hint to an inset. Values are
// truncated toward zero.
func InsetFromHint(hint geometry.Rect) Inset {
	return Inset{
		Top:    int(hint.Top),
		Right:  int(hint.Right),
		Bottom: int(hint.Bottom),
		Left:   int(hint.Left),
	}
}

// ViewportProperties are the mutable attributes of a viewport.
type ViewportProperties struct {
	LogicalSize geometry.ISize
	Inset       Inset
	HitTestable bool
	Focusable   bool
}

// Viewport embeds a child view.
type Viewport struct {
	ID         ContentID
	ViewID     int64
	Properties ViewportProperties
}

// Graph is a complete description of the compositor-side scene.
//
// Nodes holds every transform besides the root that should exist,
// including nodes that are alive but not attached this frame. Children is
// the ordered child list of the root. A Graph is not modified after it is
// built.
type Graph struct {
	Root      TransformID
	RootScale float64
	Children  []TransformID
	Nodes     map[TransformID]Node
	Images    map[ContentID]Image
	Viewports map[ContentID]Viewport
}

// EmptyGraph returns a graph with no nodes at all, the state of a fresh
// compositor session.
func EmptyGraph() *Graph {
	return &Graph{
		RootScale: 1,
		Nodes:     map[TransformID]Node{},
		Images:    map[ContentID]Image{},
		Viewports: map[ContentID]Viewport{},
	}
}

// Attached reports whether id is a child of the root.
func (g *Graph) Attached(id TransformID) bool {
	return slices.Contains(g.Children, id)
}

// Contains reports whether the graph has a node with the given id.
func (g *Graph) Contains(id TransformID) bool {
	_, ok := g.Nodes[id]
	return ok
}
