package scene

import (
	"fmt"

	"github.com/go-drift/flatland/pkg/geometry"
)

// Mutation is one change to the compositor's graph. Transports switch on
// the concrete type.
type Mutation interface {
	fmt.Stringer
	mutation()
}

// MutationSet is an ordered list of mutations. Applying it in order to the
// graph it was computed from yields the target graph.
type MutationSet []Mutation

// Empty reports whether the set contains no mutations.
func (s MutationSet) Empty() bool {
	return len(s) == 0
}

type CreateTransform struct{ ID TransformID }

type ReleaseTransform struct{ ID TransformID }

// SetRootTransform makes ID the root of the displayed scene.
type SetRootTransform struct{ ID TransformID }

type SetTranslation struct {
	ID    TransformID
	Value Vec
}

type SetScale struct {
	ID    TransformID
	Value Vec
}

type SetOpacity struct {
	ID    TransformID
	Value float64
}

// SetClip sets or, with a nil Clip, clears the clip of a node.
type SetClip struct {
	ID   TransformID
	Clip *geometry.Rect
}

// SetContent attaches content to a node. NoContent detaches it.
type SetContent struct {
	ID      TransformID
	Content Content
}

type SetHitRegions struct {
	ID      TransformID
	Regions []HitRegion
}

// SetChildren replaces the ordered child list of a node.
type SetChildren struct {
	ID       TransformID
	Children []TransformID
}

type CreateImage struct {
	ID    ContentID
	Token uint64
	Size  geometry.ISize
}

type SetImageDestinationSize struct {
	ID   ContentID
	Size geometry.ISize
}

type SetImageBlend struct {
	ID    ContentID
	Blend Blend
}

type ReleaseImage struct{ ID ContentID }

type CreateViewport struct {
	ID         ContentID
	ViewID     int64
	Properties ViewportProperties
}

type SetViewportProperties struct {
	ID         ContentID
	Properties ViewportProperties
}

type ReleaseViewport struct{ ID ContentID }

func (CreateTransform) mutation()         {}
func (ReleaseTransform) mutation()        {}
func (SetRootTransform) mutation()        {}
func (SetTranslation) mutation()          {}
func (SetScale) mutation()                {}
func (SetOpacity) mutation()              {}
func (SetClip) mutation()                 {}
func (SetContent) mutation()              {}
func (SetHitRegions) mutation()           {}
func (SetChildren) mutation()             {}
func (CreateImage) mutation()             {}
func (SetImageDestinationSize) mutation() {}
func (SetImageBlend) mutation()           {}
func (ReleaseImage) mutation()            {}
func (CreateViewport) mutation()          {}
func (SetViewportProperties) mutation()   {}
func (ReleaseViewport) mutation()         {}

func (m CreateTransform) String() string  { return fmt.Sprintf("CreateTransform(%d)", m.ID) }
func (m ReleaseTransform) String() string { return fmt.Sprintf("ReleaseTransform(%d)", m.ID) }
func (m SetRootTransform) String() string { return fmt.Sprintf("SetRootTransform(%d)", m.ID) }
func (m SetTranslation) String() string {
	return fmt.Sprintf("SetTranslation(%d, %g, %g)", m.ID, m.Value.X, m.Value.Y)
}
func (m SetScale) String() string {
	return fmt.Sprintf("SetScale(%d, %g, %g)", m.ID, m.Value.X, m.Value.Y)
}
func (m SetOpacity) String() string { return fmt.Sprintf("SetOpacity(%d, %g)", m.ID, m.Value) }
func (m SetClip) String() string {
	if m.Clip == nil {
		return fmt.Sprintf("SetClip(%d, none)", m.ID)
	}
	return fmt.Sprintf("SetClip(%d, %v)", m.ID, *m.Clip)
}
func (m SetContent) String() string {
	return fmt.Sprintf("SetContent(%d, %s %d)", m.ID, m.Content.Kind, m.Content.ID)
}
func (m SetHitRegions) String() string {
	return fmt.Sprintf("SetHitRegions(%d, %d regions)", m.ID, len(m.Regions))
}
func (m SetChildren) String() string { return fmt.Sprintf("SetChildren(%d, %v)", m.ID, m.Children) }
func (m CreateImage) String() string {
	return fmt.Sprintf("CreateImage(%d, %dx%d)", m.ID, m.Size.Width, m.Size.Height)
}
func (m SetImageDestinationSize) String() string {
	return fmt.Sprintf("SetImageDestinationSize(%d, %dx%d)", m.ID, m.Size.Width, m.Size.Height)
}
func (m SetImageBlend) String() string  { return fmt.Sprintf("SetImageBlend(%d, %s)", m.ID, m.Blend) }
func (m ReleaseImage) String() string   { return fmt.Sprintf("ReleaseImage(%d)", m.ID) }
func (m CreateViewport) String() string { return fmt.Sprintf("CreateViewport(%d, view %d)", m.ID, m.ViewID) }
func (m SetViewportProperties) String() string {
	return fmt.Sprintf("SetViewportProperties(%d, %dx%d)", m.ID,
		m.Properties.LogicalSize.Width, m.Properties.LogicalSize.Height)
}
func (m ReleaseViewport) String() string { return fmt.Sprintf("ReleaseViewport(%d)", m.ID) }
