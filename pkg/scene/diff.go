package scene

import (
	"cmp"
	"maps"
	"slices"
)

// Diff returns the mutations that move the compositor from prev to next.
//
// Nodes, images and viewports are matched by identifier. Existing entries
// only receive updates for the attributes that changed. The output order is
// deterministic: creations, attribute updates, the root, then releases, each
// group in ascending identifier order. A nil prev is treated as an empty
// session.
func Diff(prev, next *Graph) MutationSet {
	if prev == nil {
		prev = EmptyGraph()
	}
	var out MutationSet

	rootCreated := false
	if next.Root != 0 && next.Root != prev.Root {
		out = append(out, CreateTransform{ID: next.Root}, SetRootTransform{ID: next.Root})
		rootCreated = true
	}

	for _, id := range sortedKeys(next.Images) {
		img := next.Images[id]
		old, ok := prev.Images[id]
		if !ok {
			out = append(out,
				CreateImage{ID: id, Token: img.Token, Size: img.Size},
				SetImageDestinationSize{ID: id, Size: img.DestinationSize},
				SetImageBlend{ID: id, Blend: img.Blend},
			)
			continue
		}
		if old.DestinationSize != img.DestinationSize {
			out = append(out, SetImageDestinationSize{ID: id, Size: img.DestinationSize})
		}
		if old.Blend != img.Blend {
			out = append(out, SetImageBlend{ID: id, Blend: img.Blend})
		}
	}

	for _, id := range sortedKeys(next.Viewports) {
		vp := next.Viewports[id]
		old, ok := prev.Viewports[id]
		switch {
		case !ok:
			out = append(out, CreateViewport{ID: id, ViewID: vp.ViewID, Properties: vp.Properties})
		case old.Properties != vp.Properties:
			out = append(out, SetViewportProperties{ID: id, Properties: vp.Properties})
		}
	}

	for _, id := range sortedKeys(next.Nodes) {
		node := next.Nodes[id]
		old, ok := prev.Nodes[id]
		if !ok {
			out = append(out, CreateTransform{ID: id})
			old = NewNode(id)
		}
		out = diffNode(out, old, node)
	}

	if next.Root != 0 {
		base := prev.RootScale
		if rootCreated {
			base = 1
		}
		if base != next.RootScale {
			out = append(out, SetScale{ID: next.Root, Value: Vec{next.RootScale, next.RootScale}})
		}
		if !slices.Equal(prev.Children, next.Children) {
			out = append(out, SetChildren{ID: next.Root, Children: slices.Clone(next.Children)})
		}
	}

	for _, id := range sortedKeys(prev.Viewports) {
		if _, ok := next.Viewports[id]; !ok {
			out = append(out, ReleaseViewport{ID: id})
		}
	}
	for _, id := range sortedKeys(prev.Nodes) {
		if _, ok := next.Nodes[id]; !ok {
			out = append(out, ReleaseTransform{ID: id})
		}
	}
	for _, id := range sortedKeys(prev.Images) {
		if _, ok := next.Images[id]; !ok {
			out = append(out, ReleaseImage{ID: id})
		}
	}
	return out
}

func diffNode(out MutationSet, old, node Node) MutationSet {
	id := node.ID
	if old.Translation != node.Translation {
		out = append(out, SetTranslation{ID: id, Value: node.Translation})
	}
	if old.Scale != node.Scale {
		out = append(out, SetScale{ID: id, Value: node.Scale})
	}
	if old.Opacity != node.Opacity {
		out = append(out, SetOpacity{ID: id, Value: node.Opacity})
	}
	if !clipEqual(old.Clip, node.Clip) {
		var clip = node.Clip
		if clip != nil {
			c := *clip
			clip = &c
		}
		out = append(out, SetClip{ID: id, Clip: clip})
	}
	if old.Content != node.Content {
		out = append(out, SetContent{ID: id, Content: node.Content})
	}
	if !slices.Equal(old.HitRegions, node.HitRegions) {
		out = append(out, SetHitRegions{ID: id, Regions: slices.Clone(node.HitRegions)})
	}
	return out
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
