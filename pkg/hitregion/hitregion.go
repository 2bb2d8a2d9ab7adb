// Package hitregion turns the rectangles painted on a layer into the hit
// regions sent to the compositor.
//
// Painted rectangles are evidence that something was drawn there. Rectangles
// that intersect or touch are merged into their bounding rectangle until no
// two output rectangles touch. The output preserves discovery order: a merged
// rectangle takes the position of its earliest member, so a layer that paints
// the same content every frame yields the same region list every frame.
package hitregion

import "github.com/go-drift/flatland/pkg/geometry"

// Aggregate merges painted rectangles into non-touching regions.
// Empty rectangles are ignored. The input slice is not modified.
func Aggregate(painted []geometry.Rect) []geometry.Rect {
	var out []geometry.Rect
	for _, r := range painted {
		if r.IsEmpty() {
			continue
		}
		out = insert(out, r)
	}
	return out
}

// AggregateWithin clips each painted rectangle to bounds before merging.
func AggregateWithin(painted []geometry.Rect, bounds geometry.Rect) []geometry.Rect {
	var out []geometry.Rect
	for _, r := range painted {
		r = r.Intersect(bounds)
		if r.IsEmpty() {
			continue
		}
		out = insert(out, r)
	}
	return out
}

// insert adds r to regions, which must be pairwise non-touching, and merges
// until that holds again. Growing r can make it reach regions it did not
// touch before, so the scan restarts after every merge.
func insert(regions []geometry.Rect, r geometry.Rect) []geometry.Rect {
	slot := -1
	for {
		merged := false
		for i := 0; i < len(regions); i++ {
			if i == slot || !regions[i].Touches(r) {
				continue
			}
			r = r.Union(regions[i])
			switch {
			case slot == -1:
				slot = i
			case i < slot:
				regions = remove(regions, slot)
				slot = i
			default:
				regions = remove(regions, i)
			}
			regions[slot] = r
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	if slot == -1 {
		return append(regions, r)
	}
	regions[slot] = r
	return regions
}

func remove(regions []geometry.Rect, i int) []geometry.Rect {
	return append(regions[:i], regions[i+1:]...)
}
