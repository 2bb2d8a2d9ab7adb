package canvas

import "github.com/go-drift/flatland/pkg/geometry"

// transformTracker maintains the current transform and clip so that draw
// calls can be resolved to device-space bounds.
type transformTracker struct {
	transform geometry.Matrix
	saveStack []trackerSaveState
	clips     []geometry.Rect
}

type trackerSaveState struct {
	transform geometry.Matrix
	clipDepth int
}

func newTransformTracker() transformTracker {
	return transformTracker{transform: geometry.Identity()}
}

func (t *transformTracker) save() {
	t.saveStack = append(t.saveStack, trackerSaveState{
		transform: t.transform,
		clipDepth: len(t.clips),
	})
}

func (t *transformTracker) restore() {
	if len(t.saveStack) > 0 {
		state := t.saveStack[len(t.saveStack)-1]
		t.saveStack = t.saveStack[:len(t.saveStack)-1]
		t.transform = state.transform
		t.clips = t.clips[:state.clipDepth]
	}
}

func (t *transformTracker) concat(m geometry.Matrix) {
	t.transform = t.transform.Multiply(m)
}

func (t *transformTracker) clipRect(rect geometry.Rect) {
	globalRect := t.transform.MapRect(rect)
	if len(t.clips) > 0 {
		globalRect = t.clips[len(t.clips)-1].Intersect(globalRect)
	}
	t.clips = append(t.clips, globalRect)
}

// currentClip returns the active clip bounds, or nil if no clip is active.
func (t *transformTracker) currentClip() *geometry.Rect {
	if len(t.clips) > 0 {
		clip := t.clips[len(t.clips)-1]
		return &clip
	}
	return nil
}

// deviceBounds maps local bounds to device space and applies the clip.
func (t *transformTracker) deviceBounds(local geometry.Rect) geometry.Rect {
	return t.clipped(t.transform.MapRect(local))
}

func (t *transformTracker) clipped(device geometry.Rect) geometry.Rect {
	if clip := t.currentClip(); clip != nil {
		return clip.Intersect(device)
	}
	return device
}
