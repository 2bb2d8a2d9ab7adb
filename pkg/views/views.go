// Package views tracks the lifecycle of embedded child views.
//
// A view moves through Created, any number of Updated, PendingDestroy and
// finally Gone. Destruction is two-phase: DestroyView only marks the view,
// and Complete erases it once its node has left every graph that still
// refers to it. Only then may the id be created again.
package views

import (
	"slices"

	"github.com/go-drift/flatland/pkg/errors"
	"github.com/go-drift/flatland/pkg/geometry"
	"github.com/go-drift/flatland/pkg/logging"
	"github.com/go-drift/flatland/pkg/scene"
)

// State is the lifecycle state of a view id.
type State int

const (
	StateUnknown State = iota
	StateCreated
	StateUpdated
	StatePendingDestroy
	// StateGone is passed through inside Complete; the record is erased in
	// the same step.
	StateGone
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateUpdated:
		return "updated"
	case StatePendingDestroy:
		return "pending-destroy"
	case StateGone:
		return "gone"
	default:
		return "unknown"
	}
}

// Hooks are invoked once when a view is created.
type Hooks struct {
	// OnCreated runs after the record exists.
	OnCreated func()
	// OnBound receives the viewport content id reserved for the view.
	OnBound func(scene.ContentID)
}

// Record is the tracker's state for one view.
type Record struct {
	ID            int64
	Transform     scene.TransformID
	Content       scene.ContentID
	OcclusionHint geometry.Rect
	HitTestable   bool
	Focusable     bool
	State         State

	// onDestroyed runs once, from Complete.
	onDestroyed func(scene.ContentID)
}

func (r *Record) live() bool {
	return r.State == StateCreated || r.State == StateUpdated
}

// Tracker owns all view records. It is not safe for concurrent use; every
// call happens on the embedder's sequence.
type Tracker struct {
	ids     scene.IDSource
	records map[int64]*Record
}

// NewTracker returns a tracker that reserves node and content ids from ids.
func NewTracker(ids scene.IDSource) *Tracker {
	return &Tracker{
		ids:     ids,
		records: make(map[int64]*Record),
	}
}

// CreateView registers a view and reserves its transform and viewport ids.
// No compositor resources are created until the view is composited.
func (t *Tracker) CreateView(id int64, hooks Hooks) error {
	if _, exists := t.records[id]; exists {
		return errors.ErrDuplicateView
	}
	rec := &Record{
		ID:          id,
		Transform:   t.ids.NextTransformID(),
		Content:     t.ids.NextContentID(),
		HitTestable: true,
		Focusable:   true,
		State:       StateCreated,
	}
	t.records[id] = rec
	logging.Logger().Info("view created", "viewID", id,
		"transform", uint64(rec.Transform), "content", uint64(rec.Content))

	if hooks.OnCreated != nil {
		errors.Guard("views.OnCreated", hooks.OnCreated)
	}
	if hooks.OnBound != nil {
		errors.Guard("views.OnBound", func() { hooks.OnBound(rec.Content) })
	}
	return nil
}

// SetViewProperties updates a live view.
func (t *Tracker) SetViewProperties(id int64, occlusionHint geometry.Rect, hitTestable, focusable bool) error {
	rec, ok := t.records[id]
	if !ok || !rec.live() {
		return errors.ErrUnknownView
	}
	rec.OcclusionHint = occlusionHint
	rec.HitTestable = hitTestable
	rec.Focusable = focusable
	rec.State = StateUpdated
	return nil
}

// DestroyView marks a live view for destruction. onDestroyed runs from
// Complete, exactly once.
func (t *Tracker) DestroyView(id int64, onDestroyed func(scene.ContentID)) error {
	rec, ok := t.records[id]
	if !ok || !rec.live() {
		return errors.ErrUnknownView
	}
	rec.State = StatePendingDestroy
	rec.onDestroyed = onDestroyed
	logging.Logger().Debug("view pending destroy", "viewID", id)
	return nil
}

// View implements [scene.ViewSource]. Only live views are reported.
func (t *Tracker) View(id int64) (scene.ViewInfo, bool) {
	rec, ok := t.records[id]
	if !ok || !rec.live() {
		return scene.ViewInfo{}, false
	}
	return scene.ViewInfo{
		ID:            rec.ID,
		Transform:     rec.Transform,
		Content:       rec.Content,
		OcclusionHint: rec.OcclusionHint,
		HitTestable:   rec.HitTestable,
		Focusable:     rec.Focusable,
	}, true
}

// State returns the state of a view id. A view reaches StateGone inside
// Complete and its record is erased there, so ids that are Gone report
// StateUnknown, the same as ids that were never created.
func (t *Tracker) State(id int64) State {
	if rec, ok := t.records[id]; ok {
		return rec.State
	}
	return StateUnknown
}

// Len returns the number of records, including views pending destruction.
func (t *Tracker) Len() int {
	return len(t.records)
}

// Pending returns the ids pending destruction in ascending order.
func (t *Tracker) Pending() []int64 {
	var ids []int64
	for id, rec := range t.records {
		if rec.State == StatePendingDestroy {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Complete finishes the destruction of every pending view whose transform
// is no longer referenced, as reported by inUse. It returns the completed
// ids in ascending order.
func (t *Tracker) Complete(inUse func(scene.TransformID) bool) []int64 {
	var done []int64
	for _, id := range t.Pending() {
		rec := t.records[id]
		if inUse(rec.Transform) {
			continue
		}
		delete(t.records, id)
		done = append(done, id)
		logging.Logger().Info("view destroyed", "viewID", id)

		if cb := rec.onDestroyed; cb != nil {
			rec.onDestroyed = nil
			errors.Guard("views.OnDestroyed", func() { cb(rec.Content) })
		}
	}
	return done
}
