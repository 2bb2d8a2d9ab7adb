// Package embedder composes locally rasterized layers and embedded child
// views into one scene and submits it to a compositor.
//
// Callers drive it once per frame:
//
//	e.BeginFrame(size, dpr)
//	// draw into e.RootCanvas()
//	e.PrerollCompositeEmbeddedView(id, params)
//	// draw the overlay into the canvas returned by e.CompositeEmbeddedView(id)
//	e.EndFrame()
//	e.SubmitFrame()
//
// All methods except Deliver must be called from the same goroutine.
package embedder

import (
	"github.com/go-drift/flatland/pkg/canvas"
	"github.com/go-drift/flatland/pkg/config"
	"github.com/go-drift/flatland/pkg/errors"
	"github.com/go-drift/flatland/pkg/geometry"
	"github.com/go-drift/flatland/pkg/logging"
	"github.com/go-drift/flatland/pkg/present"
	"github.com/go-drift/flatland/pkg/scene"
	"github.com/go-drift/flatland/pkg/surface"
	"github.com/go-drift/flatland/pkg/views"
)

// Options configures an Embedder.
type Options struct {
	// InterceptAllInput places an input-capturing transform above all
	// content.
	InterceptAllInput bool
	// Strict panics on contract violations instead of reporting them.
	Strict bool
	// InitialCredits is the present credit available before the first ack.
	InitialCredits uint32
}

// OptionsFromConfig maps resolved configuration to embedder options.
func OptionsFromConfig(cfg *config.Resolved) Options {
	return Options{
		InterceptAllInput: cfg.InterceptAllInput,
		Strict:            cfg.Strict,
		InitialCredits:    cfg.InitialCredits,
	}
}

// Embedder owns the frame being recorded, the view records and the
// presentation pipeline of one compositor session.
type Embedder struct {
	opts     Options
	producer surface.Producer
	pipeline *present.Pipeline
	views    *views.Tracker
	builder  *scene.Builder

	frame      *scene.Frame
	frameEnded bool
}

// New returns an embedder that submits through transport and rasterizes
// into surfaces from producer.
func New(transport present.Transport, producer surface.Producer, opts Options) *Embedder {
	pipeline := present.New(transport, present.Options{InitialCredits: opts.InitialCredits})
	return &Embedder{
		opts:     opts,
		producer: producer,
		pipeline: pipeline,
		views:    views.NewTracker(pipeline),
		builder:  scene.NewBuilder(pipeline, scene.Options{InterceptAllInput: opts.InterceptAllInput}),
	}
}

// contract reports a caller contract violation, or panics in strict mode.
func (e *Embedder) contract(op string, viewID int64, err error) error {
	ee := errors.ForView("embedder."+op, errors.KindContract, viewID, err)
	ee.StackTrace = errors.CaptureStack()
	if e.opts.Strict {
		panic(ee)
	}
	errors.Report(ee)
	return ee
}

// BeginFrame opens a frame of size physical pixels at the given device
// pixel ratio.
func (e *Embedder) BeginFrame(size geometry.ISize, dpr float64) error {
	if e.frame != nil {
		return e.contract("BeginFrame", errors.NoView, errors.ErrFrameOpen)
	}
	e.processAcks()
	e.frame = scene.NewFrame(size, dpr)
	e.frameEnded = false
	return nil
}

// RootCanvas returns the background canvas of the open frame, or nil.
func (e *Embedder) RootCanvas() *canvas.Canvas {
	if e.frame == nil {
		return nil
	}
	return e.frame.Entries[0].Canvas
}

// Canvases returns every canvas of the open frame in composition order.
func (e *Embedder) Canvases() []*canvas.Canvas {
	if e.frame == nil {
		return nil
	}
	out := make([]*canvas.Canvas, len(e.frame.Entries))
	for i, entry := range e.frame.Entries {
		out[i] = entry.Canvas
	}
	return out
}

// FrameSize returns the size of the open frame.
func (e *Embedder) FrameSize() geometry.ISize {
	if e.frame == nil {
		return geometry.ISize{}
	}
	return e.frame.Size
}

// PostPrerollAction runs after preroll. Layer boundaries are created by the
// prerolled views, so there is nothing to restructure.
func (e *Embedder) PostPrerollAction() error {
	if e.frame == nil || e.frameEnded {
		return e.contract("PostPrerollAction", errors.NoView, errors.ErrNoFrame)
	}
	return nil
}

// PrerollCompositeEmbeddedView records the placement of a view and starts a
// new layer slot above it. Views that are not live are accepted here and
// skipped when the frame is built.
func (e *Embedder) PrerollCompositeEmbeddedView(viewID int64, params scene.EmbeddedViewParams) error {
	if e.frame == nil || e.frameEnded {
		return e.contract("PrerollCompositeEmbeddedView", viewID, errors.ErrNoFrame)
	}
	if e.frame.Slot(viewID) >= 0 {
		return e.contract("PrerollCompositeEmbeddedView", viewID, errors.ErrViewAlreadyPrerolled)
	}
	params.Mutators = params.Mutators.Clone()
	e.frame.AddView(viewID, params)
	return nil
}

// CompositeEmbeddedView returns the overlay canvas painted above the view.
func (e *Embedder) CompositeEmbeddedView(viewID int64) (*canvas.Canvas, error) {
	if e.frame == nil || e.frameEnded {
		return nil, e.contract("CompositeEmbeddedView", viewID, errors.ErrNoFrame)
	}
	slot := e.frame.Slot(viewID)
	if slot < 0 {
		return nil, e.contract("CompositeEmbeddedView", viewID, errors.ErrViewNotPrerolled)
	}
	return e.frame.Entries[slot].Canvas, nil
}

// EndFrame finishes recording.
func (e *Embedder) EndFrame() error {
	if e.frame == nil || e.frameEnded {
		return e.contract("EndFrame", errors.NoView, errors.ErrNoFrame)
	}
	e.frameEnded = true
	return nil
}

// SubmitFrame rasterizes the drawn slots, builds the frame's graph and
// hands it to the presentation pipeline. An ended frame is closed even if
// transmitting it fails.
func (e *Embedder) SubmitFrame() error {
	if e.frame == nil {
		return e.contract("SubmitFrame", errors.NoView, errors.ErrNoFrame)
	}
	if !e.frameEnded {
		return e.contract("SubmitFrame", errors.NoView, errors.ErrFrameNotEnded)
	}
	frame := e.frame
	e.frame = nil
	e.frameEnded = false

	e.processAcks()

	images, surfaces, acquire, release := e.rasterize(frame)
	list := e.builder.Build(frame, e.views, images)
	graph := e.builder.Graph(list, e.views)

	_, err := e.pipeline.Submit(graph, acquire, release)
	if len(surfaces) > 0 {
		e.producer.SubmitSurfaces(surfaces)
	}
	e.completeDestroyed()

	if err != nil {
		ee := asEmbedderError("embedder.SubmitFrame", errors.KindTransport, err)
		errors.Report(ee)
		return ee
	}
	return nil
}

// rasterize produces and fills a surface for every slot that drew
// something. Slots whose surface fails are left out for this frame.
func (e *Embedder) rasterize(frame *scene.Frame) (map[int]scene.SlotImage, []surface.Surface, []uint64, []uint64) {
	images := make(map[int]scene.SlotImage)
	var (
		surfaces         []surface.Surface
		acquire, release []uint64
	)
	for slot, entry := range frame.Entries {
		if !entry.Canvas.DidDraw() {
			continue
		}
		surf, err := e.producer.ProduceSurface(frame.Size)
		if err != nil {
			e.degraded(slot, entry, err)
			continue
		}
		surfaces = append(surfaces, surf)

		if err := surf.Rasterize(entry.Canvas.Picture()); err != nil {
			e.degraded(slot, entry, err)
			continue
		}
		if surf.ImageID() == 0 {
			surf.SetImageID(uint64(e.pipeline.NextContentID()))
		}
		images[slot] = scene.SlotImage{
			ID:    scene.ContentID(surf.ImageID()),
			Token: surf.ImportToken(),
			Size:  surf.Size(),
		}
		acquire = append(acquire, surf.AcquireFence())
		release = append(release, surf.ReleaseFence())
	}
	return images, surfaces, acquire, release
}

func (e *Embedder) degraded(slot int, entry scene.Entry, err error) {
	viewID := errors.NoView
	if entry.HasView {
		viewID = entry.ViewID
	}
	logging.Logger().Warn("layer skipped", "slot", slot, "viewID", viewID, "err", err)
	errors.Report(errors.ForView("embedder.SubmitFrame", errors.KindSurface, viewID, err))
}

// CreateView registers a child view. hooks run before CreateView returns.
func (e *Embedder) CreateView(viewID int64, hooks views.Hooks) error {
	if err := e.views.CreateView(viewID, hooks); err != nil {
		return e.contract("CreateView", viewID, err)
	}
	return nil
}

// SetViewProperties updates the occlusion hint and input flags of a view.
func (e *Embedder) SetViewProperties(viewID int64, occlusionHint geometry.Rect, hitTestable, focusable bool) error {
	if err := e.views.SetViewProperties(viewID, occlusionHint, hitTestable, focusable); err != nil {
		return e.contract("SetViewProperties", viewID, err)
	}
	return nil
}

// DestroyView removes a child view from the next frame and from a frame
// still waiting for credit. onDestroyed runs once the view's node is gone
// from every graph the compositor may still show; for a view that was never
// transmitted that is immediately.
func (e *Embedder) DestroyView(viewID int64, onDestroyed func(scene.ContentID)) error {
	if err := e.views.DestroyView(viewID, onDestroyed); err != nil {
		return e.contract("DestroyView", viewID, err)
	}
	e.pipeline.Retarget(func(g *scene.Graph) *scene.Graph {
		return e.builder.Prune(g, e.views)
	})
	e.completeDestroyed()
	return nil
}

// ViewState returns the lifecycle state of a view.
func (e *Embedder) ViewState(viewID int64) views.State {
	return e.views.State(viewID)
}

// Deliver hands a compositor acknowledgment to the embedder. It is safe to
// call from any goroutine.
func (e *Embedder) Deliver(ack present.Ack) {
	e.pipeline.Deliver(ack)
}

// Ready is signaled when acknowledgments are waiting for ProcessAcks.
func (e *Embedder) Ready() <-chan struct{} {
	return e.pipeline.Ready()
}

// ProcessAcks applies pending acknowledgments, transmitting a queued frame
// if credit allows.
func (e *Embedder) ProcessAcks() error {
	return e.processAcks()
}

func (e *Embedder) processAcks() error {
	_, err := e.pipeline.ProcessAcks()
	e.completeDestroyed()
	if err != nil {
		ee := asEmbedderError("embedder.ProcessAcks", errors.KindTransport, err)
		errors.Report(ee)
		return ee
	}
	return nil
}

func (e *Embedder) completeDestroyed() {
	e.views.Complete(e.pipeline.References)
}

// Credits returns the current present credit.
func (e *Embedder) Credits() uint32 {
	return e.pipeline.Credits()
}

// Queued reports whether a submitted frame is waiting for credit.
func (e *Embedder) Queued() bool {
	return e.pipeline.Queued()
}

// Committed returns the last graph transmitted to the compositor.
func (e *Embedder) Committed() *scene.Graph {
	return e.pipeline.Committed()
}

// Stats returns the presentation counters.
func (e *Embedder) Stats() present.Stats {
	return e.pipeline.Stats()
}

func asEmbedderError(op string, kind errors.ErrorKind, err error) *errors.EmbedderError {
	var ee *errors.EmbedderError
	if errors.As(err, &ee) {
		return ee
	}
	return errors.New(op, kind, err)
}
