package embedder

import (
	stderrors "errors"
	"image/color"
	"reflect"
	"sync"
	"testing"

	"github.com/go-drift/flatland/pkg/canvas"
	"github.com/go-drift/flatland/pkg/compositor"
	"github.com/go-drift/flatland/pkg/errors"
	"github.com/go-drift/flatland/pkg/geometry"
	"github.com/go-drift/flatland/pkg/mutators"
	"github.com/go-drift/flatland/pkg/present"
	"github.com/go-drift/flatland/pkg/scene"
	"github.com/go-drift/flatland/pkg/surface"
	"github.com/go-drift/flatland/pkg/views"
)

var (
	green = canvas.Paint{Color: color.NRGBA{G: 255, A: 255}}
	red   = canvas.Paint{Color: color.NRGBA{R: 255, A: 255}}
)

// recordingTransport forwards to a Memory compositor and keeps every
// applied mutation.
type recordingTransport struct {
	*compositor.Memory
	sets []scene.MutationSet
}

func (r *recordingTransport) Apply(set scene.MutationSet) error {
	if err := r.Memory.Apply(set); err != nil {
		return err
	}
	r.sets = append(r.sets, set)
	return nil
}

func (r *recordingTransport) all() scene.MutationSet {
	var out scene.MutationSet
	for _, s := range r.sets {
		out = append(out, s...)
	}
	return out
}

// testHandler collects reported errors.
type testHandler struct {
	mu     sync.Mutex
	errors []*errors.EmbedderError
}

func (h *testHandler) HandleError(err *errors.EmbedderError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, err)
}

func (h *testHandler) HandlePanic(*errors.PanicError) {}

func installHandler(t *testing.T) *testHandler {
	t.Helper()
	h := &testHandler{}
	errors.SetHandler(h)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return h
}

type harness struct {
	e         *Embedder
	transport *recordingTransport
	producer  *surface.Software
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	producer := surface.NewSoftware()
	transport := &recordingTransport{Memory: compositor.NewMemory(compositor.Options{Images: producer})}
	return &harness{
		e:         New(transport, producer, opts),
		transport: transport,
		producer:  producer,
	}
}

// layers returns the attached nodes of the compositor's graph in order.
func (h *harness) layers() []scene.Node {
	g := h.transport.Snapshot()
	out := make([]scene.Node, len(g.Children))
	for i, id := range g.Children {
		out[i] = g.Nodes[id]
	}
	return out
}

// ack grants credits and lets the embedder process them.
func (h *harness) ack(t *testing.T, n uint32) {
	t.Helper()
	h.e.Deliver(present.Ack{AdditionalCredits: n})
	if err := h.e.ProcessAcks(); err != nil {
		t.Fatalf("ProcessAcks: %v", err)
	}
}

func drawSimpleFrame(t *testing.T, e *Embedder, size geometry.ISize, dpr float64, draw func(*canvas.Canvas)) {
	t.Helper()
	must(t, e.BeginFrame(size, dpr))
	if draw != nil {
		draw(e.RootCanvas())
	}
	must(t, e.EndFrame())
	must(t, e.SubmitFrame())
}

func drawFrameWithView(t *testing.T, e *Embedder, size geometry.ISize, dpr float64, viewID int64,
	params scene.EmbeddedViewParams, background, overlay func(*canvas.Canvas)) {
	t.Helper()
	must(t, e.BeginFrame(size, dpr))
	must(t, e.PrerollCompositeEmbeddedView(viewID, params))
	must(t, e.PostPrerollAction())
	if background != nil {
		background(e.RootCanvas())
	}
	c, err := e.CompositeEmbeddedView(viewID)
	must(t, err)
	if overlay != nil {
		overlay(c)
	}
	must(t, e.EndFrame())
	must(t, e.SubmitFrame())
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// rectAt draws a w/32 x h/32 rect at the given fraction of the canvas.
func rectAt(fx, fy float64, paint canvas.Paint) func(*canvas.Canvas) {
	return func(c *canvas.Canvas) {
		size := c.Size()
		w, h := float64(size.Width), float64(size.Height)
		c.Translate(w*fx, h*fy)
		c.DrawRect(geometry.RectFromLTWH(0, 0, w/32, h/32), paint)
	}
}

func hitRegions(rects ...geometry.Rect) []scene.HitRegion {
	out := make([]scene.HitRegion, len(rects))
	for i, r := range rects {
		out[i] = scene.HitRegion{Rect: r, Interaction: scene.InteractionDefault}
	}
	return out
}

var frame512 = geometry.ISize{Width: 512, Height: 512}

func TestRootScene(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1})
	drawSimpleFrame(t, h.e, frame512, 1, nil)

	if h.transport.Presents() != 1 {
		t.Fatalf("presents = %d, want 1", h.transport.Presents())
	}
	g := h.transport.Snapshot()
	if g.Root == 0 || len(g.Children) != 0 {
		t.Errorf("graph = %+v, want a bare root", g)
	}

	h.ack(t, 1)
	applied := h.transport.Applied()
	drawSimpleFrame(t, h.e, frame512, 1, nil)
	if h.transport.Presents() != 1 || h.transport.Applied() != applied {
		t.Error("empty frame against an empty graph transmitted something")
	}
	if h.e.Credits() != 1 {
		t.Errorf("credits = %d, want 1", h.e.Credits())
	}
}

func TestSimpleScene(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1})
	drawSimpleFrame(t, h.e, frame512, 1, rectAt(0.25, 0.5, green))

	layers := h.layers()
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}
	want := hitRegions(geometry.RectFromLTWH(128, 256, 16, 16))
	if !reflect.DeepEqual(layers[0].HitRegions, want) {
		t.Errorf("hit regions = %v, want %v", layers[0].HitRegions, want)
	}
	g := h.transport.Snapshot()
	img := g.Images[layers[0].Content.ID]
	if img.DestinationSize != frame512 || img.Blend != scene.BlendReplace {
		t.Errorf("image = %+v", img)
	}
}

func TestSimpleSceneHitRegions(t *testing.T) {
	tests := []struct {
		name string
		draw func(*canvas.Canvas)
		want []scene.HitRegion
	}{
		{
			name: "disjoint",
			draw: func(c *canvas.Canvas) {
				c.DrawRect(geometry.RectFromLTWH(128, 256, 16, 16), green)
				c.DrawRect(geometry.RectFromLTWH(384, 256, 16, 16), red)
			},
			want: hitRegions(
				geometry.RectFromLTWH(128, 256, 16, 16),
				geometry.RectFromLTWH(384, 256, 16, 16),
			),
		},
		{
			name: "overlapping",
			draw: func(c *canvas.Canvas) {
				c.DrawRect(geometry.RectFromLTWH(128, 256, 192, 128), green)
				c.DrawRect(geometry.RectFromLTWH(192, 256, 192, 128), red)
			},
			want: hitRegions(geometry.RectFromLTWH(128, 256, 256, 128)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{InitialCredits: 1})
			drawSimpleFrame(t, h.e, frame512, 1, tt.draw)
			layers := h.layers()
			if len(layers) != 1 {
				t.Fatalf("got %d layers, want 1", len(layers))
			}
			if !reflect.DeepEqual(layers[0].HitRegions, tt.want) {
				t.Errorf("hit regions = %v, want %v", layers[0].HitRegions, tt.want)
			}
		})
	}
}

func TestSceneWithOneView(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1})
	drawSimpleFrame(t, h.e, frame512, 1, nil)

	const viewID = 42
	var bound scene.ContentID
	must(t, h.e.CreateView(viewID, views.Hooks{OnBound: func(id scene.ContentID) { bound = id }}))
	must(t, h.e.SetViewProperties(viewID, geometry.Rect{Left: 1, Top: 2, Right: 3, Bottom: 4}, false, false))

	scale := geometry.Scale(3, 4)
	var stack mutators.Stack
	stack.PushOpacity(200)
	stack.PushTransform(scale)
	params := scene.EmbeddedViewParams{Matrix: scale, Size: geometry.Size{Width: 256, Height: 512}, Mutators: stack}

	// No credit left: the frame is queued.
	drawFrameWithView(t, h.e, frame512, 2, viewID, params, rectAt(0.25, 0.5, green), rectAt(0.75, 0.5, red))
	if len(h.layers()) != 0 {
		t.Fatal("frame transmitted without credit")
	}

	h.ack(t, 1)
	layers := h.layers()
	if len(layers) != 3 {
		t.Fatalf("got %d layers, want 3", len(layers))
	}
	g := h.transport.Snapshot()
	if g.RootScale != 0.5 {
		t.Errorf("root scale = %v, want 0.5", g.RootScale)
	}

	if !reflect.DeepEqual(layers[0].HitRegions, hitRegions(geometry.RectFromLTWH(128, 256, 16, 16))) {
		t.Errorf("bottom layer hit regions = %v", layers[0].HitRegions)
	}
	if g.Images[layers[0].Content.ID].Blend != scene.BlendReplace {
		t.Error("bottom layer should replace")
	}

	vnode := layers[1]
	if vnode.Content.Kind != scene.ContentViewport || vnode.Content.ID != bound {
		t.Errorf("view content = %v, want viewport %d", vnode.Content, bound)
	}
	if vnode.Scale != (scene.Vec{X: 3, Y: 4}) || vnode.Translation != (scene.Vec{}) {
		t.Errorf("view transform: translation %v scale %v", vnode.Translation, vnode.Scale)
	}
	if vnode.Opacity != 200.0/255.0 {
		t.Errorf("view opacity = %v", vnode.Opacity)
	}
	if len(vnode.HitRegions) != 0 {
		t.Errorf("view node has hit regions %v", vnode.HitRegions)
	}
	vp := g.Viewports[bound]
	wantProps := scene.ViewportProperties{
		LogicalSize: geometry.ISize{Width: 256, Height: 512},
		Inset:       scene.Inset{Top: 2, Right: 3, Bottom: 4, Left: 1},
	}
	if vp.Properties != wantProps || vp.ViewID != viewID {
		t.Errorf("viewport = %+v, want %+v", vp, wantProps)
	}

	if !reflect.DeepEqual(layers[2].HitRegions, hitRegions(geometry.RectFromLTWH(384, 256, 16, 16))) {
		t.Errorf("top layer hit regions = %v", layers[2].HitRegions)
	}
	if g.Images[layers[2].Content.ID].Blend != scene.BlendSourceOver {
		t.Error("upper layer should composite over")
	}

	// Destroying the view does not touch the compositor by itself.
	destroyed := 0
	must(t, h.e.DestroyView(viewID, func(id scene.ContentID) {
		destroyed++
		if id != bound {
			t.Errorf("destroy callback content = %d, want %d", id, bound)
		}
	}))
	if len(h.layers()) != 3 {
		t.Fatal("destroy changed the compositor graph synchronously")
	}
	if destroyed != 0 || h.e.ViewState(viewID) != views.StatePendingDestroy {
		t.Fatal("destroy completed while the view is still displayed")
	}

	drawSimpleFrame(t, h.e, frame512, 1, rectAt(0.25, 0.5, green))
	if len(h.layers()) != 3 || destroyed != 0 {
		t.Fatal("frame without the view transmitted without credit")
	}

	h.ack(t, 1)
	layers = h.layers()
	if len(layers) != 1 {
		t.Fatalf("got %d layers after destroy, want 1", len(layers))
	}
	if len(h.transport.Snapshot().Viewports) != 0 {
		t.Error("viewport not released")
	}
	if destroyed != 1 {
		t.Errorf("destroy callback fired %d times, want 1", destroyed)
	}
	if d := scene.Diff(h.e.Committed(), h.transport.Snapshot()); !d.Empty() {
		t.Errorf("compositor diverged from committed graph: %v", d)
	}
}

func TestCreateThenDestroyWithoutFrame(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1})
	const viewID = 7

	created := 0
	must(t, h.e.CreateView(viewID, views.Hooks{OnCreated: func() { created++ }}))
	destroyed := 0
	must(t, h.e.DestroyView(viewID, func(scene.ContentID) { destroyed++ }))

	if created != 1 || destroyed != 1 {
		t.Fatalf("created %d destroyed %d, want 1 and 1", created, destroyed)
	}

	params := scene.EmbeddedViewParams{Matrix: geometry.Identity(), Size: geometry.Size{Width: 10, Height: 10}}
	drawFrameWithView(t, h.e, frame512, 1, viewID, params, rectAt(0, 0, green), nil)

	creates := 0
	for _, m := range h.transport.all() {
		switch m.(type) {
		case scene.CreateTransform:
			creates++
		case scene.CreateViewport:
			t.Errorf("viewport created for destroyed view: %v", m)
		}
	}
	if creates != 2 {
		t.Errorf("CreateTransform count = %d, want 2 (root and background layer)", creates)
	}
	if destroyed != 1 {
		t.Errorf("destroy callback fired %d times, want 1", destroyed)
	}

	if err := h.e.CreateView(viewID, views.Hooks{}); err != nil {
		t.Errorf("reuse after completed destroy: %v", err)
	}
}

func TestReuseBeforeDestroyCompletes(t *testing.T) {
	installHandler(t)
	h := newHarness(t, Options{InitialCredits: 1})
	const viewID = 3
	params := scene.EmbeddedViewParams{Matrix: geometry.Identity(), Size: geometry.Size{Width: 10, Height: 10}}

	must(t, h.e.CreateView(viewID, views.Hooks{}))
	drawFrameWithView(t, h.e, frame512, 1, viewID, params, nil, nil)
	must(t, h.e.DestroyView(viewID, nil))

	if err := h.e.CreateView(viewID, views.Hooks{}); !errors.Is(err, errors.ErrDuplicateView) {
		t.Fatalf("early reuse err = %v, want ErrDuplicateView", err)
	}

	h.ack(t, 1)
	drawSimpleFrame(t, h.e, frame512, 1, nil)
	if h.e.ViewState(viewID) != views.StateUnknown {
		t.Fatalf("state = %v, want erased", h.e.ViewState(viewID))
	}
	must(t, h.e.CreateView(viewID, views.Hooks{}))
}

func TestDestroyedViewIsSkipped(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1})
	params := scene.EmbeddedViewParams{Matrix: geometry.Identity(), Size: geometry.Size{Width: 10, Height: 10}}
	must(t, h.e.CreateView(5, views.Hooks{}))

	must(t, h.e.BeginFrame(frame512, 1))
	must(t, h.e.PrerollCompositeEmbeddedView(5, params))
	must(t, h.e.DestroyView(5, nil))
	c, err := h.e.CompositeEmbeddedView(5)
	must(t, err)
	rectAt(0, 0, green)(c)
	must(t, h.e.EndFrame())
	must(t, h.e.SubmitFrame())

	layers := h.layers()
	if len(layers) != 1 || layers[0].Content.Kind != scene.ContentImage {
		t.Errorf("layers = %+v, want only the overlay image", layers)
	}
}

func TestCoalescedFramesSendLatestState(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 0})
	drawSimpleFrame(t, h.e, frame512, 1, rectAt(0, 0, green))
	drawSimpleFrame(t, h.e, frame512, 1, rectAt(0.5, 0.5, green))
	if h.transport.Presents() != 0 {
		t.Fatal("transmitted without credit")
	}

	h.ack(t, 1)
	if h.transport.Presents() != 1 {
		t.Fatalf("presents = %d, want 1", h.transport.Presents())
	}
	layers := h.layers()
	want := hitRegions(geometry.RectFromLTWH(256, 256, 16, 16))
	if len(layers) != 1 || !reflect.DeepEqual(layers[0].HitRegions, want) {
		t.Errorf("layers = %+v, want the second frame", layers)
	}
	if h.e.Credits() != 0 {
		t.Errorf("credits = %d, want 0", h.e.Credits())
	}
	if h.e.Stats().Coalesced != 1 {
		t.Errorf("coalesced = %d, want 1", h.e.Stats().Coalesced)
	}
	last, _ := h.transport.LastPresent()
	if len(last.AcquireFences) != 2 {
		t.Errorf("acquire fences = %v, want both frames' fences", last.AcquireFences)
	}
}

func TestLayerOrderFollowsRecording(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1})
	params := scene.EmbeddedViewParams{Matrix: geometry.Identity(), Size: geometry.Size{Width: 10, Height: 10}}
	var content []scene.ContentID
	for _, id := range []int64{1, 2} {
		must(t, h.e.CreateView(id, views.Hooks{OnBound: func(c scene.ContentID) { content = append(content, c) }}))
	}

	must(t, h.e.BeginFrame(frame512, 1))
	rectAt(0, 0, green)(h.e.RootCanvas())
	must(t, h.e.PrerollCompositeEmbeddedView(2, params))
	must(t, h.e.PrerollCompositeEmbeddedView(1, params))
	c, _ := h.e.CompositeEmbeddedView(2)
	rectAt(0.5, 0, green)(c)
	must(t, h.e.EndFrame())
	must(t, h.e.SubmitFrame())

	layers := h.layers()
	kinds := make([]scene.Content, len(layers))
	for i, l := range layers {
		kinds[i] = l.Content
	}
	if len(layers) != 4 {
		t.Fatalf("layers = %v, want 4", kinds)
	}
	if layers[0].Content.Kind != scene.ContentImage ||
		layers[1].Content != (scene.Content{Kind: scene.ContentViewport, ID: content[1]}) ||
		layers[2].Content.Kind != scene.ContentImage ||
		layers[3].Content != (scene.Content{Kind: scene.ContentViewport, ID: content[0]}) {
		t.Errorf("layer order = %v", kinds)
	}
}

func TestInputInterceptor(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1, InterceptAllInput: true})
	drawSimpleFrame(t, h.e, frame512, 1, rectAt(0.25, 0.5, green))

	layers := h.layers()
	if len(layers) != 2 {
		t.Fatalf("got %d layers, want image and interceptor", len(layers))
	}
	top := layers[1]
	want := []scene.HitRegion{{
		Rect:        geometry.RectFromLTWH(0, 0, scene.MaxHitRegionSize, scene.MaxHitRegionSize),
		Interaction: scene.InteractionSemanticallyInvisible,
	}}
	if !reflect.DeepEqual(top.HitRegions, want) {
		t.Errorf("interceptor regions = %v", top.HitRegions)
	}
}

func TestDevicePixelRatioRoundTrip(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1})
	must(t, h.e.CreateView(1, views.Hooks{}))

	frame := geometry.ISize{Width: 200, Height: 400}
	params := scene.EmbeddedViewParams{Matrix: geometry.Scale(2, 2), Size: geometry.Size{Width: 50, Height: 100}}
	drawFrameWithView(t, h.e, frame, 2, 1, params, func(c *canvas.Canvas) { c.Clear(red.Color) }, nil)

	g := h.transport.Snapshot()
	var view scene.Node
	for _, n := range h.layers() {
		if n.Content.Kind == scene.ContentViewport {
			view = n
		}
	}
	vp := g.Viewports[view.Content.ID]
	shownW := float64(vp.Properties.LogicalSize.Width) * view.Scale.X * g.RootScale
	shownH := float64(vp.Properties.LogicalSize.Height) * view.Scale.Y * g.RootScale
	if shownW != 50 || shownH != 100 {
		t.Errorf("view displayed at %vx%v, want 50x100", shownW, shownH)
	}

	out := h.transport.Render(geometry.ISize{Width: 100, Height: 200})
	want := color.RGBA{R: 255, A: 255}
	for _, p := range [][2]int{{99, 0}, {0, 199}, {99, 199}} {
		if got := out.RGBAAt(p[0], p[1]); got != want {
			t.Errorf("pixel %v = %v, want background covering the whole logical frame", p, got)
		}
	}
	gray := color.RGBAModel.Convert(compositor.ViewportColor).(color.RGBA)
	if got := out.RGBAAt(25, 50); got != gray {
		t.Errorf("pixel inside the view = %v, want placeholder %v", got, gray)
	}
}

func TestSurfaceFailureDropsLayer(t *testing.T) {
	handler := installHandler(t)
	producer := &failingProducer{Software: surface.NewSoftware(), failOn: 2}
	transport := compositor.NewMemory(compositor.Options{})
	e := New(transport, producer, Options{InitialCredits: 1})
	must(t, e.CreateView(1, views.Hooks{}))

	params := scene.EmbeddedViewParams{Matrix: geometry.Identity(), Size: geometry.Size{Width: 10, Height: 10}}
	drawFrameWithView(t, e, frame512, 1, 1, params, rectAt(0, 0, green), rectAt(0.5, 0.5, red))

	g := transport.Snapshot()
	if len(g.Children) != 2 {
		t.Fatalf("got %d layers, want background and view", len(g.Children))
	}
	if len(handler.errors) != 1 || handler.errors[0].Kind != errors.KindSurface || handler.errors[0].ViewID != 1 {
		t.Errorf("reported = %v, want one surface error for view 1", handler.errors)
	}
}

type failingProducer struct {
	*surface.Software
	calls  int
	failOn int
}

func (p *failingProducer) ProduceSurface(size geometry.ISize) (surface.Surface, error) {
	p.calls++
	if p.calls == p.failOn {
		return nil, stderrors.New("out of buffers")
	}
	return p.Software.ProduceSurface(size)
}

func TestContractViolations(t *testing.T) {
	tests := []struct {
		name string
		run  func(e *Embedder) error
		want error
	}{
		{
			name: "begin twice",
			run: func(e *Embedder) error {
				e.BeginFrame(frame512, 1)
				return e.BeginFrame(frame512, 1)
			},
			want: errors.ErrFrameOpen,
		},
		{
			name: "end without frame",
			run:  func(e *Embedder) error { return e.EndFrame() },
			want: errors.ErrNoFrame,
		},
		{
			name: "submit before end",
			run: func(e *Embedder) error {
				e.BeginFrame(frame512, 1)
				return e.SubmitFrame()
			},
			want: errors.ErrFrameNotEnded,
		},
		{
			name: "preroll twice",
			run: func(e *Embedder) error {
				e.BeginFrame(frame512, 1)
				e.PrerollCompositeEmbeddedView(1, scene.EmbeddedViewParams{})
				return e.PrerollCompositeEmbeddedView(1, scene.EmbeddedViewParams{})
			},
			want: errors.ErrViewAlreadyPrerolled,
		},
		{
			name: "composite without preroll",
			run: func(e *Embedder) error {
				e.BeginFrame(frame512, 1)
				_, err := e.CompositeEmbeddedView(1)
				return err
			},
			want: errors.ErrViewNotPrerolled,
		},
		{
			name: "duplicate create",
			run: func(e *Embedder) error {
				e.CreateView(1, views.Hooks{})
				return e.CreateView(1, views.Hooks{})
			},
			want: errors.ErrDuplicateView,
		},
		{
			name: "properties of unknown view",
			run: func(e *Embedder) error {
				return e.SetViewProperties(9, geometry.Rect{}, true, true)
			},
			want: errors.ErrUnknownView,
		},
		{
			name: "destroy unknown view",
			run:  func(e *Embedder) error { return e.DestroyView(9, nil) },
			want: errors.ErrUnknownView,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := installHandler(t)
			h := newHarness(t, Options{InitialCredits: 1})
			err := tt.run(h.e)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ee *errors.EmbedderError
			if !errors.As(err, &ee) || ee.Kind != errors.KindContract {
				t.Errorf("err = %#v, want a contract EmbedderError", err)
			}
			if len(handler.errors) != 1 {
				t.Errorf("reported %d errors, want 1", len(handler.errors))
			}
		})
	}
}

func TestBeginFrameTwiceKeepsOpenFrame(t *testing.T) {
	installHandler(t)
	h := newHarness(t, Options{InitialCredits: 1})
	must(t, h.e.BeginFrame(frame512, 1))
	root := h.e.RootCanvas()
	h.e.BeginFrame(geometry.ISize{Width: 1, Height: 1}, 1)
	if h.e.RootCanvas() != root || h.e.FrameSize() != frame512 {
		t.Error("second BeginFrame replaced the open frame")
	}
}

func TestStrictModePanics(t *testing.T) {
	h := newHarness(t, Options{InitialCredits: 1, Strict: true})
	defer func() {
		r := recover()
		ee, ok := r.(*errors.EmbedderError)
		if !ok || !errors.Is(ee, errors.ErrNoFrame) {
			t.Errorf("recovered %v, want EmbedderError wrapping ErrNoFrame", r)
		}
	}()
	h.e.EndFrame()
	t.Error("EndFrame without a frame did not panic in strict mode")
}

func TestDestroyCancelsQueuedFrame(t *testing.T) {
	tests := []struct {
		name string
		// shownFirst transmits a frame with the view before the queued one.
		shownFirst    bool
		firedAtDelete int
	}{
		{name: "view only in queued frame", firedAtDelete: 1},
		{name: "view shown and queued again", shownFirst: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const viewID = 7
			h := newHarness(t, Options{InitialCredits: 1})
			params := scene.EmbeddedViewParams{Matrix: geometry.Identity(), Size: geometry.Size{Width: 10, Height: 10}}
			must(t, h.e.CreateView(viewID, views.Hooks{}))

			if tt.shownFirst {
				drawFrameWithView(t, h.e, frame512, 1, viewID, params, rectAt(0, 0, green), nil)
			} else {
				drawSimpleFrame(t, h.e, frame512, 1, rectAt(0, 0, green))
			}
			viewportsBefore := len(h.transport.Snapshot().Viewports)

			drawFrameWithView(t, h.e, frame512, 1, viewID, params, rectAt(0.5, 0, green), nil)
			if !h.e.Queued() {
				t.Fatal("second frame should wait for credit")
			}

			fired := 0
			must(t, h.e.DestroyView(viewID, func(scene.ContentID) { fired++ }))
			if fired != tt.firedAtDelete {
				t.Errorf("callback fired %d times at destroy, want %d", fired, tt.firedAtDelete)
			}

			applied := len(h.transport.sets)
			h.ack(t, 1)
			for _, set := range h.transport.sets[applied:] {
				for _, m := range set {
					if _, ok := m.(scene.CreateViewport); ok {
						t.Errorf("destroyed view's viewport sent: %v", m)
					}
				}
			}
			g := h.transport.Snapshot()
			if len(g.Viewports) != 0 {
				t.Errorf("compositor has %d viewports (had %d before), want 0", len(g.Viewports), viewportsBefore)
			}
			if len(g.Children) != 1 {
				t.Errorf("compositor shows %d layers, want the raster layer only", len(g.Children))
			}
			if fired != 1 {
				t.Errorf("callback fired %d times, want 1", fired)
			}
			if s := h.e.ViewState(viewID); s != views.StateUnknown {
				t.Errorf("state = %v, want erased", s)
			}
		})
	}
}
