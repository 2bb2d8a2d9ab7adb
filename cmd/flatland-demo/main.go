// Command flatland-demo drives the embedder against the in-memory
// compositor and writes a preview of the final scene as a PNG.
//
// Usage:
//
//	flatland-demo [-config flatland.yaml] [-frames 8] [-out flatland.png]
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-drift/flatland/pkg/canvas"
	"github.com/go-drift/flatland/pkg/compositor"
	"github.com/go-drift/flatland/pkg/config"
	"github.com/go-drift/flatland/pkg/embedder"
	"github.com/go-drift/flatland/pkg/errors"
	"github.com/go-drift/flatland/pkg/geometry"
	"github.com/go-drift/flatland/pkg/logging"
	"github.com/go-drift/flatland/pkg/mutators"
	"github.com/go-drift/flatland/pkg/present"
	"github.com/go-drift/flatland/pkg/scene"
	"github.com/go-drift/flatland/pkg/surface"
	"github.com/go-drift/flatland/pkg/views"
)

const (
	viewID = 1
	dpr    = 2.0
)

var frameSize = geometry.ISize{Width: 800, Height: 600}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("flatland-demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to "+config.FileName+" (default: ./"+config.FileName+" if present)")
	frames := fs.Int("frames", 8, "number of frames to submit")
	out := fs.String("out", "flatland.png", "where to write the preview")
	vsync := fs.Duration("vsync", time.Millisecond, "delay before the compositor acknowledges a present")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *frames < 1 {
		return fmt.Errorf("-frames must be at least 1, got %d", *frames)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	defer logging.SetLogger(nil)
	errors.SetHandler(&errors.LogHandler{Verbose: cfg.LogLevel <= slog.LevelDebug})
	defer errors.SetHandler(nil)

	logging.Logger().Info("starting", "protocol", cfg.ProtocolVersion, "frames", *frames, "credits", cfg.InitialCredits)

	presented := make(chan present.PresentArgs, *frames)
	producer := surface.NewSoftware()
	comp := compositor.NewMemory(compositor.Options{
		Images: producer,
		OnPresent: func(args present.PresentArgs) {
			presented <- args
		},
	})
	e := embedder.New(comp, producer, embedder.OptionsFromConfig(cfg))

	g, ctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})

	g.Go(func() error {
		if cfg.InitialCredits == 0 {
			e.Deliver(present.Ack{AdditionalCredits: 1})
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-loopDone:
				return nil
			case args := <-presented:
				select {
				case <-time.After(*vsync):
				case <-ctx.Done():
					return nil
				}
				logging.Logger().Debug("vsync", "acquireFences", len(args.AcquireFences))
				e.Deliver(present.Ack{AdditionalCredits: 1})
			}
		}
	})

	g.Go(func() error {
		defer close(loopDone)
		return frameLoop(ctx, e, *frames)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if err := writePreview(*out, comp); err != nil {
		return err
	}
	stats := e.Stats()
	fmt.Fprintf(stdout, "frames=%d presents=%d coalesced=%d acks=%d preview=%s\n",
		*frames, stats.Presents, stats.Coalesced, stats.Acks, *out)
	return nil
}

func loadConfig(path string) (*config.Resolved, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.LoadOptional(".")
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}
	return cfg.Resolve()
}

// frameLoop creates the child view, resizes it every frame, destroys it
// two frames before the end and waits for the final frame to be shown.
func frameLoop(ctx context.Context, e *embedder.Embedder, frames int) error {
	destroyAt := max(frames-2, 1)
	live := false

	for i := range frames {
		switch {
		case i == 0:
			err := e.CreateView(viewID, views.Hooks{
				OnBound: func(id scene.ContentID) {
					logging.Logger().Info("view bound", "viewID", viewID, "viewport", id)
				},
			})
			if err != nil {
				return err
			}
			live = true
		case i == destroyAt:
			err := e.DestroyView(viewID, func(id scene.ContentID) {
				logging.Logger().Info("view destroyed", "viewID", viewID, "viewport", id)
			})
			if err != nil {
				return err
			}
			live = false
		}

		if err := drawFrame(e, i, live); err != nil {
			return err
		}
		if err := waitForCredit(ctx, e); err != nil {
			return err
		}
	}

	for e.Queued() {
		if e.Credits() > 0 {
			if err := e.ProcessAcks(); err != nil {
				return err
			}
			continue
		}
		if err := waitForCredit(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// waitForCredit blocks until at least one present credit is available.
func waitForCredit(ctx context.Context, e *embedder.Embedder) error {
	for e.Credits() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.Ready():
			if err := e.ProcessAcks(); err != nil {
				return err
			}
		}
	}
	return nil
}

func drawFrame(e *embedder.Embedder, i int, withView bool) error {
	if err := e.BeginFrame(frameSize, dpr); err != nil {
		return err
	}
	root := e.RootCanvas()
	root.Clear(color.NRGBA{R: 0x20, G: 0x24, B: 0x30, A: 0xff})
	root.Scale(dpr, dpr)
	root.DrawRRect(geometry.RectFromLTWH(20, 20, 360, 40), 8, canvas.Paint{Color: color.NRGBA{R: 0x3d, G: 0x7e, B: 0xff, A: 0xff}})

	if withView {
		width := 160 + float64(i)*10
		placement := geometry.Scale(dpr, dpr).Multiply(geometry.Translate(40, 90))
		var stack mutators.Stack
		stack.PushTransform(placement)
		stack.PushOpacity(230)
		params := scene.EmbeddedViewParams{
			Matrix:   placement,
			Size:     geometry.Size{Width: width, Height: 120},
			Mutators: stack,
		}
		if err := e.PrerollCompositeEmbeddedView(viewID, params); err != nil {
			return err
		}
		if err := e.PostPrerollAction(); err != nil {
			return err
		}
		overlay, err := e.CompositeEmbeddedView(viewID)
		if err != nil {
			return err
		}
		overlay.Scale(dpr, dpr)
		overlay.DrawCircle(geometry.Offset{X: 40 + width, Y: 90}, 12, canvas.Paint{Color: color.NRGBA{R: 0xff, G: 0x55, B: 0x55, A: 0xff}})
	}

	if err := e.EndFrame(); err != nil {
		return err
	}
	return e.SubmitFrame()
}

func writePreview(path string, comp *compositor.Memory) error {
	img := comp.Render(geometry.ISize{Width: int(float64(frameSize.Width) / dpr), Height: int(float64(frameSize.Height) / dpr)})
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
