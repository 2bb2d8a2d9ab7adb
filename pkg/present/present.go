// Package present paces graph submissions against present credits granted
// by the compositor.
//
// The pipeline keeps two graphs: the committed graph, which is what the
// compositor was last sent, and at most one queued target. Submitting a new
// target while one is queued replaces it, so under backpressure only the
// latest state is ever transmitted. A transmission applies
// Diff(committed, target) and requests a present, consuming one credit.
package present

import (
	"sync"

	"github.com/go-drift/flatland/pkg/errors"
	"github.com/go-drift/flatland/pkg/logging"
	"github.com/go-drift/flatland/pkg/scene"
)

// PresentArgs accompany a present request. Fences are opaque tokens
// produced by the rasterizer.
type PresentArgs struct {
	AcquireFences []uint64
	ReleaseFences []uint64
}

// Ack is the compositor's acknowledgment that grants more credits.
type Ack struct {
	AdditionalCredits uint32
}

// Transport carries mutations and present requests to the compositor.
// Apply must either apply the whole set or fail without applying any of it.
type Transport interface {
	Apply(set scene.MutationSet) error
	Present(args PresentArgs) error
}

// Status describes the outcome of Submit or ProcessAcks.
type Status int

const (
	// StatusIdle means there was nothing to transmit.
	StatusIdle Status = iota
	// StatusQueued means a target is waiting for credit.
	StatusQueued
	// StatusPresented means a present was transmitted.
	StatusPresented
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusPresented:
		return "presented"
	default:
		return "idle"
	}
}

// Options configures a Pipeline.
type Options struct {
	// InitialCredits is the credit available before the first ack.
	InitialCredits uint32
}

// Stats are counters for diagnostics.
type Stats struct {
	Presents  uint64
	Coalesced uint64
	Acks      uint64
}

// Pipeline owns the present credit, the committed graph and the compositor
// id allocator. Except for Deliver and Ready, its methods must be called
// from a single goroutine.
type Pipeline struct {
	transport Transport

	committed   *scene.Graph
	pending     *scene.Graph
	unpresented bool
	acquire     []uint64
	release     []uint64
	credits     uint32
	stats       Stats

	nextTransform scene.TransformID
	nextContent   scene.ContentID

	ackMu sync.Mutex
	acks  []Ack
	ready chan struct{}
}

// New returns a pipeline that transmits through transport.
func New(transport Transport, opts Options) *Pipeline {
	return &Pipeline{
		transport: transport,
		committed: scene.EmptyGraph(),
		credits:   opts.InitialCredits,
		ready:     make(chan struct{}, 1),
	}
}

// NextTransformID implements [scene.IDSource].
func (p *Pipeline) NextTransformID() scene.TransformID {
	p.nextTransform++
	return p.nextTransform
}

// NextContentID implements [scene.IDSource].
func (p *Pipeline) NextContentID() scene.ContentID {
	p.nextContent++
	return p.nextContent
}

// Submit makes target the latest graph to transmit and transmits it if
// credit allows. Fences accumulate until the next present.
func (p *Pipeline) Submit(target *scene.Graph, acquire, release []uint64) (Status, error) {
	if p.pending != nil {
		p.stats.Coalesced++
		logging.Logger().Debug("coalescing queued graph", "coalesced", p.stats.Coalesced)
	}
	p.pending = target
	p.acquire = append(p.acquire, acquire...)
	p.release = append(p.release, release...)
	return p.flush()
}

// Retarget replaces the queued target with fn(target). It does nothing when
// no target is queued. Fences and the coalescing count are unaffected.
func (p *Pipeline) Retarget(fn func(*scene.Graph) *scene.Graph) {
	if p.pending == nil {
		return
	}
	if next := fn(p.pending); next != nil {
		p.pending = next
	}
}

// Deliver queues an acknowledgment. It is safe to call from any goroutine.
// The ack takes effect at the next ProcessAcks.
func (p *Pipeline) Deliver(ack Ack) {
	p.ackMu.Lock()
	p.acks = append(p.acks, ack)
	p.ackMu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// Ready is signaled after Deliver. Event loops select on it and then call
// ProcessAcks.
func (p *Pipeline) Ready() <-chan struct{} {
	return p.ready
}

// ProcessAcks applies queued acknowledgments in arrival order and
// transmits a queued target if credit is now available.
func (p *Pipeline) ProcessAcks() (Status, error) {
	p.ackMu.Lock()
	acks := p.acks
	p.acks = nil
	p.ackMu.Unlock()

	if len(acks) == 0 {
		return p.status(), nil
	}
	for _, ack := range acks {
		p.stats.Acks++
		p.credits = addCredits(p.credits, ack.AdditionalCredits)
	}
	logging.Logger().Debug("acks processed", "count", len(acks), "credits", p.credits)
	return p.flush()
}

func (p *Pipeline) flush() (Status, error) {
	if p.pending != nil {
		set := scene.Diff(p.committed, p.pending)
		if !set.Empty() {
			if p.credits == 0 {
				logging.Logger().Debug("graph queued", "mutations", len(set))
				return StatusQueued, nil
			}
			if err := p.transport.Apply(set); err != nil {
				return StatusQueued, errors.New("present.Apply", errors.KindTransport, err)
			}
			p.unpresented = true
		}
		p.committed = p.pending
		p.pending = nil
	}

	if !p.unpresented && len(p.acquire) == 0 && len(p.release) == 0 {
		return StatusIdle, nil
	}
	if p.credits == 0 {
		return StatusQueued, nil
	}

	args := PresentArgs{AcquireFences: p.acquire, ReleaseFences: p.release}
	if err := p.transport.Present(args); err != nil {
		return StatusQueued, errors.New("present.Present", errors.KindTransport, err)
	}
	p.credits--
	p.stats.Presents++
	p.unpresented = false
	p.acquire = nil
	p.release = nil
	logging.Logger().Debug("presented", "presents", p.stats.Presents, "credits", p.credits,
		"acquireFences", len(args.AcquireFences), "releaseFences", len(args.ReleaseFences))
	return StatusPresented, nil
}

func (p *Pipeline) status() Status {
	if p.pending != nil || p.unpresented || len(p.acquire) > 0 || len(p.release) > 0 {
		return StatusQueued
	}
	return StatusIdle
}

func addCredits(credits, n uint32) uint32 {
	if credits+n < credits {
		return ^uint32(0)
	}
	return credits + n
}

// Credits returns the current present credit.
func (p *Pipeline) Credits() uint32 {
	return p.credits
}

// Queued reports whether anything is waiting for credit.
func (p *Pipeline) Queued() bool {
	return p.status() == StatusQueued
}

// Committed returns the last transmitted graph. It must not be modified.
func (p *Pipeline) Committed() *scene.Graph {
	return p.committed
}

// References reports whether the committed graph or the queued target
// contains the node.
func (p *Pipeline) References(id scene.TransformID) bool {
	if p.committed.Contains(id) {
		return true
	}
	return p.pending != nil && p.pending.Contains(id)
}

// Stats returns a copy of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.stats
}
