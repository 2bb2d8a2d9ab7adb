// Package compositor provides an in-process compositor that implements the
// presentation transport. It validates and applies mutations to its own
// copy of the graph and can render that graph into an image.
package compositor

import (
	stderrors "errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/go-drift/flatland/pkg/logging"
	"github.com/go-drift/flatland/pkg/present"
	"github.com/go-drift/flatland/pkg/scene"
)

// ErrInvalidMutation is wrapped by every validation failure of Apply.
var ErrInvalidMutation = stderrors.New("invalid mutation")

// Options configures a Memory compositor.
type Options struct {
	// Images resolves import tokens to pixels for Render.
	Images ImageSource
	// OnPresent runs after every successful present, without locks held.
	OnPresent func(args present.PresentArgs)
}

type node struct {
	scene.Node
	children []scene.TransformID
}

type state struct {
	root      scene.TransformID
	nodes     map[scene.TransformID]*node
	images    map[scene.ContentID]scene.Image
	viewports map[scene.ContentID]scene.Viewport
}

func (s *state) clone() *state {
	c := &state{
		root:      s.root,
		nodes:     make(map[scene.TransformID]*node, len(s.nodes)),
		images:    maps.Clone(s.images),
		viewports: maps.Clone(s.viewports),
	}
	for id, n := range s.nodes {
		cp := *n
		cp.children = slices.Clone(n.children)
		cp.HitRegions = slices.Clone(n.HitRegions)
		c.nodes[id] = &cp
	}
	return c
}

// Memory is an in-process compositor. It is safe for concurrent use.
type Memory struct {
	opts Options

	mu       sync.Mutex
	st       *state
	applied  int
	presents []present.PresentArgs
}

// NewMemory returns an empty compositor.
func NewMemory(opts Options) *Memory {
	return &Memory{
		opts: opts,
		st: &state{
			nodes:     make(map[scene.TransformID]*node),
			images:    make(map[scene.ContentID]scene.Image),
			viewports: make(map[scene.ContentID]scene.Viewport),
		},
	}
}

// Apply implements [present.Transport]. The set is applied atomically.
func (m *Memory) Apply(set scene.MutationSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.st.clone()
	for _, mut := range set {
		if err := next.apply(mut); err != nil {
			return fmt.Errorf("compositor: %s: %w", mut, err)
		}
	}
	m.st = next
	m.applied += len(set)
	return nil
}

// Present implements [present.Transport].
func (m *Memory) Present(args present.PresentArgs) error {
	m.mu.Lock()
	m.presents = append(m.presents, args)
	count := len(m.presents)
	m.mu.Unlock()

	logging.Logger().Debug("compositor present", "presents", count)
	if m.opts.OnPresent != nil {
		m.opts.OnPresent(args)
	}
	return nil
}

// Presents returns the number of presents received.
func (m *Memory) Presents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.presents)
}

// LastPresent returns the arguments of the most recent present.
func (m *Memory) LastPresent() (present.PresentArgs, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.presents) == 0 {
		return present.PresentArgs{}, false
	}
	return m.presents[len(m.presents)-1], true
}

// Applied returns the number of mutations applied so far.
func (m *Memory) Applied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}

// Snapshot returns the compositor's graph in the same shape the embedder
// builds, so the two can be compared with [scene.Diff].
func (m *Memory) Snapshot() *scene.Graph {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := scene.EmptyGraph()
	g.Root = m.st.root
	for id, n := range m.st.nodes {
		if id == m.st.root {
			g.RootScale = n.Scale.X
			g.Children = slices.Clone(n.children)
			continue
		}
		g.Nodes[id] = n.Node
	}
	maps.Copy(g.Images, m.st.images)
	maps.Copy(g.Viewports, m.st.viewports)
	return g
}

func (s *state) node(id scene.TransformID) (*node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("unknown transform %d: %w", id, ErrInvalidMutation)
	}
	return n, nil
}

func (s *state) contentExists(id scene.ContentID) bool {
	_, img := s.images[id]
	_, vp := s.viewports[id]
	return img || vp
}

func (s *state) apply(mut scene.Mutation) error {
	switch m := mut.(type) {
	case scene.CreateTransform:
		if m.ID == 0 {
			return fmt.Errorf("zero transform id: %w", ErrInvalidMutation)
		}
		if _, ok := s.nodes[m.ID]; ok {
			return fmt.Errorf("transform %d exists: %w", m.ID, ErrInvalidMutation)
		}
		s.nodes[m.ID] = &node{Node: scene.NewNode(m.ID)}

	case scene.ReleaseTransform:
		if _, err := s.node(m.ID); err != nil {
			return err
		}
		for _, n := range s.nodes {
			if slices.Contains(n.children, m.ID) {
				return fmt.Errorf("transform %d is still a child of %d: %w", m.ID, n.ID, ErrInvalidMutation)
			}
		}
		if s.root == m.ID {
			s.root = 0
		}
		delete(s.nodes, m.ID)

	case scene.SetRootTransform:
		if _, err := s.node(m.ID); err != nil {
			return err
		}
		s.root = m.ID

	case scene.SetTranslation:
		n, err := s.node(m.ID)
		if err != nil {
			return err
		}
		n.Translation = m.Value

	case scene.SetScale:
		n, err := s.node(m.ID)
		if err != nil {
			return err
		}
		n.Scale = m.Value

	case scene.SetOpacity:
		n, err := s.node(m.ID)
		if err != nil {
			return err
		}
		if m.Value < 0 || m.Value > 1 {
			return fmt.Errorf("opacity %g out of range: %w", m.Value, ErrInvalidMutation)
		}
		n.Opacity = m.Value

	case scene.SetClip:
		n, err := s.node(m.ID)
		if err != nil {
			return err
		}
		n.Clip = m.Clip

	case scene.SetContent:
		n, err := s.node(m.ID)
		if err != nil {
			return err
		}
		if m.Content.Kind != scene.ContentNone && !s.contentExists(m.Content.ID) {
			return fmt.Errorf("unknown content %d: %w", m.Content.ID, ErrInvalidMutation)
		}
		n.Content = m.Content

	case scene.SetHitRegions:
		n, err := s.node(m.ID)
		if err != nil {
			return err
		}
		n.HitRegions = slices.Clone(m.Regions)

	case scene.SetChildren:
		n, err := s.node(m.ID)
		if err != nil {
			return err
		}
		for _, c := range m.Children {
			if _, err := s.node(c); err != nil {
				return err
			}
		}
		n.children = slices.Clone(m.Children)

	case scene.CreateImage:
		if m.ID == 0 || s.contentExists(m.ID) {
			return fmt.Errorf("content %d exists: %w", m.ID, ErrInvalidMutation)
		}
		s.images[m.ID] = scene.Image{ID: m.ID, Token: m.Token, Size: m.Size, Blend: scene.BlendSourceOver}

	case scene.SetImageDestinationSize:
		img, ok := s.images[m.ID]
		if !ok {
			return fmt.Errorf("unknown image %d: %w", m.ID, ErrInvalidMutation)
		}
		img.DestinationSize = m.Size
		s.images[m.ID] = img

	case scene.SetImageBlend:
		img, ok := s.images[m.ID]
		if !ok {
			return fmt.Errorf("unknown image %d: %w", m.ID, ErrInvalidMutation)
		}
		img.Blend = m.Blend
		s.images[m.ID] = img

	case scene.ReleaseImage:
		if _, ok := s.images[m.ID]; !ok {
			return fmt.Errorf("unknown image %d: %w", m.ID, ErrInvalidMutation)
		}
		delete(s.images, m.ID)
		s.detachContent(m.ID)

	case scene.CreateViewport:
		if m.ID == 0 || s.contentExists(m.ID) {
			return fmt.Errorf("content %d exists: %w", m.ID, ErrInvalidMutation)
		}
		s.viewports[m.ID] = scene.Viewport{ID: m.ID, ViewID: m.ViewID, Properties: m.Properties}

	case scene.SetViewportProperties:
		vp, ok := s.viewports[m.ID]
		if !ok {
			return fmt.Errorf("unknown viewport %d: %w", m.ID, ErrInvalidMutation)
		}
		vp.Properties = m.Properties
		s.viewports[m.ID] = vp

	case scene.ReleaseViewport:
		if _, ok := s.viewports[m.ID]; !ok {
			return fmt.Errorf("unknown viewport %d: %w", m.ID, ErrInvalidMutation)
		}
		delete(s.viewports, m.ID)
		s.detachContent(m.ID)

	default:
		return fmt.Errorf("unsupported mutation %T: %w", mut, ErrInvalidMutation)
	}
	return nil
}

// detachContent clears released content from every node showing it.
func (s *state) detachContent(id scene.ContentID) {
	for _, n := range s.nodes {
		if n.Content.ID == id {
			n.Content = scene.NoContent
		}
	}
}
