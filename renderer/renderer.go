// Package renderer paints vector layers and in-memory geometries onto a
// canvas for a given world.
//
// Renderers are created through a Registry built by the host application:
//
//	reg := renderer.NewDefaultRegistry(renderer.DefaultOptions())
//	r, err := reg.Create("VectorRenderer", element, nil)
//	if err != nil {
//		return err
//	}
//	r.Render(w, c, nil)
package renderer

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tingold/orb-render/canvas"
	"github.com/tingold/orb-render/srs"
	"github.com/tingold/orb-render/vector"
	"github.com/tingold/orb-render/world"
)

var (
	ErrNoLayers        = errors.New("renderer: no layers to render")
	ErrNoNode          = errors.New("renderer: element has no renderization node")
	ErrBadNode         = errors.New("renderer: invalid renderization node")
	ErrNoElement       = errors.New("renderer: nil element")
	ErrUnknownRenderer = errors.New("renderer: unknown renderer")
)

// DefaultCacheSize is the number of features drawn per batch.
const DefaultCacheSize = 100

// Renderer draws an element onto a canvas.
type Renderer interface {
	// Render paints onto c the part of the element visible in w. Only pixels
	// where mask is opaque are touched; a nil mask paints everywhere.
	Render(w *world.World, c canvas.Canvas, mask image.Image) bool
	// BoundingBox returns the extent of the element in the SRS of w.
	BoundingBox(w *world.World) (world.Subset, bool)
	// Update reloads the configuration from e.
	Update(e *Element) bool
}

// Factory builds a renderer for e. previous is the renderer being replaced,
// if any.
type Factory func(e *Element, previous Renderer) (Renderer, error)

// Registry maps renderer names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a registry holding the vector renderer under
// "VectorRenderer".
func NewDefaultRegistry(opts *Options) *Registry {
	r := NewRegistry()
	r.Register(VectorRendererName, func(e *Element, previous Renderer) (Renderer, error) {
		return NewVectorRenderer(e, opts)
	})
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Create builds the renderer registered under name.
func (r *Registry) Create(name string, e *Element, previous Renderer) (Renderer, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRenderer, name)
	}
	return f(e, previous)
}

// Names lists the registered renderers in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Options configures the vector renderer.
type Options struct {
	// Opener opens the dataset of the rendered element.
	Opener vector.Opener
	// Factory builds transformations between the world and the layers.
	Factory srs.Factory
	// Metrics, when set, receives the renderer collectors.
	Metrics prometheus.Registerer
	// CacheSize is the number of features drawn per batch.
	CacheSize int
}

// DefaultOptions returns options reading datasets from files, without
// metrics.
func DefaultOptions() *Options {
	return &Options{
		Opener:    vector.FileOpener{},
		Factory:   srs.DefaultFactory,
		CacheSize: DefaultCacheSize,
	}
}

func (o *Options) withDefaults() *Options {
	out := DefaultOptions()
	if o == nil {
		return out
	}
	if o.Opener != nil {
		out.Opener = o.Opener
	}
	if o.Factory != nil {
		out.Factory = o.Factory
	}
	if o.CacheSize > 0 {
		out.CacheSize = o.CacheSize
	}
	out.Metrics = o.Metrics
	return out
}
