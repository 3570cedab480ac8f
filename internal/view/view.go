// Package view binds a model to a mount point in a dom.Document.
//
// A View renders its template wholesale: every "change" on the source tears
// down the previous pass (child views and delegated listeners), replaces
// the mount point's children with freshly parsed markup, binds declared
// events to matches inside that markup, resolves named regions and lets
// the concrete view mount children into them.
//
// Concrete views implement Renderable and any of the optional capabilities:
//
//	EventBinder   Events() map[string]dom.Handler  keys are "eventType:selector"
//	RegionBinder  Regions() map[string]string      region name to selector
//	PostRenderer  OnRender(*View[T])               runs after markup is attached
//
// Declarations are compiled when the view is constructed, so a bad
// selector fails New instead of a later render.
package view

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/roach88/web2/internal/dom"
	"github.com/roach88/web2/internal/events"
	"github.com/roach88/web2/internal/metrics"
)

// EventChange is the source event that triggers a re-render.
const EventChange = "change"

// Source is what a view observes: the attributes to render and the
// change notifications. *model.Model satisfies it.
type Source[T any] interface {
	Attrs() T
	On(name string, cb func()) *events.Subscription
}

// Renderable produces markup for the current attributes.
type Renderable[T any] interface {
	Template(attrs T) string
}

// EventBinder declares delegated event handlers.
type EventBinder interface {
	Events() map[string]dom.Handler
}

// RegionBinder declares named regions.
type RegionBinder interface {
	Regions() map[string]string
}

// PostRenderer runs after each render pass, typically to mount children.
type PostRenderer[T any] interface {
	OnRender(v *View[T])
}

// Option configures a View.
type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
}

// WithName sets the name used in logs and metrics. Default: the
// renderable's type name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

type binding struct {
	typ     string
	matcher cascadia.Matcher
	handler dom.Handler
}

type regionDecl struct {
	name    string
	matcher cascadia.Matcher
}

type closer interface {
	Close()
}

// View is one rendered instance of a Renderable bound to a Source.
//
// A View is driven from one goroutine at a time: construction, renders,
// Mount and Close must not run concurrently. Getters are safe anywhere.
type View[T any] struct {
	doc    *dom.Document
	mount  *html.Node
	src    Source[T]
	r      Renderable[T]
	name   string
	logger *slog.Logger

	bindings []binding
	decls    []regionDecl
	sub      *events.Subscription

	listeners events.Group

	mu       sync.RWMutex
	children []closer
	state    State
	renders  int
	regions  map[string]*html.Node
}

// New validates the declarations of r, subscribes to src's "change" event
// and renders once. The mount point must be an element attached to doc.
func New[T any](doc *dom.Document, mount *html.Node, src Source[T], r Renderable[T], opts ...Option) (*View[T], error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = strings.TrimPrefix(fmt.Sprintf("%T", r), "*")
	}

	if err := checkMount(o.name, doc, mount, src, r); err != nil {
		return nil, err
	}

	v := &View[T]{
		doc:    doc,
		mount:  mount,
		src:    src,
		r:      r,
		name:   o.name,
		logger: o.logger.With("view", o.name),
	}
	if err := v.compile(); err != nil {
		return nil, err
	}

	v.sub = src.On(EventChange, v.onChange)
	if err := v.Render(); err != nil {
		v.sub.Cancel()
		return nil, err
	}
	return v, nil
}

func checkMount[T any](name string, doc *dom.Document, mount *html.Node, src Source[T], r Renderable[T]) error {
	var reason string
	switch {
	case doc == nil:
		reason = "no document"
	case mount == nil:
		reason = "no mount point"
	case mount.Type != html.ElementNode:
		reason = "mount point is not an element"
	case !doc.Contains(mount):
		reason = "mount point is detached from the document"
	case src == nil:
		reason = "no source"
	case r == nil:
		reason = "no renderable"
	default:
		return nil
	}
	return &Error{Code: ErrCodeMount, View: name, Err: errors.New(reason)}
}

// compile turns the declared event keys and region selectors into
// matchers. Keys are processed in sorted order so listeners bind
// deterministically.
func (v *View[T]) compile() error {
	if eb, ok := v.r.(EventBinder); ok {
		decl := eb.Events()
		for _, key := range slices.Sorted(maps.Keys(decl)) {
			typ, sel, found := strings.Cut(key, ":")
			typ = strings.TrimSpace(typ)
			if !found || typ == "" {
				return &Error{Code: ErrCodeEvent, View: v.name, Key: key,
					Err: errors.New(`want "eventType:selector"`)}
			}
			if decl[key] == nil {
				return &Error{Code: ErrCodeEvent, View: v.name, Key: key, Err: errors.New("nil handler")}
			}
			m, err := dom.Compile(sel)
			if err != nil {
				return &Error{Code: ErrCodeSelector, View: v.name, Key: key, Err: err}
			}
			v.bindings = append(v.bindings, binding{typ: typ, matcher: m, handler: decl[key]})
		}
	}
	if rb, ok := v.r.(RegionBinder); ok {
		decl := rb.Regions()
		for _, name := range slices.Sorted(maps.Keys(decl)) {
			m, err := dom.Compile(decl[name])
			if err != nil {
				return &Error{Code: ErrCodeSelector, View: v.name, Key: name, Err: err}
			}
			v.decls = append(v.decls, regionDecl{name: name, matcher: m})
		}
	}
	return nil
}

func (v *View[T]) onChange() {
	if v.State() == StateClosed {
		return
	}
	if err := v.Render(); err != nil {
		v.logger.Warn("render failed", "event", EventChange, "error", err)
	}
}

// Render runs one full render pass. On failure the previous markup,
// listeners and children are left in place and the state is unchanged.
func (v *View[T]) Render() error {
	prev := v.State()
	if prev == StateClosed {
		return &Error{Code: ErrCodeClosed, View: v.name}
	}
	start := time.Now()
	v.setState(StateRendering)

	frag, err := v.build()
	if err != nil {
		v.setState(prev)
		metrics.Renders.WithLabelValues(v.name, metrics.ResultError).Inc()
		return err
	}

	v.teardown()
	dom.RemoveChildren(v.mount)

	for _, b := range v.bindings {
		for _, n := range dom.QueryAll(frag, b.matcher) {
			v.listeners.Add(v.doc.Listen(n, b.typ, b.handler))
		}
	}
	regions := make(map[string]*html.Node, len(v.decls))
	for _, d := range v.decls {
		if n := dom.Query(frag, d.matcher); n != nil {
			regions[d.name] = n
		}
	}

	dom.MoveChildren(v.mount, frag)

	v.mu.Lock()
	v.regions = regions
	v.renders++
	v.mu.Unlock()

	if pr, ok := v.r.(PostRenderer[T]); ok {
		pr.OnRender(v)
	}

	if v.State() == StateRendering {
		v.setState(StateMounted)
	}
	metrics.Renders.WithLabelValues(v.name, metrics.ResultOK).Inc()
	metrics.RenderDuration.WithLabelValues(v.name).Observe(time.Since(start).Seconds())
	v.logger.Debug("rendered", "renders", v.Renders(), "listeners", v.listeners.Len())
	return nil
}

// build produces the parsed markup for the current attributes. A template
// that panics is reported as an error.
func (v *View[T]) build() (frag *html.Node, err error) {
	defer func() {
		if p := recover(); p != nil {
			frag = nil
			err = &Error{Code: ErrCodeTemplate, View: v.name, Err: fmt.Errorf("template panicked: %v", p)}
		}
	}()
	markup := v.r.Template(v.src.Attrs())
	frag, err = dom.ParseFragment(v.mount, markup)
	if err != nil {
		return nil, &Error{Code: ErrCodeTemplate, View: v.name, Err: err}
	}
	return frag, nil
}

// teardown releases everything owned by the previous render pass.
func (v *View[T]) teardown() {
	v.mu.Lock()
	children := v.children
	v.children = nil
	v.mu.Unlock()
	for _, c := range children {
		c.Close()
	}
	v.listeners.CancelAll()

	v.mu.Lock()
	v.regions = nil
	v.mu.Unlock()
}

// Mount creates a child view for the same source in the named region and
// records it for teardown on the next render or Close.
func (v *View[T]) Mount(region string, r Renderable[T], opts ...Option) (*View[T], error) {
	return MountSource(v, region, v.src, r, opts...)
}

// MountSource is Mount for a child bound to a different source.
func MountSource[T, U any](parent *View[T], region string, src Source[U], r Renderable[U], opts ...Option) (*View[U], error) {
	if parent.State() == StateClosed {
		return nil, &Error{Code: ErrCodeClosed, View: parent.name, Key: region}
	}
	node, ok := parent.Region(region)
	if !ok {
		return nil, &Error{Code: ErrCodeRegion, View: parent.name, Key: region,
			Err: errors.New("region not resolved in the current render")}
	}
	opts = append([]Option{WithLogger(parent.logger)}, opts...)
	child, err := New(parent.doc, node, src, r, opts...)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", region, err)
	}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return child, nil
}

// Close releases the source subscription, delegated listeners and child
// views. The rendered markup stays in the document. Safe to call twice.
func (v *View[T]) Close() {
	if v.State() == StateClosed {
		return
	}
	v.setState(StateClosed)
	v.sub.Cancel()
	v.teardown()
	v.logger.Debug("closed")
}

// Name returns the view name.
func (v *View[T]) Name() string { return v.name }

// Node returns the mount point.
func (v *View[T]) Node() *html.Node { return v.mount }

// Document returns the document the view renders into.
func (v *View[T]) Document() *dom.Document { return v.doc }

// Region returns the node resolved for name by the latest render.
func (v *View[T]) Region(name string) (*html.Node, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n, ok := v.regions[name]
	return n, ok
}

// Regions returns a copy of the resolved regions. Declared regions with no
// match are absent.
func (v *View[T]) Regions() map[string]*html.Node {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return maps.Clone(v.regions)
}

// Children returns the number of child views mounted by the latest render.
func (v *View[T]) Children() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.children)
}

// State returns the lifecycle state.
func (v *View[T]) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Renders returns the number of completed render passes.
func (v *View[T]) Renders() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.renders
}

func (v *View[T]) setState(s State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
}
