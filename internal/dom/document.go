// Package dom is the document surface views render into: an HTML node
// tree from golang.org/x/net/html, CSS selector matching, and per-node
// event listeners with bubbling dispatch.
//
// A Document is not safe for concurrent mutation of its tree. The listener
// table is locked so handles may be cancelled from any goroutine.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roach88/web2/internal/events"
)

// Event is passed to a Handler. Target is the node the event was
// dispatched at; Current is the node whose listener is running.
type Event struct {
	Type    string
	Target  *html.Node
	Current *html.Node
}

// Handler reacts to a dispatched event.
type Handler func(Event)

type listener struct {
	h Handler
}

// Document is an HTML tree plus its listener table.
type Document struct {
	root *html.Node

	mu        sync.Mutex
	listeners map[*html.Node]map[string][]*listener
}

const emptyMarkup = "<!DOCTYPE html><html><head></head><body></body></html>"

// NewDocument returns an empty document with <head> and <body>.
func NewDocument() *Document {
	d, err := Parse(emptyMarkup)
	if err != nil {
		panic(err)
	}
	return d
}

// Parse builds a document from a complete HTML page. Missing <html>,
// <head> and <body> elements are implied.
func Parse(markup string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{
		root:      root,
		listeners: make(map[*html.Node]map[string][]*listener),
	}, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the <body> element.
func (d *Document) Body() *html.Node {
	var find func(*html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if b := find(c); b != nil {
				return b
			}
		}
		return nil
	}
	return find(d.root)
}

// QuerySelector returns the first element matching selector, or nil.
func (d *Document) QuerySelector(selector string) (*html.Node, error) {
	m, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return Query(d.root, m), nil
}

// QuerySelectorAll returns every element matching selector.
func (d *Document) QuerySelectorAll(selector string) ([]*html.Node, error) {
	m, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return QueryAll(d.root, m), nil
}

// Contains reports whether n is attached to this document.
func (d *Document) Contains(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

// Listen registers h for events of type typ dispatched at node or bubbling
// through it. The listener is removed when the subscription is cancelled.
func (d *Document) Listen(node *html.Node, typ string, h Handler) *events.Subscription {
	l := &listener{h: h}

	d.mu.Lock()
	byType := d.listeners[node]
	if byType == nil {
		byType = make(map[string][]*listener)
		d.listeners[node] = byType
	}
	byType[typ] = append(byType[typ], l)
	d.mu.Unlock()

	return events.NewSubscription(func() { d.remove(node, typ, l) })
}

func (d *Document) remove(node *html.Node, typ string, l *listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	byType := d.listeners[node]
	ls := byType[typ]
	for i, cur := range ls {
		if cur == l {
			next := make([]*listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			ls = next
			break
		}
	}
	if len(ls) == 0 {
		delete(byType, typ)
	} else {
		byType[typ] = ls
	}
	if len(byType) == 0 {
		delete(d.listeners, node)
	}
}

// Dispatch fires an event of type typ at target. Listeners on the target
// run first, then listeners on each ancestor up to the document root.
// Each node's listener list is snapshotted when dispatch reaches it.
// Returns the number of handlers invoked.
func (d *Document) Dispatch(target *html.Node, typ string) int {
	invoked := 0
	for cur := target; cur != nil; cur = cur.Parent {
		d.mu.Lock()
		ls := d.listeners[cur][typ]
		d.mu.Unlock()

		for _, l := range ls {
			l.h(Event{Type: typ, Target: target, Current: cur})
			invoked++
		}
	}
	return invoked
}

// ListenerCount returns the number of registered listeners.
func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, byType := range d.listeners {
		for _, ls := range byType {
			n += len(ls)
		}
	}
	return n
}

// SetValue sets the value attribute of a form control, the way typing into
// an <input> would.
func (d *Document) SetValue(n *html.Node, v string) {
	SetAttr(n, "value", v)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning "" on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// RenderNode writes the HTML of n's children.
func RenderNode(w io.Writer, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return err
		}
	}
	return nil
}

// InnerHTML returns the rendered children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	if err := RenderNode(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}
