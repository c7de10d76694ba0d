package dom

import (
	"sync"

	"github.com/pageplane/pageplane/internal/protocol"
)

// Document is one page surface: a body tree plus viewport, focus, and
// scroll state.
type Document struct {
	root     *Element
	viewport protocol.Viewport
	scrollX  int
	scrollY  int
	active   *Element

	mutationObs     []*MutationObserver
	resizeObs       []func()
	scrollListeners []func()
	intersectionObs map[*Element][]func(*Element)

	scripts *scriptHost

	// surfaceMu serializes top-level access from different goroutines
	// (executor, engine timer, mirror). Individual node operations are
	// not internally locked: everything reached from inside an Update
	// callback, including observer and handler re-entry, runs under the
	// one holder.
	surfaceMu sync.Mutex
}

// Update runs fn with exclusive access to the surface. Entry points that
// read or mutate the tree from their own goroutine wrap their work in
// Update; code already running inside an Update callback must not call
// it again.
func (d *Document) Update(fn func()) {
	d.surfaceMu.Lock()
	defer d.surfaceMu.Unlock()
	fn()
}

// NewDocument creates an empty document with the given viewport.
func NewDocument(vp protocol.Viewport) *Document {
	d := &Document{
		viewport:        vp,
		intersectionObs: make(map[*Element][]func(*Element)),
	}
	d.root = d.NewElement("body")
	return d
}

// Body returns the document root element.
func (d *Document) Body() *Element { return d.root }

// Viewport returns the viewport size.
func (d *Document) Viewport() protocol.Viewport { return d.viewport }

// SetViewport resizes the viewport, firing resize observers and
// re-evaluating intersections.
func (d *Document) SetViewport(vp protocol.Viewport) {
	if d.viewport == vp {
		return
	}
	d.viewport = vp
	for _, fn := range d.resizeObs {
		safeCall(fn)
	}
	for el := range d.intersectionObs {
		d.notifyIntersection(el)
	}
}

// Scroll returns the current scroll offsets.
func (d *Document) Scroll() (x, y int) { return d.scrollX, d.scrollY }

// ScrollBy adjusts the window scroll position and fires scroll listeners.
func (d *Document) ScrollBy(dx, dy int) {
	d.scrollX += dx
	d.scrollY += dy
	if d.scrollX < 0 {
		d.scrollX = 0
	}
	if d.scrollY < 0 {
		d.scrollY = 0
	}
	for _, fn := range d.scrollListeners {
		safeCall(fn)
	}
}

// ActiveElement returns the focused element, nil when none.
func (d *Document) ActiveElement() *Element { return d.active }

func (d *Document) setFocus(e *Element) {
	if d.active == e {
		return
	}
	prev := d.active
	d.active = e
	if prev != nil {
		prev.dispatch(Event{Type: "blur", Target: prev})
		d.notifyAttr(prev, "focus")
	}
	if e != nil {
		e.dispatch(Event{Type: "focus", Target: e})
		d.notifyAttr(e, "focus")
	}
}

func (d *Document) elementRemoved(e *Element) {
	if d.active != nil && e.Contains(d.active) {
		d.active = nil
	}
}

// ElementAt hit-tests the point and returns the topmost laid-out element
// containing it, nil when the point hits only the background. Topmost is
// the highest z-index, ties broken by document order (later wins).
func (d *Document) ElementAt(x, y int) *Element {
	var best *Element
	bestZ := 0
	d.root.Walk(func(e *Element) bool {
		if e == d.root {
			return true
		}
		if e.style.Hidden() || e.rect.IsZero() {
			return true
		}
		r := e.rect
		if x < r.X || x >= r.X+r.W || y < r.Y || y >= r.Y+r.H {
			return true
		}
		if best == nil || e.style.ZIndex >= bestZ {
			best = e
			bestZ = e.style.ZIndex
		}
		return true
	})
	return best
}

// ByID returns the first element with the given id attribute.
func (d *Document) ByID(id string) *Element {
	var found *Element
	d.root.Walk(func(e *Element) bool {
		if e.ID() == id {
			found = e
			return false
		}
		return true
	})
	return found
}

// CountByID returns how many elements carry the given id attribute.
// Duplicate ids disqualify an id from use as a stable identity.
func (d *Document) CountByID(id string) int {
	n := 0
	d.root.Walk(func(e *Element) bool {
		if e.ID() == id {
			n++
		}
		return true
	})
	return n
}

// OnScroll registers a window scroll listener.
func (d *Document) OnScroll(fn func()) {
	d.scrollListeners = append(d.scrollListeners, fn)
}

func safeCall(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
