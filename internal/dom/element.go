package dom

import (
	"strings"

	"github.com/pageplane/pageplane/internal/protocol"
)

// Element is one node of the document surface.
type Element struct {
	doc      *Document
	tag      string
	attrs    map[string]string
	style    Style
	rect     protocol.Rect
	text     string
	value    string
	checked  bool
	selected bool
	scrollX  int
	scrollY  int
	parent   *Element
	children []*Element
}

// NewElement creates a detached element with the given lowercased tag.
func (d *Document) NewElement(tag string) *Element {
	return &Element{
		doc:   d,
		tag:   strings.ToLower(tag),
		attrs: make(map[string]string),
		style: DefaultStyle(),
	}
}

// Tag returns the lowercased element tag.
func (e *Element) Tag() string { return e.tag }

// Attr returns an attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.attrs[strings.ToLower(name)]
	return v, ok
}

// AttrOr returns an attribute value or a default.
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// HasAttr reports attribute presence.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// SetAttr sets an attribute and notifies mutation observers.
func (e *Element) SetAttr(name, value string) {
	name = strings.ToLower(name)
	if old, ok := e.attrs[name]; ok && old == value {
		return
	}
	e.attrs[name] = value
	if name == "style" {
		e.parseInlineStyle(value)
	}
	e.doc.notifyAttr(e, name)
}

// RemoveAttr removes an attribute and notifies mutation observers.
func (e *Element) RemoveAttr(name string) {
	name = strings.ToLower(name)
	if _, ok := e.attrs[name]; !ok {
		return
	}
	delete(e.attrs, name)
	e.doc.notifyAttr(e, name)
}

// ID returns the DOM id attribute.
func (e *Element) ID() string { return e.AttrOr("id", "") }

// Classes returns the class list.
func (e *Element) Classes() []string {
	return strings.Fields(e.AttrOr("class", ""))
}

// Rect returns the element's layout rect in viewport coordinates.
func (e *Element) Rect() protocol.Rect { return e.rect }

// SetRect moves or resizes the element and notifies intersection
// observers registered on it.
func (e *Element) SetRect(r protocol.Rect) {
	if e.rect == r {
		return
	}
	e.rect = r
	e.doc.notifyIntersection(e)
}

// Style returns the computed-style subset.
func (e *Element) Style() Style { return e.style }

// SetStyle replaces the computed style and notifies observers the same
// way a style attribute mutation would.
func (e *Element) SetStyle(s Style) {
	if e.style == s {
		return
	}
	e.style = s
	e.doc.notifyAttr(e, "style")
}

// Text returns the element's own text plus descendant text, whitespace
// collapsed.
func (e *Element) Text() string {
	var b strings.Builder
	e.collectText(&b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func (e *Element) collectText(b *strings.Builder) {
	if e.text != "" {
		b.WriteString(e.text)
		b.WriteByte(' ')
	}
	for _, c := range e.children {
		c.collectText(b)
	}
}

// SetText replaces the element's own text content.
func (e *Element) SetText(t string) {
	if e.text == t {
		return
	}
	e.text = t
	e.doc.notifyChildList(e, nil, nil)
}

// Value returns the form-control value; for contenteditable elements the
// editable text.
func (e *Element) Value() string {
	if e.AttrOr("contenteditable", "") == "true" {
		return e.text
	}
	return e.value
}

// SetValue updates the form-control value (or editable text) and
// notifies observers of a value mutation.
func (e *Element) SetValue(v string) {
	if e.AttrOr("contenteditable", "") == "true" {
		e.text = v
	} else {
		e.value = v
	}
	e.doc.notifyAttr(e, "value")
}

// Checked reports the checked state of checkbox/radio inputs.
func (e *Element) Checked() bool { return e.checked }

// SetChecked updates checked state.
func (e *Element) SetChecked(v bool) {
	if e.checked == v {
		return
	}
	e.checked = v
	e.doc.notifyAttr(e, "checked")
}

// Selected reports whether an <option> is selected.
func (e *Element) Selected() bool { return e.selected }

// SetSelected updates option selection.
func (e *Element) SetSelected(v bool) {
	if e.selected == v {
		return
	}
	e.selected = v
	e.doc.notifyAttr(e, "selected")
}

// Parent returns the parent element, nil for the root.
func (e *Element) Parent() *Element { return e.parent }

// Children returns the child elements in document order.
func (e *Element) Children() []*Element { return e.children }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// InTree reports whether the element is connected to the document body.
func (e *Element) InTree() bool {
	for n := e; n != nil; n = n.parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// Contains reports whether other is e or a descendant of e.
func (e *Element) Contains(other *Element) bool {
	for n := other; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

// Related reports whether other is e, an ancestor of e, or a descendant
// of e. Hit-test verification treats any of these as a pass.
func (e *Element) Related(other *Element) bool {
	if other == nil {
		return false
	}
	return e.Contains(other) || other.Contains(e)
}

// AppendChild attaches child as the last child of e.
func (e *Element) AppendChild(child *Element) {
	child.detach()
	child.parent = e
	e.children = append(e.children, child)
	e.doc.notifyChildList(e, []*Element{child}, nil)
}

// RemoveChild detaches child from e.
func (e *Element) RemoveChild(child *Element) {
	for i, c := range e.children {
		if c == child {
			e.children = append(e.children[:i], e.children[i+1:]...)
			child.parent = nil
			e.doc.elementRemoved(child)
			e.doc.notifyChildList(e, nil, []*Element{child})
			return
		}
	}
}

func (e *Element) detach() {
	if e.parent != nil {
		e.parent.RemoveChild(e)
	}
}

// Remove detaches the element from its parent.
func (e *Element) Remove() { e.detach() }

// ScrollBy adjusts the element's own scroll offsets and dispatches a
// scroll event on it.
func (e *Element) ScrollBy(dx, dy int) {
	e.scrollX += dx
	e.scrollY += dy
	if e.scrollX < 0 {
		e.scrollX = 0
	}
	if e.scrollY < 0 {
		e.scrollY = 0
	}
	_ = e.DispatchEvent(Event{Type: "scroll"})
}

// ScrollOffsets returns the element's scroll position.
func (e *Element) ScrollOffsets() (x, y int) { return e.scrollX, e.scrollY }

// Focusable reports whether the element can take focus.
func (e *Element) Focusable() bool {
	if e.HasAttr("disabled") {
		return false
	}
	switch e.tag {
	case "a":
		return e.HasAttr("href")
	case "button", "input", "select", "textarea", "summary":
		return true
	}
	if e.HasAttr("tabindex") {
		return true
	}
	return e.AttrOr("contenteditable", "") == "true"
}

// Focus moves document focus to the element when it is focusable.
func (e *Element) Focus() bool {
	if !e.Focusable() || !e.InTree() {
		return false
	}
	e.doc.setFocus(e)
	return true
}

// Blur removes focus when the element holds it.
func (e *Element) Blur() {
	if e.doc.active == e {
		e.doc.setFocus(nil)
	}
}

// Focused reports whether the element holds document focus.
func (e *Element) Focused() bool { return e.doc.active == e }

// Options returns the option descendants of a select element.
func (e *Element) Options() []*Element {
	var opts []*Element
	var walk func(*Element)
	walk = func(n *Element) {
		for _, c := range n.children {
			if c.tag == "option" {
				opts = append(opts, c)
			}
			walk(c)
		}
	}
	walk(e)
	return opts
}

// Walk visits e and every descendant in document order. Returning false
// from the visitor stops the walk.
func (e *Element) Walk(visit func(*Element) bool) bool {
	if !visit(e) {
		return false
	}
	for _, c := range e.children {
		if !c.Walk(visit) {
			return false
		}
	}
	return true
}
