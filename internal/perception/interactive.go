package perception

import (
	"strconv"

	"github.com/pageplane/pageplane/internal/dom"
)

// interactiveRoles is the fixed set of ARIA roles that mark an element
// interactive regardless of its tag.
var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"option":           true,
	"tab":              true,
	"switch":           true,
	"checkbox":         true,
	"radio":            true,
	"combobox":         true,
	"listbox":          true,
	"slider":           true,
	"spinbutton":       true,
	"searchbox":        true,
	"textbox":          true,
}

// Interactive reports whether the element belongs on the action surface.
func Interactive(e *dom.Element) bool {
	switch e.Tag() {
	case "a":
		if e.HasAttr("href") {
			return true
		}
	case "button", "input", "select", "textarea", "summary", "details":
		return true
	case "label":
		if e.HasAttr("for") {
			return true
		}
	}
	if ti, ok := e.Attr("tabindex"); ok {
		if n, err := strconv.Atoi(ti); err == nil && n > 0 {
			return true
		}
	}
	if e.HasAttr("onclick") {
		return true
	}
	if e.AttrOr("contenteditable", "") == "true" {
		return true
	}
	if role, ok := e.Attr("role"); ok && interactiveRoles[role] {
		return true
	}
	return false
}

// Visible applies the visibility filter: zero-size, display:none,
// visibility:hidden, opacity:0, and fully-offscreen elements are
// excluded. Occlusion never excludes; it only annotates.
func Visible(e *dom.Element) bool {
	r := e.Rect()
	if r.IsZero() {
		return false
	}
	if e.Style().Hidden() {
		return false
	}
	vp := e.Document().Viewport()
	if r.X+r.W <= 0 || r.Y+r.H <= 0 || r.X >= vp.Width || r.Y >= vp.Height {
		return false
	}
	return true
}

// Occluded hit-tests the rect center: the element is occluded when the
// topmost element there is neither the candidate nor an ancestor or
// descendant of it.
func Occluded(e *dom.Element) bool {
	hit := e.Rect().Center()
	top := e.Document().ElementAt(hit.CX, hit.CY)
	if top == nil {
		return false
	}
	return !e.Related(top)
}
