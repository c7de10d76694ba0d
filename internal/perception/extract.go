package perception

import (
	"strings"

	"github.com/pageplane/pageplane/internal/dom"
	"github.com/pageplane/pageplane/internal/protocol"
)

// Extract walks the document and materializes the current candidate set,
// keyed by id.
func Extract(doc *dom.Document, ids *Identity) map[string]protocol.ActionCandidate {
	out := make(map[string]protocol.ActionCandidate)
	doc.Body().Walk(func(e *dom.Element) bool {
		if e == doc.Body() {
			return true
		}
		if !Interactive(e) || !Visible(e) {
			return true
		}
		c := candidate(e, ids.Acquire(e))
		out[c.ID] = c
		return true
	})
	return out
}

func candidate(e *dom.Element, id string) protocol.ActionCandidate {
	doc := e.Document()
	vp := doc.Viewport()
	rect := e.Rect()

	c := protocol.ActionCandidate{
		ID:          id,
		Rect:        rect,
		RectN:       protocol.Normalize(rect, vp.Width, vp.Height),
		Hit:         rect.Center(),
		Role:        Role(e),
		Tag:         e.Tag(),
		Name:        AccessibleName(e),
		Aria:        e.AttrOr("aria-label", ""),
		Placeholder: e.AttrOr("placeholder", ""),
		Value:       e.Value(),
		Href:        e.AttrOr("href", ""),
		State:       state(e),
		Ctx:         context(e),
		StyleHint:   styleHint(e),
		Occluded:    Occluded(e),
	}
	return c
}

func state(e *dom.Element) protocol.State {
	return protocol.State{
		Disabled: e.HasAttr("disabled") || e.AttrOr("aria-disabled", "") == "true",
		Expanded: e.AttrOr("aria-expanded", "") == "true",
		Checked:  e.Checked() || e.AttrOr("aria-checked", "") == "true",
		Selected: e.Selected() || e.AttrOr("aria-selected", "") == "true",
		Focused:  e.Focused(),
	}
}

func context(e *dom.Element) protocol.Ctx {
	ctx := protocol.Ctx{}
	depth := 0
	for p := e.Parent(); p != nil; p = p.Parent() {
		depth++
		role := p.AttrOr("role", "")
		switch {
		case role == "dialog" || role == "alertdialog" || p.Tag() == "dialog":
			ctx.InModal = true
		case role == "navigation" || p.Tag() == "nav":
			ctx.InNav = true
		case p.Tag() == "form":
			ctx.InForm = true
			if ctx.FormID == "" {
				ctx.FormID = p.ID()
			}
		}
	}
	// depth counts element ancestors up to the body, which is the root
	// of the surface tree and not itself counted.
	ctx.Depth = depth - 1
	if ctx.Depth < 0 {
		ctx.Depth = 0
	}
	return ctx
}

var (
	primaryHints = []string{"primary", "btn-primary", "submit", "cta"}
	dangerHints  = []string{"danger", "destructive", "delete", "btn-danger"}
)

func styleHint(e *dom.Element) protocol.StyleHint {
	classes := strings.ToLower(e.AttrOr("class", ""))
	variant := strings.ToLower(e.AttrOr("data-variant", ""))
	style := e.Style()

	hint := protocol.StyleHint{
		CursorPointer:   style.Cursor == "pointer",
		BackgroundColor: style.BackgroundColor,
		TextColor:       style.Color,
	}
	for _, h := range primaryHints {
		if strings.Contains(classes, h) || variant == h {
			hint.IsPrimary = true
			break
		}
	}
	for _, h := range dangerHints {
		if strings.Contains(classes, h) || variant == h {
			hint.IsDanger = true
			break
		}
	}
	if e.Tag() == "input" && e.AttrOr("type", "") == "submit" {
		hint.IsPrimary = true
	}
	return hint
}
