package perception

import (
	"strings"

	"github.com/pageplane/pageplane/internal/dom"
)

const maxNameLength = 80

// AccessibleName derives the candidate name in priority order:
// aria-label, aria-labelledby target text, associated label text, title,
// placeholder, then truncated text content.
func AccessibleName(e *dom.Element) string {
	if v := strings.TrimSpace(e.AttrOr("aria-label", "")); v != "" {
		return v
	}
	if ref := e.AttrOr("aria-labelledby", ""); ref != "" {
		var parts []string
		for _, id := range strings.Fields(ref) {
			if target := e.Document().ByID(id); target != nil {
				if t := target.Text(); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) > 0 {
			return truncate(strings.Join(parts, " "))
		}
	}
	if label := associatedLabel(e); label != nil {
		if t := label.Text(); t != "" {
			return truncate(t)
		}
	}
	if v := strings.TrimSpace(e.AttrOr("title", "")); v != "" {
		return v
	}
	if v := strings.TrimSpace(e.AttrOr("placeholder", "")); v != "" {
		return v
	}
	return truncate(e.Text())
}

// associatedLabel finds a label[for] pointing at the element, or an
// ancestor label wrapping it.
func associatedLabel(e *dom.Element) *dom.Element {
	if id := e.ID(); id != "" {
		var found *dom.Element
		e.Document().Body().Walk(func(n *dom.Element) bool {
			if n.Tag() == "label" && n.AttrOr("for", "") == id {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.Tag() == "label" {
			return p
		}
	}
	return nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxNameLength {
		return s[:maxNameLength]
	}
	return s
}
