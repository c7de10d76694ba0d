package dom

import (
	"strconv"
	"strings"
)

// Style is the computed-style subset perception cares about.
type Style struct {
	Display         string
	Visibility      string
	Opacity         float64
	Cursor          string
	BackgroundColor string
	Color           string
	ZIndex          int
}

// DefaultStyle returns the style of an unstyled element.
func DefaultStyle() Style {
	return Style{Opacity: 1}
}

// Hidden reports whether the style alone removes the element from the
// visible surface.
func (s Style) Hidden() bool {
	return s.Display == "none" || s.Visibility == "hidden" || s.Opacity == 0
}

// parseInlineStyle merges a style="" attribute into the element's style
// and, when present, its layout rect (left/top/width/height in px).
func (e *Element) parseInlineStyle(value string) {
	for _, decl := range strings.Split(value, ";") {
		name, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		val = strings.TrimSpace(val)
		switch name {
		case "display":
			e.style.Display = val
		case "visibility":
			e.style.Visibility = val
		case "opacity":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				e.style.Opacity = f
			}
		case "cursor":
			e.style.Cursor = val
		case "background-color", "background":
			e.style.BackgroundColor = val
		case "color":
			e.style.Color = val
		case "z-index":
			if n, err := strconv.Atoi(val); err == nil {
				e.style.ZIndex = n
			}
		case "left":
			e.rect.X = parsePx(val)
		case "top":
			e.rect.Y = parsePx(val)
		case "width":
			e.rect.W = parsePx(val)
		case "height":
			e.rect.H = parsePx(val)
		}
	}
}

func parsePx(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
