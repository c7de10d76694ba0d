package perception

import "github.com/pageplane/pageplane/internal/dom"

// landmarkRoles maps semantic landmark tags to their ARIA equivalents.
var landmarkRoles = map[string]string{
	"nav":     "navigation",
	"main":    "main",
	"header":  "banner",
	"footer":  "contentinfo",
	"aside":   "complementary",
	"form":    "form",
	"section": "region",
	"dialog":  "dialog",
}

// Role derives the ARIA role of an element. An explicit role attribute
// wins; otherwise the role follows from tag and input type.
func Role(e *dom.Element) string {
	if r, ok := e.Attr("role"); ok && r != "" {
		return r
	}
	switch e.Tag() {
	case "a":
		if e.HasAttr("href") {
			return "link"
		}
	case "button":
		return "button"
	case "input":
		return inputRole(e.AttrOr("type", "text"))
	case "select":
		if e.HasAttr("multiple") {
			return "listbox"
		}
		return "combobox"
	case "textarea":
		return "textbox"
	case "summary":
		return "button"
	case "option":
		return "option"
	}
	if r, ok := landmarkRoles[e.Tag()]; ok {
		return r
	}
	return "generic"
}

func inputRole(typ string) string {
	switch typ {
	case "button", "submit", "reset", "image":
		return "button"
	case "checkbox":
		return "checkbox"
	case "radio":
		return "radio"
	case "range":
		return "slider"
	case "search":
		return "searchbox"
	default:
		return "textbox"
	}
}
