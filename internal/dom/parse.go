package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/pageplane/pageplane/internal/protocol"
)

// ParseHTML builds a document from HTML source. Geometry comes from
// inline styles (left/top/width/height); everything else defaults to a
// zero rect and is excluded by the visibility filter until positioned.
func ParseHTML(src string, vp protocol.Viewport) (*Document, error) {
	node, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := NewDocument(vp)
	body := findBody(node)
	if body == nil {
		return nil, fmt.Errorf("parse html: no body")
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		buildNode(doc, doc.Body(), c)
	}
	return doc, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findBody(c); found != nil {
			return found
		}
	}
	return nil
}

func buildNode(doc *Document, parent *Element, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			if parent.text == "" {
				parent.text = t
			} else {
				parent.text += " " + t
			}
		}
	case html.ElementNode:
		el := doc.NewElement(n.Data)
		for _, a := range n.Attr {
			el.attrs[strings.ToLower(a.Key)] = a.Val
			if strings.ToLower(a.Key) == "style" {
				el.parseInlineStyle(a.Val)
			}
		}
		if v, ok := el.Attr("value"); ok {
			el.value = v
		}
		if el.HasAttr("checked") {
			el.checked = true
		}
		if el.HasAttr("selected") {
			el.selected = true
		}
		el.parent = parent
		parent.children = append(parent.children, el)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			buildNode(doc, el, c)
		}
	}
}
