package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/dom"
	"github.com/pageplane/pageplane/internal/protocol"
)

// mirrorScript tags every element with a stable key in a WeakMap and
// dumps the subset of node state the surface models. Keys survive
// attribute and position churn exactly like the element they tag, which
// is what keeps candidate identity stable across polls.
const mirrorScript = `() => {
	if (!window.__ppKeys) { window.__ppKeys = new WeakMap(); window.__ppNext = 1; }
	const keys = window.__ppKeys;
	const out = [];
	const attrsOf = (el) => {
		const a = {};
		for (const attr of el.attributes) a[attr.name.toLowerCase()] = attr.value;
		return a;
	};
	const walk = (el, parentKey) => {
		let k = keys.get(el);
		if (!k) { k = window.__ppNext++; keys.set(el, k); }
		const r = el.getBoundingClientRect();
		const cs = getComputedStyle(el);
		out.push({
			k, p: parentKey,
			tag: el.tagName.toLowerCase(),
			attrs: attrsOf(el),
			text: (el.childNodes.length && el.firstChild.nodeType === 3)
				? el.firstChild.textContent.trim() : "",
			value: "value" in el ? String(el.value ?? "") : "",
			checked: !!el.checked,
			rect: { x: Math.round(r.x), y: Math.round(r.y),
				w: Math.round(r.width), h: Math.round(r.height) },
			style: { display: cs.display, visibility: cs.visibility,
				opacity: parseFloat(cs.opacity), cursor: cs.cursor,
				bg: cs.backgroundColor, color: cs.color,
				z: parseInt(cs.zIndex) || 0 },
		});
		for (const child of el.children) walk(child, k);
	};
	for (const child of document.body.children) walk(child, 0);
	return { vw: innerWidth, vh: innerHeight, url: location.href, nodes: out };
}`

type mirrorNode struct {
	K       int               `json:"k"`
	P       int               `json:"p"`
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs"`
	Text    string            `json:"text"`
	Value   string            `json:"value"`
	Checked bool              `json:"checked"`
	Rect    protocol.Rect     `json:"rect"`
	Style   struct {
		Display    string  `json:"display"`
		Visibility string  `json:"visibility"`
		Opacity    float64 `json:"opacity"`
		Cursor     string  `json:"cursor"`
		Bg         string  `json:"bg"`
		Color      string  `json:"color"`
		Z          int     `json:"z"`
	} `json:"style"`
}

type mirrorDump struct {
	VW    int          `json:"vw"`
	VH    int          `json:"vh"`
	URL   string       `json:"url"`
	Nodes []mirrorNode `json:"nodes"`
}

// Mirror replays a live browser page into a document surface by
// polling a CDP dump. Applying a dump mutates the document through its
// normal mutation paths, so the engine's observers fire as if the page
// changed underneath it.
type Mirror struct {
	page     *rod.Page
	doc      *dom.Document
	interval time.Duration
	log      *zap.Logger

	elements map[int]*dom.Element
}

// NewMirror creates a mirror from page into doc.
func NewMirror(page *rod.Page, doc *dom.Document, interval time.Duration, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Mirror{
		page:     page,
		doc:      doc,
		interval: interval,
		log:      log,
		elements: make(map[int]*dom.Element),
	}
}

// Run polls until the context ends.
func (m *Mirror) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sync(ctx); err != nil {
				m.log.Warn("mirror sync failed", zap.Error(err))
			}
		}
	}
}

// Sync fetches one dump and applies it.
func (m *Mirror) Sync(ctx context.Context) error {
	obj, err := m.page.Context(ctx).Eval(mirrorScript)
	if err != nil {
		return fmt.Errorf("mirror eval: %w", err)
	}
	raw, err := obj.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("mirror encode: %w", err)
	}
	var dump mirrorDump
	if err := json.Unmarshal(raw, &dump); err != nil {
		return fmt.Errorf("mirror decode: %w", err)
	}
	m.apply(dump)
	return nil
}

func (m *Mirror) apply(dump mirrorDump) {
	m.doc.Update(func() { m.applyLocked(dump) })
}

func (m *Mirror) applyLocked(dump mirrorDump) {
	m.doc.SetViewport(protocol.Viewport{Width: dump.VW, Height: dump.VH})

	seen := make(map[int]bool, len(dump.Nodes))
	for _, node := range dump.Nodes {
		seen[node.K] = true
		el, ok := m.elements[node.K]
		if !ok {
			el = m.doc.NewElement(node.Tag)
			m.elements[node.K] = el
			parent := m.doc.Body()
			if p, ok := m.elements[node.P]; ok {
				parent = p
			}
			parent.AppendChild(el)
		}
		m.applyNode(el, node)
	}

	for k, el := range m.elements {
		if !seen[k] {
			el.Remove()
			delete(m.elements, k)
		}
	}
}

func (m *Mirror) applyNode(el *dom.Element, node mirrorNode) {
	for name, value := range node.Attrs {
		if el.AttrOr(name, "\x00") != value {
			el.SetAttr(name, value)
		}
	}
	for _, name := range attrNames(el) {
		if _, ok := node.Attrs[name]; !ok {
			el.RemoveAttr(name)
		}
	}

	el.SetRect(node.Rect)
	el.SetStyle(dom.Style{
		Display:         node.Style.Display,
		Visibility:      node.Style.Visibility,
		Opacity:         node.Style.Opacity,
		Cursor:          node.Style.Cursor,
		BackgroundColor: node.Style.Bg,
		Color:           node.Style.Color,
		ZIndex:          node.Style.Z,
	})
	if node.Text != "" {
		el.SetText(node.Text)
	}
	if el.Value() != node.Value {
		el.SetValue(node.Value)
	}
	el.SetChecked(node.Checked)
}

func attrNames(el *dom.Element) []string {
	var names []string
	for _, name := range knownAttrs {
		if el.HasAttr(name) {
			names = append(names, name)
		}
	}
	return names
}

// knownAttrs are the attributes the mirror reconciles on removal; the
// perception engine only reads these.
var knownAttrs = []string{
	"id", "class", "style", "href", "type", "role", "tabindex", "onclick",
	"contenteditable", "disabled", "hidden", "multiple", "for", "title",
	"placeholder", "value", "aria-label", "aria-labelledby",
	"aria-disabled", "aria-expanded", "aria-checked", "aria-selected",
	"data-variant", "open",
}
