package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageplane/pageplane/internal/protocol"
)

func testDoc() *Document {
	return NewDocument(protocol.Viewport{Width: 1024, Height: 768})
}

func TestTreeMutationObservers(t *testing.T) {
	doc := testDoc()
	var records []MutationRecord
	doc.Observe(doc.Body(), ObserveOptions{Subtree: true, ChildList: true}, func(recs []MutationRecord) {
		records = append(records, recs...)
	})

	btn := doc.NewElement("button")
	doc.Body().AppendChild(btn)
	require.Len(t, records, 1)
	assert.Equal(t, MutationChildList, records[0].Kind)
	assert.Equal(t, []*Element{btn}, records[0].Added)

	btn.Remove()
	require.Len(t, records, 2)
	assert.Equal(t, []*Element{btn}, records[1].Removed)
	assert.False(t, btn.InTree())
}

func TestAttributeFilter(t *testing.T) {
	doc := testDoc()
	btn := doc.NewElement("button")
	doc.Body().AppendChild(btn)

	var names []string
	doc.Observe(doc.Body(), ObserveOptions{
		Subtree:         true,
		Attributes:      true,
		AttributeFilter: []string{"disabled", "class"},
	}, func(recs []MutationRecord) {
		for _, r := range recs {
			names = append(names, r.AttributeName)
		}
	})

	btn.SetAttr("disabled", "")
	btn.SetAttr("data-x", "1")
	btn.SetAttr("class", "primary")
	assert.Equal(t, []string{"disabled", "class"}, names)
}

func TestSetAttrNoopSkipsNotification(t *testing.T) {
	doc := testDoc()
	el := doc.NewElement("div")
	doc.Body().AppendChild(el)

	count := 0
	doc.Observe(doc.Body(), ObserveOptions{Subtree: true, Attributes: true}, func([]MutationRecord) {
		count++
	})

	el.SetAttr("class", "a")
	el.SetAttr("class", "a")
	assert.Equal(t, 1, count)
}

func TestHitTestTopmost(t *testing.T) {
	doc := testDoc()
	under := doc.NewElement("div")
	under.SetRect(protocol.Rect{X: 0, Y: 0, W: 200, H: 200})
	over := doc.NewElement("div")
	over.SetRect(protocol.Rect{X: 50, Y: 50, W: 100, H: 100})
	doc.Body().AppendChild(under)
	doc.Body().AppendChild(over)

	assert.Equal(t, over, doc.ElementAt(100, 100))
	assert.Equal(t, under, doc.ElementAt(10, 10))
	assert.Nil(t, doc.ElementAt(500, 500))

	// z-index beats document order
	under.SetStyle(Style{Opacity: 1, ZIndex: 10})
	assert.Equal(t, under, doc.ElementAt(100, 100))
}

func TestHitTestIgnoresHidden(t *testing.T) {
	doc := testDoc()
	el := doc.NewElement("div")
	el.SetRect(protocol.Rect{X: 0, Y: 0, W: 100, H: 100})
	doc.Body().AppendChild(el)
	require.Equal(t, el, doc.ElementAt(50, 50))

	el.SetStyle(Style{Display: "none", Opacity: 1})
	assert.Nil(t, doc.ElementAt(50, 50))
}

func TestFocus(t *testing.T) {
	doc := testDoc()
	input := doc.NewElement("input")
	div := doc.NewElement("div")
	doc.Body().AppendChild(input)
	doc.Body().AppendChild(div)

	assert.True(t, input.Focus())
	assert.Equal(t, input, doc.ActiveElement())
	assert.True(t, input.Focused())

	assert.False(t, div.Focus())
	assert.Equal(t, input, doc.ActiveElement())

	input.Remove()
	assert.Nil(t, doc.ActiveElement())
}

func TestInlineHandlerRuns(t *testing.T) {
	doc := testDoc()
	btn := doc.NewElement("button")
	btn.SetAttr("onclick", `element.setAttribute('data-clicked', 'yes')`)
	doc.Body().AppendChild(btn)

	require.NoError(t, btn.Click(Event{}))
	assert.Equal(t, "yes", btn.AttrOr("data-clicked", ""))
}

func TestInlineHandlerErrorSurfaces(t *testing.T) {
	doc := testDoc()
	btn := doc.NewElement("button")
	btn.SetAttr("onclick", `throw new Error("boom")`)
	doc.Body().AppendChild(btn)

	assert.Error(t, btn.Click(Event{}))
}

func TestCheckboxActivation(t *testing.T) {
	doc := testDoc()
	cb := doc.NewElement("input")
	cb.SetAttr("type", "checkbox")
	doc.Body().AppendChild(cb)

	require.NoError(t, cb.Click(Event{}))
	assert.True(t, cb.Checked())
	require.NoError(t, cb.Click(Event{}))
	assert.False(t, cb.Checked())
}

func TestParseHTML(t *testing.T) {
	doc, err := ParseHTML(`<html><body>
		<button id="go" class="primary" style="left:10px;top:20px;width:100px;height:30px">Start</button>
		<select multiple><option value="a" selected>Alpha</option><option value="b">Beta</option></select>
		<input type="text" value="hello">
	</body></html>`, protocol.Viewport{Width: 800, Height: 600})
	require.NoError(t, err)

	btn := doc.ByID("go")
	require.NotNil(t, btn)
	assert.Equal(t, "button", btn.Tag())
	assert.Equal(t, protocol.Rect{X: 10, Y: 20, W: 100, H: 30}, btn.Rect())
	assert.Equal(t, "Start", btn.Text())

	var sel *Element
	doc.Body().Walk(func(e *Element) bool {
		if e.Tag() == "select" {
			sel = e
			return false
		}
		return true
	})
	require.NotNil(t, sel)
	opts := sel.Options()
	require.Len(t, opts, 2)
	assert.True(t, opts[0].Selected())
	assert.False(t, opts[1].Selected())

	var input *Element
	doc.Body().Walk(func(e *Element) bool {
		if e.Tag() == "input" {
			input = e
			return false
		}
		return true
	})
	require.NotNil(t, input)
	assert.Equal(t, "hello", input.Value())
}

func TestTextCollapsesWhitespace(t *testing.T) {
	doc := testDoc()
	outer := doc.NewElement("div")
	outer.SetText("  Hello ")
	inner := doc.NewElement("span")
	inner.SetText("  world  ")
	outer.AppendChild(inner)
	doc.Body().AppendChild(outer)

	assert.Equal(t, "Hello world", outer.Text())
}

func TestContainsAndRelated(t *testing.T) {
	doc := testDoc()
	parent := doc.NewElement("div")
	child := doc.NewElement("span")
	other := doc.NewElement("p")
	parent.AppendChild(child)
	doc.Body().AppendChild(parent)
	doc.Body().AppendChild(other)

	assert.True(t, parent.Contains(child))
	assert.False(t, child.Contains(parent))
	assert.True(t, child.Related(parent))
	assert.True(t, parent.Related(child))
	assert.False(t, parent.Related(other))
}
