package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageplane/pageplane/internal/protocol"
)

func TestIdentityStableAcrossAttributeChurn(t *testing.T) {
	doc := newDoc()
	btn := addButton(doc, "Go", protocol.Rect{X: 0, Y: 0, W: 50, H: 20})

	ids := NewIdentity()
	id := ids.Acquire(btn)

	btn.SetAttr("class", "changed")
	btn.SetRect(protocol.Rect{X: 300, Y: 300, W: 50, H: 20})
	assert.Equal(t, id, ids.Acquire(btn))
}

func TestIdentityUsesUniqueDOMID(t *testing.T) {
	doc := newDoc()
	btn := addButton(doc, "Go", protocol.Rect{X: 0, Y: 0, W: 50, H: 20})
	btn.SetAttr("id", "submit")

	ids := NewIdentity()
	assert.Equal(t, "e_submit", ids.Acquire(btn))
}

func TestIdentityDuplicateDOMIDFallsBack(t *testing.T) {
	doc := newDoc()
	a := addButton(doc, "A", protocol.Rect{X: 0, Y: 0, W: 50, H: 20})
	b := addButton(doc, "B", protocol.Rect{X: 0, Y: 30, W: 50, H: 20})
	a.SetAttr("id", "dup")
	b.SetAttr("id", "dup")

	ids := NewIdentity()
	idA := ids.Acquire(a)
	idB := ids.Acquire(b)
	assert.Equal(t, "a_0", idA)
	assert.Equal(t, "a_1", idB)
	assert.NotEqual(t, idA, idB)
}

func TestIdentitySurvivesReattach(t *testing.T) {
	doc := newDoc()
	btn := addButton(doc, "Go", protocol.Rect{X: 0, Y: 0, W: 50, H: 20})

	ids := NewIdentity()
	id := ids.Acquire(btn)

	btn.Remove()
	doc.Body().AppendChild(btn)
	assert.Equal(t, id, ids.Acquire(btn))
}

func TestLookup(t *testing.T) {
	doc := newDoc()
	btn := addButton(doc, "Go", protocol.Rect{X: 0, Y: 0, W: 50, H: 20})

	ids := NewIdentity()
	id := ids.Acquire(btn)
	require.Equal(t, btn, ids.Lookup(id))
	assert.Nil(t, ids.Lookup("a_zz"))
}
