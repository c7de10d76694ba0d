package perception

import (
	"github.com/pageplane/pageplane/internal/dom"
	"github.com/pageplane/pageplane/internal/protocol"
)

// Identity assigns stable candidate ids keyed by element identity. The
// same element always yields the same id; identity survives attribute,
// class, and position changes, and a detached element re-added to the
// tree keeps its id.
//
// Entries are held for the lifetime of the page surface. Go has no weak
// map usable as a key index here, so the registry grows with the set of
// elements ever seen on the page; the set is bounded by the page itself
// and the registry is dropped whole on navigation.
type Identity struct {
	ids     map[*dom.Element]string
	byID    map[string]*dom.Element
	counter uint64
}

// NewIdentity creates an empty registry.
func NewIdentity() *Identity {
	return &Identity{
		ids:  make(map[*dom.Element]string),
		byID: make(map[string]*dom.Element),
	}
}

// Acquire returns the element's id, assigning one on first encounter.
// Elements with a DOM id attribute unique in the document get e_<id>;
// everything else gets a_<base36 counter>.
func (r *Identity) Acquire(e *dom.Element) string {
	if id, ok := r.ids[e]; ok {
		return id
	}
	var id string
	if domID := e.ID(); domID != "" && e.Document().CountByID(domID) == 1 {
		id = protocol.DOMElementID(domID)
		if _, taken := r.byID[id]; taken {
			id = ""
		}
	}
	if id == "" {
		id = protocol.ElementID(r.counter)
		r.counter++
	}
	r.ids[e] = id
	r.byID[id] = e
	return id
}

// Lookup resolves a candidate id back to its element, nil when the id
// was never assigned.
func (r *Identity) Lookup(id string) *dom.Element {
	return r.byID[id]
}

// Len returns the number of tracked elements.
func (r *Identity) Len() int { return len(r.ids) }
