package perception

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/dom"
	"github.com/pageplane/pageplane/internal/protocol"
)

// DefaultDebounce is the coalescing window for observer triggers.
const DefaultDebounce = 50 * time.Millisecond

// observedAttributes is the mutation-observer attribute filter. Changes
// to attributes outside this list do not schedule an update.
var observedAttributes = []string{
	"disabled", "aria-disabled", "aria-expanded", "aria-checked",
	"aria-selected", "aria-label", "class", "style", "hidden", "value",
	// internal surface notifications outside the HTML attribute space
	"checked", "selected", "focus",
}

// Engine maintains the candidate set for one document and emits deltas
// under mutation.
type Engine struct {
	mu       sync.Mutex
	doc      *dom.Document
	ids      *Identity
	prev     map[string]protocol.ActionCandidate
	debounce time.Duration
	log      *zap.Logger

	// Scheduling state lives under its own lock so observer callbacks
	// fired from inside an update (the engine's own emission can mutate
	// the page, e.g. focus changes) never re-enter mu.
	timerMu sync.Mutex
	timer   *time.Timer
	pending bool
	running bool

	onDelta func(protocol.Delta)
	onEvent func(name string)

	observers  []*dom.MutationObserver
	registered map[*dom.Element]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebounce overrides the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithLogger attaches a logger for observer-error reporting.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates an engine over the document. OnDelta receives every
// non-empty delta; onEvent receives modal/menu notifications. Neither
// callback may be nil.
func NewEngine(doc *dom.Document, onDelta func(protocol.Delta), onEvent func(name string), opts ...Option) *Engine {
	e := &Engine{
		doc:        doc,
		ids:        NewIdentity(),
		debounce:   DefaultDebounce,
		log:        zap.NewNop(),
		onDelta:    onDelta,
		onEvent:    onEvent,
		registered: make(map[*dom.Element]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start wires the observers and returns the initial candidate set. The
// caller sends a snapshot from it; subsequent emissions are deltas until
// the engine is restarted.
func (e *Engine) Start() []protocol.ActionCandidate {
	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.timerMu.Lock()
	e.running = true
	e.timerMu.Unlock()

	body := e.doc.Body()

	mut := e.doc.Observe(body, dom.ObserveOptions{
		Subtree:         true,
		ChildList:       true,
		Attributes:      true,
		AttributeFilter: observedAttributes,
	}, e.onMutations)
	e.observers = append(e.observers, mut)

	structural := e.doc.Observe(body, dom.ObserveOptions{
		Subtree:   true,
		ChildList: true,
	}, e.onStructural)
	e.observers = append(e.observers, structural)

	e.doc.OnResize(e.schedule)
	e.doc.OnScroll(e.schedule)

	e.doc.Update(func() {
		e.prev = Extract(e.doc, e.ids)
		e.refreshIntersections()
	})

	out := make([]protocol.ActionCandidate, 0, len(e.prev))
	for _, c := range e.prev {
		out = append(out, c)
	}
	return out
}

// Stop disconnects every observer and cancels a pending update.
func (e *Engine) Stop() {
	e.timerMu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = false
	e.running = false
	e.timerMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, obs := range e.observers {
		obs.Disconnect()
	}
	e.observers = nil
	for el := range e.registered {
		e.doc.UnobserveIntersection(el)
	}
	e.registered = make(map[*dom.Element]bool)
}

// ForceUpdate bypasses the debounce and emits immediately.
func (e *Engine) ForceUpdate() {
	e.timerMu.Lock()
	if !e.running {
		e.timerMu.Unlock()
		return
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = false
	e.timerMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateLocked()
}

// Snapshot re-extracts the full current candidate set and resets the
// diff baseline, as for a fresh snapshot emission.
func (e *Engine) Snapshot() []protocol.ActionCandidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc.Update(func() {
		e.prev = Extract(e.doc, e.ids)
		e.refreshIntersections()
	})
	out := make([]protocol.ActionCandidate, 0, len(e.prev))
	for _, c := range e.prev {
		out = append(out, c)
	}
	return out
}

// Identity exposes the id registry for the executor's lookups.
func (e *Engine) Identity() *Identity { return e.ids }

// onMutations filters observer records down to ones that can change the
// candidate set, then schedules a debounced update.
func (e *Engine) onMutations(records []dom.MutationRecord) {
	defer e.recoverObserver("mutation")
	for _, rec := range records {
		if e.relevant(rec) {
			e.schedule()
			return
		}
	}
}

func (e *Engine) relevant(rec dom.MutationRecord) bool {
	switch rec.Kind {
	case dom.MutationAttributes:
		// The attribute filter already narrowed these; an attribute
		// change on any element can flip ancestry-derived fields too.
		return true
	case dom.MutationChildList:
		for _, el := range rec.Added {
			if containsInteractive(el) {
				return true
			}
		}
		for _, el := range rec.Removed {
			if containsInteractive(el) {
				return true
			}
		}
	}
	return false
}

func containsInteractive(root *dom.Element) bool {
	found := false
	root.Walk(func(e *dom.Element) bool {
		if Interactive(e) {
			found = true
			return false
		}
		return true
	})
	return found
}

// schedule coalesces triggers: mark pending and arm the debounce timer;
// repeated triggers inside the window collapse into one update. Only
// timerMu is taken here, so scheduling is safe from observer callbacks
// fired inside an update.
func (e *Engine) schedule() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if !e.running || e.pending {
		return
	}
	e.pending = true
	e.timer = time.AfterFunc(e.debounce, e.fire)
}

func (e *Engine) fire() {
	e.timerMu.Lock()
	if !e.pending || !e.running {
		e.timerMu.Unlock()
		return
	}
	e.pending = false
	e.timer = nil
	e.timerMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateLocked()
}

func (e *Engine) updateLocked() {
	var current map[string]protocol.ActionCandidate
	e.doc.Update(func() {
		current = Extract(e.doc, e.ids)
		e.refreshIntersections()
	})
	delta := Diff(e.prev, current)
	e.prev = current
	if !delta.Empty() {
		e.emitDelta(delta)
	}
}

func (e *Engine) emitDelta(d protocol.Delta) {
	defer e.recoverObserver("delta emission")
	e.onDelta(d)
}

// refreshIntersections keeps one intersection registration per live
// interactive element.
func (e *Engine) refreshIntersections() {
	live := make(map[*dom.Element]bool)
	e.doc.Body().Walk(func(el *dom.Element) bool {
		if el != e.doc.Body() && Interactive(el) {
			live[el] = true
			if !e.registered[el] {
				e.doc.ObserveIntersection(el, func(*dom.Element) { e.schedule() })
				e.registered[el] = true
			}
		}
		return true
	})
	for el := range e.registered {
		if !live[el] {
			e.doc.UnobserveIntersection(el)
			delete(e.registered, el)
		}
	}
}

// onStructural watches for modal and menu containers entering or leaving
// the tree and emits the corresponding events immediately (no debounce).
func (e *Engine) onStructural(records []dom.MutationRecord) {
	defer e.recoverObserver("structural")
	for _, rec := range records {
		if rec.Kind != dom.MutationChildList {
			continue
		}
		for _, el := range rec.Added {
			if name := containerEvent(el, true); name != "" {
				e.onEvent(name)
			}
		}
		for _, el := range rec.Removed {
			if name := containerEvent(el, false); name != "" {
				e.onEvent(name)
			}
		}
	}
}

func containerEvent(root *dom.Element, opened bool) string {
	event := ""
	root.Walk(func(el *dom.Element) bool {
		role := el.AttrOr("role", "")
		if role == "" && el.Tag() == "dialog" {
			role = "dialog"
		}
		switch role {
		case "dialog", "alertdialog":
			if opened {
				event = protocol.EventModalOpened
			} else {
				event = protocol.EventModalClosed
			}
			return false
		case "menu", "listbox":
			if opened {
				event = protocol.EventMenuOpened
			} else {
				event = protocol.EventMenuClosed
			}
			return false
		}
		return true
	})
	return event
}

func (e *Engine) recoverObserver(where string) {
	if r := recover(); r != nil {
		e.log.Error("observer callback panic",
			zap.String("observer", where),
			zap.Any("panic", r))
	}
}
