package dom

// Mutation record kinds.
const (
	MutationChildList  = "childList"
	MutationAttributes = "attributes"
)

// MutationRecord describes one observed tree change.
type MutationRecord struct {
	Kind          string
	Target        *Element
	AttributeName string
	Added         []*Element
	Removed       []*Element
}

// ObserveOptions selects which mutations an observer receives.
type ObserveOptions struct {
	Subtree         bool
	ChildList       bool
	Attributes      bool
	AttributeFilter []string
}

// MutationObserver delivers mutation records synchronously from the
// mutating call. Callbacks must tolerate re-entrancy from their own
// mutations; panics are swallowed so one broken observer cannot take the
// surface down.
type MutationObserver struct {
	doc      *Document
	target   *Element
	opts     ObserveOptions
	callback func([]MutationRecord)
	active   bool
}

// Observe registers a mutation observer rooted at target.
func (d *Document) Observe(target *Element, opts ObserveOptions, cb func([]MutationRecord)) *MutationObserver {
	obs := &MutationObserver{doc: d, target: target, opts: opts, callback: cb, active: true}
	d.mutationObs = append(d.mutationObs, obs)
	return obs
}

// Disconnect stops delivery to the observer.
func (o *MutationObserver) Disconnect() { o.active = false }

func (o *MutationObserver) wants(rec MutationRecord) bool {
	if !o.active {
		return false
	}
	if rec.Target != o.target && !(o.opts.Subtree && o.target.Contains(rec.Target)) {
		return false
	}
	switch rec.Kind {
	case MutationChildList:
		return o.opts.ChildList
	case MutationAttributes:
		if !o.opts.Attributes {
			return false
		}
		if len(o.opts.AttributeFilter) == 0 {
			return true
		}
		for _, name := range o.opts.AttributeFilter {
			if name == rec.AttributeName {
				return true
			}
		}
	}
	return false
}

func (d *Document) deliver(rec MutationRecord) {
	for _, obs := range d.mutationObs {
		if obs.wants(rec) {
			func() {
				defer func() { _ = recover() }()
				obs.callback([]MutationRecord{rec})
			}()
		}
	}
}

func (d *Document) notifyAttr(e *Element, name string) {
	d.deliver(MutationRecord{Kind: MutationAttributes, Target: e, AttributeName: name})
}

func (d *Document) notifyChildList(parent *Element, added, removed []*Element) {
	d.deliver(MutationRecord{Kind: MutationChildList, Target: parent, Added: added, Removed: removed})
}

// OnResize registers a resize observer on the document body.
func (d *Document) OnResize(fn func()) {
	d.resizeObs = append(d.resizeObs, fn)
}

// ObserveIntersection registers a per-element intersection callback,
// fired whenever the element's rect or the viewport changes.
func (d *Document) ObserveIntersection(e *Element, fn func(*Element)) {
	d.intersectionObs[e] = append(d.intersectionObs[e], fn)
}

// UnobserveIntersection drops all intersection callbacks for an element.
func (d *Document) UnobserveIntersection(e *Element) {
	delete(d.intersectionObs, e)
}

func (d *Document) notifyIntersection(e *Element) {
	for _, fn := range d.intersectionObs[e] {
		func() {
			defer func() { _ = recover() }()
			fn(e)
		}()
	}
}
