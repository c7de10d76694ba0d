package executor

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/pageplane/pageplane/internal/dom"
	"github.com/pageplane/pageplane/internal/perception"
	"github.com/pageplane/pageplane/internal/protocol"
)

const (
	scrollSettle      = 300 * time.Millisecond
	defaultMouseSteps = 10
)

// Executor resolves candidates by id and executes commands against the
// document surface.
type Executor struct {
	doc   *dom.Document
	ids   *perception.Identity
	sleep func(time.Duration)
}

// New creates an executor over the document using the engine's identity
// registry for lookups.
func New(doc *dom.Document, ids *perception.Identity) *Executor {
	return &Executor{doc: doc, ids: ids, sleep: time.Sleep}
}

// SetSleeper replaces the wait function; tests use this to skip typing
// delays and scroll settling.
func (x *Executor) SetSleeper(fn func(time.Duration)) { x.sleep = fn }

// Execute runs one command and returns its ack. Missing ids, wrong
// element types, and handler errors all become fail acks; Execute never
// panics outward. The whole command runs under the surface lock, so
// perception updates never observe a half-applied input sequence.
func (x *Executor) Execute(cmd protocol.Command) (ack protocol.Ack) {
	x.doc.Update(func() {
		ack = x.execute(cmd)
	})
	return ack
}

func (x *Executor) execute(cmd protocol.Command) (ack protocol.Ack) {
	defer func() {
		if r := recover(); r != nil {
			ack = protocol.FailAck(cmd, fmt.Sprintf("execution panic: %v", r))
		}
	}()

	switch cmd.Type {
	case protocol.TypeClick:
		return x.click(cmd)
	case protocol.TypeType:
		return x.typeText(cmd)
	case protocol.TypeHover:
		return x.hover(cmd)
	case protocol.TypeScroll:
		return x.scroll(cmd)
	case protocol.TypeFocus:
		return x.focus(cmd)
	case protocol.TypeSelect:
		return x.selectOptions(cmd)
	case protocol.TypeMoveMouse:
		return x.moveMouse(cmd)
	case protocol.TypeQuery:
		return x.query(cmd)
	default:
		return protocol.FailAck(cmd, fmt.Sprintf("unknown command type %q", cmd.Type))
	}
}

func (x *Executor) resolve(id string) (*dom.Element, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", protocol.ErrUnknownElement)
	}
	el := x.ids.Lookup(id)
	if el == nil || !el.InTree() {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownElement, id)
	}
	return el, nil
}

func (x *Executor) click(cmd protocol.Command) protocol.Ack {
	el, err := x.resolve(cmd.ID)
	if err != nil {
		return protocol.FailAck(cmd, err.Error())
	}

	clicks := cmd.ClickCount
	if clicks <= 0 {
		clicks = 1
	}
	hit := el.Rect().Center()

	for i := 1; i <= clicks; i++ {
		for _, evType := range []string{"mousedown", "mouseup", "click"} {
			ev := dom.Event{
				Type:      evType,
				Button:    cmd.Button,
				Detail:    i,
				ClientX:   hit.CX,
				ClientY:   hit.CY,
				Modifiers: cmd.Modifiers,
			}
			if evType == "click" {
				if err := el.Click(ev); err != nil {
					return protocol.FailAck(cmd, err.Error())
				}
			} else if err := el.DispatchEvent(ev); err != nil {
				return protocol.FailAck(cmd, err.Error())
			}
		}
	}

	if el.Focusable() {
		el.Focus()
	}
	return x.verifyAck(cmd, el)
}

func isTextTarget(el *dom.Element) bool {
	switch el.Tag() {
	case "textarea":
		return true
	case "input":
		switch el.AttrOr("type", "text") {
		case "button", "submit", "reset", "image", "checkbox", "radio", "range", "file":
			return false
		}
		return true
	}
	return el.AttrOr("contenteditable", "") == "true"
}

func (x *Executor) typeText(cmd protocol.Command) protocol.Ack {
	el, err := x.resolve(cmd.ID)
	if err != nil {
		return protocol.FailAck(cmd, err.Error())
	}
	if !isTextTarget(el) {
		return protocol.FailAck(cmd, fmt.Sprintf("%v: %s is not a text input", protocol.ErrInvalidTarget, cmd.ID))
	}

	el.Focus()
	if cmd.ClearFirst || cmd.Mode == protocol.ModeReplace {
		el.SetValue("")
	}

	for i, r := range cmd.Text {
		key := string(r)
		if err := el.DispatchEvent(dom.Event{Type: "keydown", Key: key}); err != nil {
			return protocol.FailAck(cmd, err.Error())
		}
		if cmd.Mode == protocol.ModePrepend {
			el.SetValue(key + el.Value())
		} else {
			el.SetValue(el.Value() + key)
		}
		if err := el.DispatchEvent(dom.Event{Type: "input", Key: key}); err != nil {
			return protocol.FailAck(cmd, err.Error())
		}
		if err := el.DispatchEvent(dom.Event{Type: "keyup", Key: key}); err != nil {
			return protocol.FailAck(cmd, err.Error())
		}
		if cmd.DelayMs > 0 && i < len(cmd.Text)-1 {
			x.sleep(time.Duration(cmd.DelayMs) * time.Millisecond)
		}
	}

	if err := el.DispatchEvent(dom.Event{Type: "change"}); err != nil {
		return protocol.FailAck(cmd, err.Error())
	}

	return protocol.Ack{
		Type:      protocol.TypeAck,
		TabID:     cmd.TabID,
		CommandID: cmd.CommandID,
		Status:    protocol.AckOK,
		Value:     el.Value(),
	}
}

func (x *Executor) hover(cmd protocol.Command) protocol.Ack {
	el, err := x.resolve(cmd.ID)
	if err != nil {
		return protocol.FailAck(cmd, err.Error())
	}
	hit := el.Rect().Center()
	for _, evType := range []string{"mouseenter", "mouseover", "mousemove"} {
		ev := dom.Event{Type: evType, ClientX: hit.CX, ClientY: hit.CY}
		if err := el.DispatchEvent(ev); err != nil {
			return protocol.FailAck(cmd, err.Error())
		}
	}
	if cmd.DurationMs > 0 {
		x.sleep(time.Duration(cmd.DurationMs) * time.Millisecond)
	}
	return x.verifyAck(cmd, el)
}

func (x *Executor) scroll(cmd protocol.Command) protocol.Ack {
	if cmd.Target != "" && cmd.Target != "viewport" {
		el, err := x.resolve(cmd.Target)
		if err != nil {
			return protocol.FailAck(cmd, err.Error())
		}
		el.ScrollBy(cmd.DX, cmd.DY)
	} else {
		x.doc.ScrollBy(cmd.DX, cmd.DY)
	}

	// Smooth scroll; wait out the animation window before reporting.
	x.sleep(scrollSettle)

	sx, sy := x.doc.Scroll()
	return protocol.Ack{
		Type:      protocol.TypeAck,
		TabID:     cmd.TabID,
		CommandID: cmd.CommandID,
		Status:    protocol.AckOK,
		ScrollX:   &sx,
		ScrollY:   &sy,
	}
}

func (x *Executor) focus(cmd protocol.Command) protocol.Ack {
	el, err := x.resolve(cmd.ID)
	if err != nil {
		return protocol.FailAck(cmd, err.Error())
	}
	if !el.Focus() {
		return protocol.FailAck(cmd, fmt.Sprintf("%v: %s is not focusable", protocol.ErrInvalidTarget, cmd.ID))
	}
	return protocol.Ack{
		Type:      protocol.TypeAck,
		TabID:     cmd.TabID,
		CommandID: cmd.CommandID,
		Status:    protocol.AckOK,
	}
}

func (x *Executor) selectOptions(cmd protocol.Command) protocol.Ack {
	el, err := x.resolve(cmd.ID)
	if err != nil {
		return protocol.FailAck(cmd, err.Error())
	}
	opts := el.Options()
	if el.Tag() != "select" || len(opts) == 0 {
		return protocol.FailAck(cmd, fmt.Sprintf("%v: %s is not a multi-option control", protocol.ErrInvalidTarget, cmd.ID))
	}

	wanted := cmd.Values
	if len(wanted) == 0 && cmd.Value != "" {
		wanted = []string{cmd.Value}
	}

	if el.HasAttr("multiple") {
		for _, opt := range opts {
			opt.SetSelected(false)
		}
	}

	var selected []string
	for _, opt := range opts {
		for _, want := range wanted {
			if opt.AttrOr("value", "") == want || strings.EqualFold(opt.Text(), want) {
				opt.SetSelected(true)
				selected = append(selected, opt.AttrOr("value", opt.Text()))
			}
		}
	}
	if len(selected) > 0 {
		el.SetValue(selected[0])
	}
	if err := el.DispatchEvent(dom.Event{Type: "change"}); err != nil {
		return protocol.FailAck(cmd, err.Error())
	}

	return protocol.Ack{
		Type:      protocol.TypeAck,
		TabID:     cmd.TabID,
		CommandID: cmd.CommandID,
		Status:    protocol.AckOK,
		Value:     strings.Join(selected, ","),
	}
}

func (x *Executor) moveMouse(cmd protocol.Command) protocol.Ack {
	steps := cmd.Steps
	if steps <= 0 {
		steps = defaultMouseSteps
	}
	vp := x.doc.Viewport()
	fromX, fromY := float64(vp.Width)/2, float64(vp.Height)/2
	toX, toY := float64(cmd.X), float64(cmd.Y)

	ts := floats.Span(make([]float64, steps+1), 0, 1)
	stepWait := time.Duration(0)
	if cmd.DurationMs > 0 {
		stepWait = time.Duration(cmd.DurationMs) * time.Millisecond / time.Duration(steps)
	}

	for i, t := range ts {
		e := ease(cmd.Curve, t)
		px := int(fromX + (toX-fromX)*e)
		py := int(fromY + (toY-fromY)*e)
		if el := x.doc.ElementAt(px, py); el != nil {
			_ = el.DispatchEvent(dom.Event{Type: "mousemove", ClientX: px, ClientY: py})
		}
		if stepWait > 0 && i < len(ts)-1 {
			x.sleep(stepWait)
		}
	}

	return protocol.Ack{
		Type:      protocol.TypeAck,
		TabID:     cmd.TabID,
		CommandID: cmd.CommandID,
		Status:    protocol.AckOK,
	}
}

func ease(curve string, t float64) float64 {
	switch curve {
	case protocol.CurveEase:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - 2*(1-t)*(1-t)
	case protocol.CurveSmoothstep:
		return t * t * (3 - 2*t)
	default:
		return t
	}
}

func (x *Executor) query(cmd protocol.Command) protocol.Ack {
	current := perception.Extract(x.doc, x.ids)
	list := make([]protocol.ActionCandidate, 0, len(current))
	for _, c := range current {
		list = append(list, c)
	}
	matches := perception.Search(list, cmd.Search, cmd.Filters)
	return protocol.Ack{
		Type:      protocol.TypeAck,
		TabID:     cmd.TabID,
		CommandID: cmd.CommandID,
		Status:    protocol.AckOK,
		Matches:   matches,
	}
}

// verifyAck re-reads the target after execution: presence in the tree,
// a fresh hit test at the new center, and current bounds.
func (x *Executor) verifyAck(cmd protocol.Command, el *dom.Element) protocol.Ack {
	v := protocol.Verification{ID: cmd.ID}
	if el.InTree() {
		v.StillVisible = true
		rect := el.Rect()
		v.NewRect = &rect
		hit := rect.Center()
		v.HitTestOk = el.Related(x.doc.ElementAt(hit.CX, hit.CY))
	}
	return protocol.Ack{
		Type:         protocol.TypeAck,
		TabID:        cmd.TabID,
		CommandID:    cmd.CommandID,
		Status:       protocol.AckVerify,
		Verification: &v,
	}
}
