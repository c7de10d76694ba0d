package dom

import (
	"fmt"

	"github.com/dop251/goja"
)

// Event is a synthesized input event.
type Event struct {
	Type      string
	Target    *Element
	Button    int
	Detail    int
	ClientX   int
	ClientY   int
	Key       string
	Modifiers []string
}

// DispatchEvent delivers an event to the element, running any matching
// inline on* handler. Handler errors are returned so the executor can
// fold them into a fail ack.
func (e *Element) DispatchEvent(ev Event) error {
	ev.Target = e
	return e.dispatch(ev)
}

func (e *Element) dispatch(ev Event) error {
	src, ok := e.Attr("on" + ev.Type)
	if !ok || src == "" {
		return nil
	}
	return e.doc.runHandler(e, ev, src)
}

// Click performs native activation: a click event plus the element's
// default behavior (checkbox/radio toggling, details expansion).
func (e *Element) Click(ev Event) error {
	ev.Type = "click"
	if err := e.DispatchEvent(ev); err != nil {
		return err
	}
	switch e.tag {
	case "input":
		switch e.AttrOr("type", "") {
		case "checkbox":
			e.SetChecked(!e.checked)
		case "radio":
			e.SetChecked(true)
		}
	case "summary":
		if p := e.parent; p != nil && p.tag == "details" {
			if p.HasAttr("open") {
				p.RemoveAttr("open")
			} else {
				p.SetAttr("open", "")
			}
		}
	}
	return nil
}

// scriptHost runs inline handler source inside a shared goja runtime.
type scriptHost struct {
	vm *goja.Runtime
}

func (d *Document) runHandler(e *Element, ev Event, src string) (err error) {
	if d.scripts == nil {
		d.scripts = &scriptHost{vm: goja.New()}
	}
	vm := d.scripts.vm

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	eventObj := vm.NewObject()
	_ = eventObj.Set("type", ev.Type)
	_ = eventObj.Set("button", ev.Button)
	_ = eventObj.Set("detail", ev.Detail)
	_ = eventObj.Set("clientX", ev.ClientX)
	_ = eventObj.Set("clientY", ev.ClientY)
	_ = eventObj.Set("key", ev.Key)

	elemObj := vm.NewObject()
	_ = elemObj.Set("getAttribute", func(name string) string { return e.AttrOr(name, "") })
	_ = elemObj.Set("setAttribute", func(name, value string) { e.SetAttr(name, value) })
	_ = elemObj.Set("removeAttribute", func(name string) { e.RemoveAttr(name) })
	_ = elemObj.Set("value", e.Value())

	_ = vm.Set("event", eventObj)
	_ = vm.Set("element", elemObj)

	if _, err := vm.RunString(src); err != nil {
		return fmt.Errorf("handler error: %w", err)
	}
	return nil
}
