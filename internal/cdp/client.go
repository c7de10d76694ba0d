package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Client is the remote-debugging surface the gateway consumes.
type Client interface {
	Navigate(ctx context.Context, url string) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Evaluate(ctx context.Context, expression string) (any, error)
	Status() Status
	Close() error
}

// Status describes the debugging link for the status surface.
type Status struct {
	Connected bool   `json:"connected"`
	URL       string `json:"url,omitempty"`
	Targets   int    `json:"targets"`
}

// keyNames maps protocol key names to CDP keys.
var keyNames = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Space":      input.Space,
}

// Rod is the rod-backed client.
type Rod struct {
	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	url     string
}

// Connect attaches to a browser over its devtools websocket url.
func Connect(controlURL string) (*Rod, error) {
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("cdp connect: %w", err)
	}
	return &Rod{browser: browser, url: controlURL}, nil
}

// currentPage returns the active page, attaching to the first open one
// on demand.
func (r *Rod) currentPage() (*rod.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.page != nil {
		return r.page, nil
	}
	pages, err := r.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("cdp pages: %w", err)
	}
	if len(pages) == 0 {
		page, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return nil, fmt.Errorf("cdp create page: %w", err)
		}
		r.page = page
		return page, nil
	}
	r.page = pages[0]
	return r.page, nil
}

// Navigate loads the url in the active page and waits for load.
func (r *Rod) Navigate(ctx context.Context, url string) error {
	page, err := r.currentPage()
	if err != nil {
		return err
	}
	page = page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// TypeText synthesizes raw keystrokes, bypassing any element targeting.
func (r *Rod) TypeText(ctx context.Context, text string) error {
	page, err := r.currentPage()
	if err != nil {
		return err
	}
	if err := (proto.InputInsertText{Text: text}).Call(page.Context(ctx)); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}

// PressKey presses a named key (Enter, Tab, ...). Single-rune names are
// typed literally.
func (r *Rod) PressKey(ctx context.Context, key string) error {
	page, err := r.currentPage()
	if err != nil {
		return err
	}
	page = page.Context(ctx)
	if k, ok := keyNames[key]; ok {
		if err := page.Keyboard.Press(k); err != nil {
			return fmt.Errorf("press %s: %w", key, err)
		}
		return nil
	}
	runes := []rune(key)
	if len(runes) == 1 {
		if err := page.Keyboard.Press(input.Key(runes[0])); err != nil {
			return fmt.Errorf("press %q: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("unknown key %q", key)
}

// Evaluate runs an expression in the page and returns its value.
func (r *Rod) Evaluate(ctx context.Context, expression string) (any, error) {
	page, err := r.currentPage()
	if err != nil {
		return nil, err
	}
	obj, err := page.Context(ctx).Eval(fmt.Sprintf("() => (%s)", expression))
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return obj.Value.Val(), nil
}

// AttachPage returns the page the agent mirrors: the first open page,
// navigated to url when one is given.
func (r *Rod) AttachPage(url string) (*rod.Page, error) {
	page, err := r.currentPage()
	if err != nil {
		return nil, err
	}
	if url != "" {
		if err := page.Navigate(url); err != nil {
			return nil, fmt.Errorf("navigate %s: %w", url, err)
		}
		if err := page.WaitLoad(); err != nil {
			return nil, fmt.Errorf("wait load %s: %w", url, err)
		}
	}
	return page, nil
}

// PageInfo reads the page's current url and the browser user agent.
func (r *Rod) PageInfo(page *rod.Page) (url, userAgent string, err error) {
	info, err := page.Info()
	if err != nil {
		return "", "", fmt.Errorf("page info: %w", err)
	}
	version, err := proto.BrowserGetVersion{}.Call(r.browser)
	if err != nil {
		return info.URL, "", nil
	}
	return info.URL, version.UserAgent, nil
}

// Status reports the link state.
func (r *Rod) Status() Status {
	st := Status{URL: r.url}
	pages, err := r.browser.Pages()
	if err != nil {
		return st
	}
	st.Connected = true
	st.Targets = len(pages)
	return st
}

// Close tears down the browser connection.
func (r *Rod) Close() error {
	return r.browser.Close()
}

// Disconnected is a Client with no browser behind it; every operation
// fails with a stable message so controllers get deterministic errors
// when the debug port was never reachable.
type Disconnected struct{}

var errNoBrowser = fmt.Errorf("no browser connected on the remote debug port")

func (Disconnected) Navigate(context.Context, string) error        { return errNoBrowser }
func (Disconnected) TypeText(context.Context, string) error        { return errNoBrowser }
func (Disconnected) PressKey(context.Context, string) error        { return errNoBrowser }
func (Disconnected) Evaluate(context.Context, string) (any, error) { return nil, errNoBrowser }
func (Disconnected) Status() Status                                { return Status{} }
func (Disconnected) Close() error                                  { return nil }

// timeout applied to individual collaborator calls when the caller's
// context has no deadline.
const DefaultCallTimeout = 15 * time.Second
