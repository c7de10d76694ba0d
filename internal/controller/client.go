package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/protocol"
)

// DefaultRequestTimeout bounds simple request/response exchanges. Acts
// get a little more than the gateway's own command timeout so the
// gateway's synthesized timeout ack always arrives first.
const (
	DefaultRequestTimeout = 10 * time.Second
	ActTimeout            = 35 * time.Second
	eventBuffer           = 256
)

// Client is one controller connection to the gateway.
type Client struct {
	conn *websocket.Conn
	log  *zap.Logger

	writeMu sync.Mutex

	mu         sync.Mutex
	ackWaiters map[string]chan protocol.Ack
	waiters    map[string][]chan json.RawMessage
	closed     bool

	events chan json.RawMessage
	done   chan struct{}
}

// Dial connects to the gateway's controller endpoint and starts the
// read loop.
func Dial(ctx context.Context, url string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	c := &Client{
		conn:       conn,
		log:        log,
		ackWaiters: make(map[string]chan protocol.Ack),
		waiters:    make(map[string][]chan json.RawMessage),
		events:     make(chan json.RawMessage, eventBuffer),
		done:       make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events streams telemetry frames (hello, snapshot, delta, pointer,
// event) and acks mirrored from other controllers. Frames are dropped
// when the consumer lags behind the buffer.
func (c *Client) Events() <-chan json.RawMessage { return c.events }

// Close tears the connection down; outstanding waits fail.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failAll(err)
			return
		}
		c.route(data)
	}
}

func (c *Client) route(data []byte) {
	env, err := protocol.Peek(data)
	if err != nil {
		c.log.Warn("malformed gateway frame", zap.Error(err))
		return
	}

	if env.Type == protocol.TypeAck && env.CommandID != "" {
		var ack protocol.Ack
		if err := protocol.Unmarshal(data, &ack); err != nil {
			c.log.Warn("malformed ack", zap.Error(err))
			return
		}
		c.mu.Lock()
		ch, ok := c.ackWaiters[ack.CommandID]
		if ok {
			delete(c.ackWaiters, ack.CommandID)
		}
		c.mu.Unlock()
		if ok {
			ch <- ack
			return
		}
		// Mirrored ack for someone else's command: surface as an event.
		c.emit(data)
		return
	}

	c.mu.Lock()
	queue := c.waiters[env.Type]
	if len(queue) > 0 {
		ch := queue[0]
		c.waiters[env.Type] = queue[1:]
		c.mu.Unlock()
		ch <- json.RawMessage(data)
		return
	}
	c.mu.Unlock()
	c.emit(data)
}

func (c *Client) emit(data []byte) {
	select {
	case c.events <- json.RawMessage(data):
	default:
	}
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.ackWaiters {
		close(ch)
		delete(c.ackWaiters, id)
	}
	for typ, queue := range c.waiters {
		for _, ch := range queue {
			close(ch)
		}
		delete(c.waiters, typ)
	}
	_ = err
}

func (c *Client) send(v any) error {
	data, err := protocol.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// request sends a frame and waits for the next response of the given
// type.
func (c *Client) request(ctx context.Context, req protocol.Request, respType string, out any) error {
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.waiters[respType] = append(c.waiters[respType], ch)
	c.mu.Unlock()

	if err := c.send(req); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrTransport, err)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	select {
	case data, ok := <-ch:
		if !ok {
			return protocol.ErrTransport
		}
		if out == nil {
			return nil
		}
		return protocol.Unmarshal(data, out)
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for %s", protocol.ErrTimeout, respType)
	case <-c.done:
		return protocol.ErrTransport
	}
}

// Subscribe narrows the telemetry stream to one tab; tabID 0 subscribes
// to everything.
func (c *Client) Subscribe(ctx context.Context, tabID int) error {
	var resp protocol.Subscribed
	return c.request(ctx, protocol.Request{Type: protocol.TypeSubscribe, TabID: tabID},
		protocol.TypeSubscribed, &resp)
}

// ListTabs returns the gateway's tab summaries.
func (c *Client) ListTabs(ctx context.Context) ([]protocol.TabSummary, error) {
	var resp protocol.Tabs
	err := c.request(ctx, protocol.Request{Type: protocol.TypeListTabs},
		protocol.TypeTabs, &resp)
	return resp.Tabs, err
}

// Query searches a tab's candidates gateway-side.
func (c *Client) Query(ctx context.Context, tabID int, search string, filters *protocol.SearchFilters) ([]protocol.ActionCandidate, error) {
	var resp protocol.Candidates
	err := c.request(ctx, protocol.Request{
		Type:    protocol.TypeQuery,
		TabID:   tabID,
		Search:  search,
		Filters: filters,
	}, protocol.TypeCandidates, &resp)
	return resp.Matches, err
}

// Act submits a command and waits for its single ack. The commandId is
// assigned client-side so the waiter is registered before transmit.
func (c *Client) Act(ctx context.Context, cmd protocol.Command) (protocol.Ack, error) {
	if cmd.CommandID == "" {
		cmd.CommandID = protocol.NewCommandID()
	}

	ch := make(chan protocol.Ack, 1)
	c.mu.Lock()
	c.ackWaiters[cmd.CommandID] = ch
	c.mu.Unlock()

	if err := c.send(protocol.Request{Type: protocol.TypeAct, TabID: cmd.TabID, Command: &cmd}); err != nil {
		c.mu.Lock()
		delete(c.ackWaiters, cmd.CommandID)
		c.mu.Unlock()
		return protocol.Ack{}, fmt.Errorf("%w: %v", protocol.ErrTransport, err)
	}

	ctx, cancel := context.WithTimeout(ctx, ActTimeout)
	defer cancel()

	select {
	case ack, ok := <-ch:
		if !ok {
			return protocol.Ack{}, protocol.ErrTransport
		}
		return ack, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.ackWaiters, cmd.CommandID)
		c.mu.Unlock()
		return protocol.Ack{}, protocol.ErrTimeout
	case <-c.done:
		return protocol.Ack{}, protocol.ErrTransport
	}
}

// Navigate asks the gateway's debugging collaborator to load a url.
func (c *Client) Navigate(ctx context.Context, url string) (protocol.NavigateResult, error) {
	var resp protocol.NavigateResult
	err := c.request(ctx, protocol.Request{Type: protocol.TypeNavigate, URL: url},
		protocol.TypeNavigateResult, &resp)
	return resp, err
}

// CDPStatus fetches the gateway's status payload over the websocket.
func (c *Client) CDPStatus(ctx context.Context) (json.RawMessage, error) {
	var resp json.RawMessage
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.waiters[protocol.TypeCDPStatus] = append(c.waiters[protocol.TypeCDPStatus], ch)
	c.mu.Unlock()

	if err := c.send(protocol.Request{Type: protocol.TypeCDPStatus}); err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()
	select {
	case data := <-ch:
		resp = data
		return resp, nil
	case <-waitCtx.Done():
		return nil, protocol.ErrTimeout
	}
}

// CDPType synthesizes raw keystrokes through the debugging collaborator.
func (c *Client) CDPType(ctx context.Context, text string) (protocol.CDPResult, error) {
	var resp protocol.CDPResult
	err := c.request(ctx, protocol.Request{Type: protocol.TypeCDPType, Text: text},
		protocol.TypeCDPTypeResult, &resp)
	return resp, err
}

// CDPKey presses a named key.
func (c *Client) CDPKey(ctx context.Context, key string) (protocol.CDPResult, error) {
	var resp protocol.CDPResult
	err := c.request(ctx, protocol.Request{Type: protocol.TypeCDPKey, Key: key},
		protocol.TypeCDPKeyResult, &resp)
	return resp, err
}

// CDPEval evaluates an expression in the page.
func (c *Client) CDPEval(ctx context.Context, expression string) (protocol.CDPResult, error) {
	var resp protocol.CDPResult
	err := c.request(ctx, protocol.Request{Type: protocol.TypeCDPEval, Expression: expression},
		protocol.TypeCDPEvalResult, &resp)
	return resp, err
}

// FindAndClick queries for the best match and clicks it.
func (c *Client) FindAndClick(ctx context.Context, tabID int, search string) (protocol.Ack, error) {
	matches, err := c.Query(ctx, tabID, search, nil)
	if err != nil {
		return protocol.Ack{}, err
	}
	if len(matches) == 0 {
		return protocol.Ack{}, fmt.Errorf("%w: no candidate matches %q", protocol.ErrUnknownElement, search)
	}
	return c.Act(ctx, protocol.Command{
		Type:  protocol.TypeClick,
		TabID: tabID,
		ID:    matches[0].ID,
	})
}

// FindAndType queries for the best match and types into it.
func (c *Client) FindAndType(ctx context.Context, tabID int, search, text string) (protocol.Ack, error) {
	matches, err := c.Query(ctx, tabID, search, nil)
	if err != nil {
		return protocol.Ack{}, err
	}
	if len(matches) == 0 {
		return protocol.Ack{}, fmt.Errorf("%w: no candidate matches %q", protocol.ErrUnknownElement, search)
	}
	return c.Act(ctx, protocol.Command{
		Type:  protocol.TypeType,
		TabID: tabID,
		ID:    matches[0].ID,
		Text:  text,
	})
}
