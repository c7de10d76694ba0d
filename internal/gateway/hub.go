package gateway

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// controllerConn is one controller websocket plus its subscription
// state. Writes are serialized per connection because broadcasts and
// request replies race.
type controllerConn struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu            sync.Mutex
	subscribedTab *int
}

func newControllerConn(conn *websocket.Conn) *controllerConn {
	return &controllerConn{id: uuid.NewString(), conn: conn}
}

func (c *controllerConn) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *controllerConn) subscribe(tabID *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribedTab = tabID
}

// wants applies the broadcast filter: unset subscription matches every
// tab.
func (c *controllerConn) wants(tabID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribedTab == nil || *c.subscribedTab == tabID
}

// hub tracks controller connections and fans frames out to them.
type hub struct {
	mu    sync.Mutex
	conns map[string]*controllerConn
}

func newHub() *hub {
	return &hub{conns: make(map[string]*controllerConn)}
}

func (h *hub) add(c *controllerConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *hub) remove(c *controllerConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.id)
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// broadcast sends the frame to every controller whose subscription
// matches the tab, skipping exceptID (used when the originator already
// received the frame directly). Write errors are the reader's problem;
// the read loop tears the connection down.
func (h *hub) broadcast(tabID int, data []byte, exceptID string) {
	h.mu.Lock()
	targets := make([]*controllerConn, 0, len(h.conns))
	for _, c := range h.conns {
		if c.id != exceptID && c.wants(tabID) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		_ = c.send(data)
	}
}

// agentConn is one agent websocket with serialized writes.
type agentConn struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newAgentConn(conn *websocket.Conn) *agentConn {
	return &agentConn{id: uuid.NewString(), conn: conn}
}

func (a *agentConn) send(data []byte) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteMessage(websocket.TextMessage, data)
}

// agentSet tracks agent connections in arrival order. Outbound commands
// and request_snapshot frames go to the first open socket; additional
// agents are tolerated and their telemetry is ingested, but nothing is
// sent to them.
type agentSet struct {
	mu    sync.Mutex
	conns []*agentConn
}

func newAgentSet() *agentSet {
	return &agentSet{}
}

func (s *agentSet) add(a *agentConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = append(s.conns, a)
}

func (s *agentSet) remove(a *agentConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c == a {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}

func (s *agentSet) first() *agentConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[0]
}

func (s *agentSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
