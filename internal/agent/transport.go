package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/protocol"
)

// Backpressure: past this queue depth, everything but the newest
// full-state messages is dropped.
const (
	queueLimit     = 100
	queueKeepFull  = 10
	defaultRetries = 10
)

// TransportConfig tunes the gateway link.
type TransportConfig struct {
	URL               string
	TabID             int
	ReconnectInterval time.Duration
	MaxReconnects     int
	HeartbeatInterval time.Duration
	QueueLimit        int
}

// DefaultTransportConfig returns the standard link tunables.
func DefaultTransportConfig(url string, tabID int) TransportConfig {
	return TransportConfig{
		URL:               url,
		TabID:             tabID,
		ReconnectInterval: 2 * time.Second,
		MaxReconnects:     defaultRetries,
		HeartbeatInterval: 5 * time.Second,
		QueueLimit:        queueLimit,
	}
}

type queued struct {
	kind string
	data []byte
}

// Transport maintains the agent's websocket to the gateway.
type Transport struct {
	cfg TransportConfig
	log *zap.Logger

	// OnCommand executes an inbound command and returns its ack.
	OnCommand func(protocol.Command) protocol.Ack
	// OnRequestSnapshot forces a fresh full snapshot.
	OnRequestSnapshot func()

	mu    sync.Mutex
	conn  *websocket.Conn
	queue []queued

	// writeMu serializes frame writes; deltas, heartbeats, and acks are
	// produced on different goroutines.
	writeMu sync.Mutex
}

// NewTransport creates a transport; Run must be called to connect.
func NewTransport(cfg TransportConfig, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = queueLimit
	}
	return &Transport{cfg: cfg, log: log}
}

// Send enriches the message with the transport's tab id and transmits
// it, queueing when the link is down.
func (t *Transport) Send(msg protocol.AgentMessage) {
	msg.SetTabID(t.cfg.TabID)
	data, err := protocol.Marshal(msg)
	if err != nil {
		t.log.Error("encode outbound message", zap.Error(err))
		return
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		t.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		t.writeMu.Unlock()
		if err == nil {
			return
		}
		// Write failure: the read loop will notice the dead socket;
		// fall through to the queue so the message survives reconnect.
	}
	t.enqueue(msg.MessageType(), data)
}

// enqueue appends under the backpressure rule: past the limit, the
// queue collapses to the last few hello/snapshot messages, dropping
// deltas, pointer reports, and events (a fresh snapshot subsumes them).
func (t *Transport) enqueue(kind string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.queue = append(t.queue, queued{kind: kind, data: data})
	if len(t.queue) <= t.cfg.QueueLimit {
		return
	}

	var full []queued
	for _, q := range t.queue {
		if q.kind == protocol.TypeHello || q.kind == protocol.TypeSnapshot {
			full = append(full, q)
		}
	}
	if len(full) > queueKeepFull {
		full = full[len(full)-queueKeepFull:]
	}
	t.log.Warn("telemetry queue overflow",
		zap.Int("dropped", len(t.queue)-len(full)),
		zap.Int("kept", len(full)))
	t.queue = full
}

// QueueLen reports the current queue depth.
func (t *Transport) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Run connects and serves the link until the context ends or the
// reconnect attempts run out.
func (t *Transport) Run(ctx context.Context) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.URL, nil)
		if err != nil {
			attempts++
			if attempts >= t.cfg.MaxReconnects {
				return fmt.Errorf("gateway unreachable after %d attempts: %w", attempts, err)
			}
			t.log.Warn("gateway dial failed",
				zap.Int("attempt", attempts),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.cfg.ReconnectInterval):
			}
			continue
		}

		attempts = 0
		t.log.Info("gateway connected", zap.String("url", t.cfg.URL))
		t.serve(ctx, conn)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.ReconnectInterval):
		}
	}
}

// serve drains the queue, runs the heartbeat, and reads until the
// socket dies.
func (t *Transport) serve(ctx context.Context, conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	backlog := t.queue
	t.queue = nil
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		conn.Close()
	}()

	for _, q := range backlog {
		t.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, q.data)
		t.writeMu.Unlock()
		if err != nil {
			t.log.Warn("drain failed", zap.Error(err))
			t.mu.Lock()
			t.queue = append([]queued{q}, t.queue...)
			t.mu.Unlock()
			return
		}
	}

	hbCtx, cancelHB := context.WithCancel(ctx)
	defer cancelHB()
	go t.heartbeat(hbCtx)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.log.Warn("gateway link lost", zap.Error(err))
			return
		}
		t.handleInbound(data)
	}
}

func (t *Transport) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := &protocol.Heartbeat{
				Type:      protocol.TypeHeartbeat,
				Timestamp: time.Now().UnixMilli(),
			}
			t.Send(hb)
		}
	}
}

// handleInbound routes one gateway frame: snapshot requests to the
// refresh hook, anything carrying a commandId to the executor. The
// resulting ack goes back through Send so it survives a reconnect.
func (t *Transport) handleInbound(data []byte) {
	env, err := protocol.Peek(data)
	if err != nil {
		t.log.Warn("malformed gateway frame", zap.Error(err))
		return
	}

	if env.Type == protocol.TypeRequestSnapshot {
		if t.OnRequestSnapshot != nil {
			t.OnRequestSnapshot()
		}
		return
	}

	if env.CommandID == "" || t.OnCommand == nil {
		t.log.Warn("unroutable gateway frame", zap.String("type", env.Type))
		return
	}

	var cmd protocol.Command
	if err := protocol.Unmarshal(data, &cmd); err != nil {
		t.log.Warn("malformed command", zap.Error(err))
		return
	}
	ack := t.OnCommand(cmd)
	t.Send(&ack)
}
