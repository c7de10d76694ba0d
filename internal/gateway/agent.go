package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Agents and controllers connect from extension and local
		// tooling origins.
		return true
	},
}

// HandleAgent upgrades and serves one agent connection.
func (s *Server) HandleAgent(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("agent upgrade failed", zap.Error(err))
		return
	}

	agent := newAgentConn(conn)
	s.agents.add(agent)
	s.metrics.AgentConnections.Inc()
	s.log.Info("agent connected", zap.String("connId", agent.id))

	defer func() {
		s.agents.remove(agent)
		s.metrics.AgentConnections.Dec()
		conn.Close()
		s.log.Info("agent disconnected", zap.String("connId", agent.id))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleAgentFrame(data)
	}
}

// handleAgentFrame parses one inbound frame in isolation; malformed
// frames log and drop without touching the connection.
func (s *Server) handleAgentFrame(data []byte) {
	env, err := protocol.Peek(data)
	if err != nil {
		s.metrics.MalformedFrames.Inc()
		s.log.Warn("malformed agent frame", zap.Error(err))
		return
	}

	switch env.Type {
	case protocol.TypeAck:
		var ack protocol.Ack
		if err := protocol.Unmarshal(data, &ack); err != nil {
			s.metrics.MalformedFrames.Inc()
			s.log.Warn("malformed ack", zap.Error(err))
			return
		}
		// Agents may redeliver acks across reconnects; anything with
		// no pending entry is dropped silently.
		if !s.pending.resolveID(ack.CommandID, ack) {
			s.metrics.DroppedAcks.Inc()
		}
		return

	case protocol.TypeHello:
		var msg protocol.Hello
		if err := protocol.Unmarshal(data, &msg); err != nil {
			s.dropTelemetry(err)
			return
		}
		s.store.Hello(msg)

	case protocol.TypeSnapshot:
		var msg protocol.Snapshot
		if err := protocol.Unmarshal(data, &msg); err != nil {
			s.dropTelemetry(err)
			return
		}
		s.store.Snapshot(msg)

	case protocol.TypeDelta:
		var msg protocol.Delta
		if err := protocol.Unmarshal(data, &msg); err != nil {
			s.dropTelemetry(err)
			return
		}
		s.store.Delta(msg)

	case protocol.TypePointer:
		var msg protocol.Pointer
		if err := protocol.Unmarshal(data, &msg); err != nil {
			s.dropTelemetry(err)
			return
		}
		s.store.UpdatePointer(msg)

	case protocol.TypeEvent:
		var msg protocol.Event
		if err := protocol.Unmarshal(data, &msg); err != nil {
			s.dropTelemetry(err)
			return
		}
		if msg.Name == protocol.EventUnload {
			s.store.Disconnect(msg.TabID)
		}

	case protocol.TypeHeartbeat:
		// Link-level only; not mirrored.
		s.metrics.TelemetryMessages.WithLabelValues(env.Type).Inc()
		return

	default:
		s.metrics.MalformedFrames.Inc()
		s.log.Warn("unknown agent frame type", zap.String("type", env.Type))
		return
	}

	s.metrics.TelemetryMessages.WithLabelValues(env.Type).Inc()
	s.metrics.TabsActive.Set(float64(len(s.store.Summaries())))
	s.hub.broadcast(env.TabID, data, "")
}

func (s *Server) dropTelemetry(err error) {
	s.metrics.MalformedFrames.Inc()
	s.log.Warn("malformed telemetry frame", zap.Error(err))
}
