package gateway

import (
	"time"

	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/protocol"
)

// dispatch runs the command pipeline: id assignment, policy admission,
// transmit to the agent, pending registration with timeout. deliver
// receives the single resolution; originID (when non-empty) suppresses
// the requester from the mirrored broadcast so it never sees its own
// ack twice.
func (s *Server) dispatch(cmd protocol.Command, originID string, deliver func(protocol.Ack)) {
	if cmd.CommandID == "" {
		cmd.CommandID = protocol.NewCommandID()
	}

	tabURL := s.store.URL(cmd.TabID)
	targetName, _ := s.store.CandidateName(cmd.TabID, cmd.ID)

	if err := s.guard.Check(cmd, tabURL, targetName); err != nil {
		reason, _ := protocol.IsPolicyDenied(err)
		if reason == "" {
			reason = err.Error()
		}
		s.metrics.PolicyDenials.Inc()
		s.metrics.CommandsTotal.WithLabelValues(cmd.Type, "denied").Inc()
		s.resolveOnce(cmd, originID, deliver, protocol.FailAck(cmd, reason))
		return
	}

	agent := s.agents.first()
	if agent == nil {
		s.metrics.CommandsTotal.WithLabelValues(cmd.Type, "no_agent").Inc()
		s.resolveOnce(cmd, originID, deliver, protocol.FailAck(cmd, "No extension connected"))
		return
	}

	issued := time.Now()
	s.pending.add(cmd, func(ack protocol.Ack) {
		outcome := ack.Status
		if ack.Status == protocol.AckFail && ack.Reason == "Command timeout" {
			outcome = "timeout"
			s.metrics.CommandTimeouts.Inc()
		}
		s.metrics.CommandsTotal.WithLabelValues(cmd.Type, outcome).Inc()
		s.metrics.CommandDuration.Observe(time.Since(issued).Seconds())
		s.resolveOnce(cmd, originID, deliver, ack)
	})

	data, err := protocol.Marshal(cmd)
	if err != nil {
		s.pending.resolveID(cmd.CommandID, protocol.FailAck(cmd, "internal: encode command"))
		return
	}
	if err := agent.send(data); err != nil {
		s.log.Warn("agent send failed", zap.String("commandId", cmd.CommandID), zap.Error(err))
		s.pending.resolveID(cmd.CommandID, protocol.FailAck(cmd, "Transport error: "+err.Error()))
	}
}

// resolveOnce hands the ack to the requester and mirrors it to every
// other subscribed controller.
func (s *Server) resolveOnce(cmd protocol.Command, originID string, deliver func(protocol.Ack), ack protocol.Ack) {
	deliver(ack)
	if data, err := protocol.Marshal(ack); err == nil {
		s.hub.broadcast(cmd.TabID, data, originID)
	}
}
