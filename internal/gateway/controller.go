package gateway

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/cdp"
	"github.com/pageplane/pageplane/internal/protocol"
)

// HandleController upgrades and serves one controller connection.
func (s *Server) HandleController(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("controller upgrade failed", zap.Error(err))
		return
	}

	ctrl := newControllerConn(conn)
	s.hub.add(ctrl)
	s.metrics.ControllerConnections.Inc()
	s.log.Info("controller connected", zap.String("connId", ctrl.id))

	defer func() {
		s.hub.remove(ctrl)
		s.metrics.ControllerConnections.Dec()
		conn.Close()
		s.log.Info("controller disconnected", zap.String("connId", ctrl.id))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleControllerFrame(ctrl, data)
	}
}

func (s *Server) handleControllerFrame(ctrl *controllerConn, data []byte) {
	var req protocol.Request
	if err := protocol.Unmarshal(data, &req); err != nil || req.Type == "" {
		s.metrics.MalformedFrames.Inc()
		s.log.Warn("malformed controller frame", zap.Error(err))
		s.reply(ctrl, protocol.NewError("malformed request"))
		return
	}

	switch req.Type {
	case protocol.TypeSubscribe:
		s.handleSubscribe(ctrl, req)
	case protocol.TypeListTabs:
		s.reply(ctrl, protocol.Tabs{Type: protocol.TypeTabs, Tabs: s.store.Summaries()})
	case protocol.TypeQuery:
		s.reply(ctrl, protocol.Candidates{
			Type:    protocol.TypeCandidates,
			TabID:   req.TabID,
			Matches: s.store.Search(req.TabID, req.Search, req.Filters),
		})
	case protocol.TypeAct:
		s.handleAct(ctrl, req)
	case protocol.TypeNavigate:
		s.handleNavigate(ctrl, req)
	case protocol.TypeCDPStatus:
		s.reply(ctrl, s.statusPayload())
	case protocol.TypeCDPType:
		s.handleCDPCall(ctrl, protocol.TypeCDPTypeResult, func(ctx context.Context) (any, error) {
			return nil, s.cdp.TypeText(ctx, req.Text)
		})
	case protocol.TypeCDPKey:
		s.handleCDPCall(ctrl, protocol.TypeCDPKeyResult, func(ctx context.Context) (any, error) {
			return nil, s.cdp.PressKey(ctx, req.Key)
		})
	case protocol.TypeCDPEval:
		s.handleCDPCall(ctrl, protocol.TypeCDPEvalResult, func(ctx context.Context) (any, error) {
			return s.cdp.Evaluate(ctx, req.Expression)
		})
	default:
		s.reply(ctrl, protocol.NewError("unknown request type: "+req.Type))
	}
}

func (s *Server) handleSubscribe(ctrl *controllerConn, req protocol.Request) {
	if req.TabID == 0 {
		ctrl.subscribe(nil)
	} else {
		tab := req.TabID
		ctrl.subscribe(&tab)
		// Subscribing to a tab the gateway has never heard from asks
		// the agent for a fresh full snapshot.
		if _, known := s.store.Tab(tab); !known {
			s.requestSnapshot(tab)
		}
	}
	s.reply(ctrl, protocol.Subscribed{Type: protocol.TypeSubscribed, TabID: req.TabID})
}

func (s *Server) requestSnapshot(tabID int) {
	agent := s.agents.first()
	if agent == nil {
		return
	}
	data, err := protocol.Marshal(protocol.Command{Type: protocol.TypeRequestSnapshot, TabID: tabID})
	if err != nil {
		return
	}
	_ = agent.send(data)
}

func (s *Server) handleAct(ctrl *controllerConn, req protocol.Request) {
	if req.Command == nil {
		s.reply(ctrl, protocol.NewError("act request carries no command"))
		return
	}
	cmd := *req.Command
	if cmd.TabID == 0 {
		cmd.TabID = req.TabID
	}
	s.dispatch(cmd, ctrl.id, func(ack protocol.Ack) {
		s.reply(ctrl, ack)
	})
}

func (s *Server) handleNavigate(ctrl *controllerConn, req protocol.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), cdp.DefaultCallTimeout)
	defer cancel()

	result := protocol.NavigateResult{Type: protocol.TypeNavigateResult, URL: req.URL}
	if err := s.cdp.Navigate(ctx, req.URL); err != nil {
		result.Error = err.Error()
	} else {
		result.OK = true
	}
	s.reply(ctrl, result)
}

func (s *Server) handleCDPCall(ctrl *controllerConn, resultType string, call func(context.Context) (any, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), cdp.DefaultCallTimeout)
	defer cancel()

	result := protocol.CDPResult{Type: resultType}
	value, err := call(ctx)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.OK = true
		result.Result = value
	}
	s.reply(ctrl, result)
}

func (s *Server) reply(ctrl *controllerConn, v any) {
	data, err := protocol.Marshal(v)
	if err != nil {
		s.log.Error("encode reply", zap.Error(err))
		return
	}
	if err := ctrl.send(data); err != nil {
		s.log.Debug("controller write failed", zap.String("connId", ctrl.id), zap.Error(err))
	}
}
