package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/dom"
	"github.com/pageplane/pageplane/internal/executor"
	"github.com/pageplane/pageplane/internal/perception"
	"github.com/pageplane/pageplane/internal/protocol"
)

// Agent ties a document surface to the gateway: engine deltas and
// events flow out, commands flow in.
type Agent struct {
	doc       *dom.Document
	url       string
	userAgent string
	log       *zap.Logger

	engine    *perception.Engine
	exec      *executor.Executor
	transport *Transport
}

// New wires an agent over the document. url is the page url reported in
// hello and snapshot frames.
func New(doc *dom.Document, url, userAgent string, transport *Transport, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Agent{
		doc:       doc,
		url:       url,
		userAgent: userAgent,
		log:       log,
		transport: transport,
	}
	a.engine = perception.NewEngine(doc, a.sendDelta, a.sendEvent,
		perception.WithLogger(log.Named("perception")))
	a.exec = executor.New(doc, a.engine.Identity())

	transport.OnCommand = a.handleCommand
	transport.OnRequestSnapshot = a.sendSnapshot
	return a
}

// Engine exposes the perception engine (tests, force refresh).
func (a *Agent) Engine() *perception.Engine { return a.engine }

// Run announces the tab, starts perception, and serves the link until
// the context ends.
func (a *Agent) Run(ctx context.Context) error {
	a.transport.Send(&protocol.Hello{
		Type:      protocol.TypeHello,
		URL:       a.url,
		Viewport:  a.doc.Viewport(),
		UserAgent: a.userAgent,
	})

	initial := a.engine.Start()
	defer a.engine.Stop()
	a.transport.Send(&protocol.Snapshot{
		Type:       protocol.TypeSnapshot,
		URL:        a.url,
		Viewport:   a.doc.Viewport(),
		Candidates: initial,
	})

	err := a.transport.Run(ctx)
	a.transport.Send(&protocol.Event{Type: protocol.TypeEvent, Name: protocol.EventUnload})
	return err
}

func (a *Agent) sendDelta(d protocol.Delta) {
	a.transport.Send(&d)
}

func (a *Agent) sendEvent(name string) {
	a.transport.Send(&protocol.Event{Type: protocol.TypeEvent, Name: name})
}

func (a *Agent) sendSnapshot() {
	a.transport.Send(&protocol.Snapshot{
		Type:       protocol.TypeSnapshot,
		URL:        a.url,
		Viewport:   a.doc.Viewport(),
		Candidates: a.engine.Snapshot(),
	})
}

func (a *Agent) handleCommand(cmd protocol.Command) protocol.Ack {
	ack := a.exec.Execute(cmd)
	if cmd.Type == protocol.TypeMoveMouse && ack.Status == protocol.AckOK {
		a.transport.Send(&protocol.Pointer{
			Type: protocol.TypePointer,
			X:    cmd.X,
			Y:    cmd.Y,
		})
	}
	return ack
}
