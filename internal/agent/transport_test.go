package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageplane/pageplane/internal/protocol"
)

func testTransport(url string) *Transport {
	cfg := DefaultTransportConfig(url, 7)
	cfg.ReconnectInterval = 10 * time.Millisecond
	cfg.MaxReconnects = 2
	cfg.HeartbeatInterval = time.Hour // keep heartbeats out of assertions
	return NewTransport(cfg, nil)
}

func TestSendEnrichesTabID(t *testing.T) {
	tr := testTransport("ws://127.0.0.1:1/agent")
	tr.Send(&protocol.Hello{Type: protocol.TypeHello, URL: "https://x/"})

	require.Equal(t, 1, tr.QueueLen())
	var hello protocol.Hello
	require.NoError(t, protocol.Unmarshal(tr.queue[0].data, &hello))
	assert.Equal(t, 7, hello.TabID)
}

func TestQueueBackpressure(t *testing.T) {
	tr := testTransport("ws://127.0.0.1:1/agent")

	tr.Send(&protocol.Hello{Type: protocol.TypeHello})
	for i := 0; i < 98; i++ {
		tr.Send(&protocol.Delta{Type: protocol.TypeDelta})
	}
	tr.Send(&protocol.Snapshot{Type: protocol.TypeSnapshot})
	require.Equal(t, 100, tr.QueueLen(), "at the limit nothing is dropped")

	// The 101st message trips the backpressure rule.
	tr.Send(&protocol.Pointer{Type: protocol.TypePointer})
	require.Equal(t, 2, tr.QueueLen())
	assert.Equal(t, protocol.TypeHello, tr.queue[0].kind)
	assert.Equal(t, protocol.TypeSnapshot, tr.queue[1].kind)
}

func TestQueueBackpressureKeepsLastTenFullStates(t *testing.T) {
	tr := testTransport("ws://127.0.0.1:1/agent")

	for i := 0; i < 50; i++ {
		tr.Send(&protocol.Snapshot{Type: protocol.TypeSnapshot})
	}
	for i := 0; i < 51; i++ {
		tr.Send(&protocol.Delta{Type: protocol.TypeDelta})
	}
	assert.Equal(t, 10, tr.QueueLen())
	for _, q := range tr.queue {
		assert.Equal(t, protocol.TypeSnapshot, q.kind)
	}
}

func TestInboundCommandDispatch(t *testing.T) {
	tr := testTransport("ws://127.0.0.1:1/agent")

	var got protocol.Command
	tr.OnCommand = func(cmd protocol.Command) protocol.Ack {
		got = cmd
		return protocol.Ack{Type: protocol.TypeAck, CommandID: cmd.CommandID, Status: protocol.AckOK}
	}

	frame, err := protocol.Marshal(protocol.Command{
		Type:      protocol.TypeClick,
		CommandID: "cmd_1_aaaa",
		TabID:     7,
		ID:        "a_0",
	})
	require.NoError(t, err)
	tr.handleInbound(frame)

	assert.Equal(t, "cmd_1_aaaa", got.CommandID)
	// The ack was sent (queued, since no socket is open).
	require.Equal(t, 1, tr.QueueLen())
	assert.Equal(t, protocol.TypeAck, tr.queue[0].kind)
}

func TestInboundSnapshotRequest(t *testing.T) {
	tr := testTransport("ws://127.0.0.1:1/agent")
	called := false
	tr.OnRequestSnapshot = func() { called = true }

	tr.handleInbound([]byte(`{"type":"request_snapshot"}`))
	assert.True(t, called)
}

func TestInboundMalformedDropped(t *testing.T) {
	tr := testTransport("ws://127.0.0.1:1/agent")
	tr.handleInbound([]byte("{broken"))
	assert.Equal(t, 0, tr.QueueLen())
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	tr := testTransport("ws://127.0.0.1:1/agent")
	err := tr.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestRunDrainsQueueOnConnect(t *testing.T) {
	received := make(chan string, 16)
	upgrade := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrade.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Peek(data)
			if err == nil {
				received <- env.Type
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr := testTransport(wsURL)
	tr.Send(&protocol.Hello{Type: protocol.TypeHello})
	tr.Send(&protocol.Snapshot{Type: protocol.TypeSnapshot})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	require.Equal(t, protocol.TypeHello, <-received)
	require.Equal(t, protocol.TypeSnapshot, <-received)

	// A live socket transmits directly.
	tr.Send(&protocol.Delta{Type: protocol.TypeDelta})
	assert.Equal(t, protocol.TypeDelta, <-received)
}
