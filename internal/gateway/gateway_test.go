package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pageplane/pageplane/internal/config"
	"github.com/pageplane/pageplane/internal/controller"
	"github.com/pageplane/pageplane/internal/policy"
	"github.com/pageplane/pageplane/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fixture struct {
	srv  *Server
	http *httptest.Server
}

func newFixture(t *testing.T, pol policy.Config) *fixture {
	t.Helper()
	srv := NewServer(config.GatewayConfig{Port: 0, Host: "127.0.0.1"}, nil, Options{Policy: pol})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, http: ts}
}

func (f *fixture) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(f.http.URL, "http") + path
}

// testAgent is a scripted in-test perception agent.
type testAgent struct {
	t    *testing.T
	conn *websocket.Conn
}

func (f *fixture) dialAgent(t *testing.T) *testAgent {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("/agent"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testAgent{t: t, conn: conn}
}

func (a *testAgent) send(v any) {
	a.t.Helper()
	data, err := protocol.Marshal(v)
	require.NoError(a.t, err)
	require.NoError(a.t, a.conn.WriteMessage(websocket.TextMessage, data))
}

func (a *testAgent) readCommand() protocol.Command {
	a.t.Helper()
	a.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := a.conn.ReadMessage()
	require.NoError(a.t, err)
	var cmd protocol.Command
	require.NoError(a.t, protocol.Unmarshal(data, &cmd))
	return cmd
}

func (a *testAgent) expectSilence(d time.Duration) {
	a.t.Helper()
	a.conn.SetReadDeadline(time.Now().Add(d))
	_, _, err := a.conn.ReadMessage()
	require.Error(a.t, err, "agent should receive no traffic")
}

func (f *fixture) dialController(t *testing.T) *controller.Client {
	t.Helper()
	client, err := controller.Dial(context.Background(), f.wsURL("/ws"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func signInSnapshot() protocol.Snapshot {
	return protocol.Snapshot{
		Type:     protocol.TypeSnapshot,
		TabID:    1,
		URL:      "https://a/",
		Viewport: protocol.Viewport{Width: 1024, Height: 768},
		Candidates: []protocol.ActionCandidate{{
			ID:   "a_0",
			Role: "button",
			Tag:  "button",
			Name: "Sign in",
			Rect: protocol.Rect{X: 10, Y: 10, W: 100, H: 30},
			Hit:  protocol.Hit{CX: 60, CY: 25},
		}},
	}
}

func waitForTab(t *testing.T, f *fixture, tabID int) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := f.srv.Store().Tab(tabID)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHelloSnapshotListTabs(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)

	agent.send(protocol.Hello{
		Type:     protocol.TypeHello,
		TabID:    1,
		URL:      "https://a/",
		Viewport: protocol.Viewport{Width: 1024, Height: 768},
	})
	agent.send(signInSnapshot())
	// The hello alone creates the tab; wait until the snapshot has landed.
	require.Eventually(t, func() bool {
		tab, ok := f.srv.Store().Tab(1)
		return ok && len(tab.Candidates) == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctrl := f.dialController(t)
	tabs, err := ctrl.ListTabs(context.Background())
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.Equal(t, 1, tabs[0].TabID)
	assert.Equal(t, "https://a/", tabs[0].URL)
	assert.Equal(t, 1, tabs[0].CandidateCount)
}

func TestActRoundTrip(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)
	agent.send(signInSnapshot())
	waitForTab(t, f, 1)

	ctrl := f.dialController(t)
	require.NoError(t, ctrl.Subscribe(context.Background(), 1))

	// Agent side: answer the click with a verify ack.
	done := make(chan struct{})
	go func() {
		defer close(done)
		cmd := agent.readCommand()
		assert.Equal(t, protocol.TypeClick, cmd.Type)
		assert.Equal(t, "a_0", cmd.ID)
		agent.send(protocol.Ack{
			Type:      protocol.TypeAck,
			TabID:     1,
			CommandID: cmd.CommandID,
			Status:    protocol.AckVerify,
			Verification: &protocol.Verification{
				ID:           "a_0",
				StillVisible: true,
				HitTestOk:    true,
			},
		})
	}()

	ack, err := ctrl.Act(context.Background(), protocol.Command{
		Type:  protocol.TypeClick,
		TabID: 1,
		ID:    "a_0",
	})
	require.NoError(t, err)
	<-done

	assert.Equal(t, protocol.AckVerify, ack.Status)
	require.NotNil(t, ack.Verification)
	assert.True(t, ack.Verification.StillVisible)
	assert.True(t, ack.Verification.HitTestOk)
}

func TestPolicyDenialSkipsAgent(t *testing.T) {
	pol := policy.DefaultConfig()
	pol.DomainMode = policy.DomainAllowlist
	pol.DomainList = []string{"b.com"}
	f := newFixture(t, pol)

	agent := f.dialAgent(t)
	agent.send(signInSnapshot())
	waitForTab(t, f, 1)

	ctrl := f.dialController(t)
	ack, err := ctrl.Act(context.Background(), protocol.Command{
		Type:  protocol.TypeClick,
		TabID: 1,
		ID:    "a_0",
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.AckFail, ack.Status)
	assert.Equal(t, "Domain not allowed: https://a/", ack.Reason)

	agent.expectSilence(150 * time.Millisecond)
}

func TestNoAgentFailsImmediately(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctrl := f.dialController(t)

	ack, err := ctrl.Act(context.Background(), protocol.Command{
		Type:  protocol.TypeClick,
		TabID: 1,
		ID:    "a_0",
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.AckFail, ack.Status)
	assert.Equal(t, "No extension connected", ack.Reason)
}

func TestCommandTimeout(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	f.srv.pending = newPendingTable(100 * time.Millisecond)

	agent := f.dialAgent(t)
	agent.send(signInSnapshot())
	waitForTab(t, f, 1)

	ctrl := f.dialController(t)
	ack, err := ctrl.Act(context.Background(), protocol.Command{
		Type:  protocol.TypeClick,
		TabID: 1,
		ID:    "a_0",
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.AckFail, ack.Status)
	assert.Equal(t, "Command timeout", ack.Reason)
	assert.Equal(t, 0, f.srv.pending.size(), "pending entry cleared")
}

func TestDuplicateAckDropped(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)
	agent.send(signInSnapshot())
	waitForTab(t, f, 1)

	ctrl := f.dialController(t)

	go func() {
		cmd := agent.readCommand()
		ack := protocol.Ack{Type: protocol.TypeAck, TabID: 1, CommandID: cmd.CommandID, Status: protocol.AckOK}
		agent.send(ack)
		agent.send(ack) // redelivery after the entry is gone
	}()

	ack, err := ctrl.Act(context.Background(), protocol.Command{Type: protocol.TypeFocus, TabID: 1, ID: "a_0"})
	require.NoError(t, err)
	assert.Equal(t, protocol.AckOK, ack.Status)

	// The duplicate resolved nothing and reached no waiter; the
	// connection stays healthy for the next exchange.
	tabs, err := ctrl.ListTabs(context.Background())
	require.NoError(t, err)
	assert.Len(t, tabs, 1)
}

func TestDeltaUpdatesWorldState(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)

	snap := signInSnapshot()
	snap.Candidates = append(snap.Candidates, protocol.ActionCandidate{
		ID: "a_2", Role: "button", Tag: "button", Name: "Other",
	})
	agent.send(snap)
	waitForTab(t, f, 1)

	disabled := protocol.State{Disabled: true}
	agent.send(protocol.Delta{
		Type:    protocol.TypeDelta,
		TabID:   1,
		Added:   []protocol.ActionCandidate{{ID: "a_1", Role: "link", Tag: "a", Name: "New"}},
		Removed: []string{"a_0"},
		Updated: []protocol.CandidateUpdate{{ID: "a_2", State: &disabled}},
	})

	require.Eventually(t, func() bool {
		tab, ok := f.srv.Store().Tab(1)
		if !ok {
			return false
		}
		_, gone := tab.Candidates["a_0"]
		return !gone && len(tab.Candidates) == 2 && tab.Candidates["a_2"].State.Disabled
	}, 2*time.Second, 5*time.Millisecond)
}

func TestControllerQueryFilters(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)

	snap := signInSnapshot()
	snap.Candidates = append(snap.Candidates,
		protocol.ActionCandidate{ID: "a_1", Role: "link", Tag: "a", Name: "Sign in help"},
	)
	agent.send(snap)
	waitForTab(t, f, 1)

	ctrl := f.dialController(t)
	matches, err := ctrl.Query(context.Background(), 1, "sign in", &protocol.SearchFilters{Role: "button"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a_0", matches[0].ID)
}

func TestSubscribedControllerSeesTelemetry(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)
	agent.send(signInSnapshot())
	waitForTab(t, f, 1)

	ctrl := f.dialController(t)
	require.NoError(t, ctrl.Subscribe(context.Background(), 1))

	other := f.dialController(t)
	require.NoError(t, other.Subscribe(context.Background(), 2))

	agent.send(protocol.Delta{
		Type:  protocol.TypeDelta,
		TabID: 1,
		Added: []protocol.ActionCandidate{{ID: "a_9", Role: "button", Tag: "button"}},
	})

	select {
	case frame := <-ctrl.Events():
		env, err := protocol.Peek(frame)
		require.NoError(t, err)
		assert.Equal(t, protocol.TypeDelta, env.Type)
		assert.Equal(t, 1, env.TabID)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribed controller saw no delta")
	}

	select {
	case frame := <-other.Events():
		t.Fatalf("controller subscribed to tab 2 received %s", frame)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestUnloadEventErasesTab(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)
	agent.send(signInSnapshot())
	waitForTab(t, f, 1)

	agent.send(protocol.Event{Type: protocol.TypeEvent, TabID: 1, Name: protocol.EventUnload})
	require.Eventually(t, func() bool {
		_, ok := f.srv.Store().Tab(1)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMalformedFrameKeepsConnectionAlive(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)

	require.NoError(t, agent.conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	agent.send(signInSnapshot())
	waitForTab(t, f, 1)
}

func TestHTTPReadSurface(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	agent := f.dialAgent(t)
	agent.send(signInSnapshot())
	waitForTab(t, f, 1)

	var status struct {
		Agents      int `json:"agents"`
		Controllers int `json:"controllers"`
		Tabs        []protocol.TabSummary
	}
	getJSON(t, f.http.URL+"/status", &status)
	assert.Equal(t, 1, status.Agents)
	require.Len(t, status.Tabs, 1)

	var tabs struct {
		Tabs []protocol.TabSummary `json:"tabs"`
	}
	getJSON(t, f.http.URL+"/tabs", &tabs)
	require.Len(t, tabs.Tabs, 1)
	assert.Equal(t, 1, tabs.Tabs[0].CandidateCount)

	var cands struct {
		Candidates []protocol.ActionCandidate `json:"candidates"`
	}
	getJSON(t, f.http.URL+"/tabs/1/candidates", &cands)
	require.Len(t, cands.Candidates, 1)
	assert.Equal(t, "a_0", cands.Candidates[0].ID)

	var search struct {
		Matches []protocol.ActionCandidate `json:"matches"`
	}
	getJSON(t, f.http.URL+"/tabs/1/search?q=sign+in&role=button", &search)
	require.Len(t, search.Matches, 1)

	resp, err := http.Get(f.http.URL + "/tabs/99/candidates")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPPolicyRoundTrip(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())

	var current policy.Config
	getJSON(t, f.http.URL+"/policy", &current)
	assert.Equal(t, policy.DomainAll, current.DomainMode)

	current.DomainMode = policy.DomainBlocklist
	current.DomainList = []string{"blocked.test"}
	body, _ := json.Marshal(current)
	resp, err := http.Post(f.http.URL+"/policy", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, policy.DomainBlocklist, f.srv.Guard().Config().DomainMode)
}

func TestHTTPCommandEndpoint(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())

	body := `{"type":"click","tabId":1,"id":"a_0"}`
	resp, err := http.Post(f.http.URL+"/command", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack protocol.Ack
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, protocol.AckFail, ack.Status)
	assert.Equal(t, "No extension connected", ack.Reason)
	assert.NotEmpty(t, ack.CommandID, "gateway assigns a commandId")
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
