package gateway

import (
	"sync"
	"time"

	"github.com/pageplane/pageplane/internal/protocol"
)

// CommandTimeout bounds how long a transmitted command may stay
// unacknowledged.
const CommandTimeout = 30 * time.Second

type pendingEntry struct {
	timer   *time.Timer
	resolve func(protocol.Ack)
}

// pendingTable correlates commands to acknowledgments by id. Every
// entry resolves exactly once: first of inbound ack, transport failure,
// or timeout wins; later resolutions find no entry and are dropped.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
	timeout time.Duration
}

func newPendingTable(timeout time.Duration) *pendingTable {
	return &pendingTable{
		entries: make(map[string]*pendingEntry),
		timeout: timeout,
	}
}

// add records a pending command and arms its timeout.
func (t *pendingTable) add(cmd protocol.Command, resolve func(protocol.Ack)) {
	entry := &pendingEntry{resolve: resolve}
	entry.timer = time.AfterFunc(t.timeout, func() {
		ack := protocol.FailAck(cmd, "Command timeout")
		t.resolveID(cmd.CommandID, ack)
	})

	t.mu.Lock()
	t.entries[cmd.CommandID] = entry
	t.mu.Unlock()
}

// resolveID completes a pending command. Returns false when no entry
// exists (duplicate or late ack).
func (t *pendingTable) resolveID(commandID string, ack protocol.Ack) bool {
	t.mu.Lock()
	entry, ok := t.entries[commandID]
	if ok {
		delete(t.entries, commandID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	entry.timer.Stop()
	entry.resolve(ack)
	return true
}

// size reports the number of outstanding commands.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
