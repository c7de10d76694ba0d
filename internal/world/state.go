package world

import (
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/perception"
	"github.com/pageplane/pageplane/internal/protocol"
)

// DeltaHistoryLimit bounds the per-tab delta history; the oldest entry
// is evicted once the limit is passed.
const DeltaHistoryLimit = 50

// TabState is the gateway-side record of one tab.
type TabState struct {
	TabID        int
	URL          string
	Viewport     protocol.Viewport
	UserAgent    string
	ConnectedAt  time.Time
	LastUpdate   time.Time
	Candidates   map[string]protocol.ActionCandidate
	DeltaHistory []protocol.Delta
}

// PointerState is the last reported pointer position. It is global
// rather than per tab; under multi-tab operation the last writer wins.
type PointerState struct {
	X       int
	Y       int
	Buttons int
	At      time.Time
}

// Store applies agent telemetry and answers lookups. All methods are
// safe for concurrent use; the gateway serializes frames per connection
// but status reads arrive from HTTP handlers on other goroutines.
type Store struct {
	mu       sync.RWMutex
	tabs     map[int]*TabState
	pointer  PointerState
	sanitize *bluemonday.Policy
	log      *zap.Logger
}

// NewStore creates an empty store.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		tabs:     make(map[int]*TabState),
		sanitize: bluemonday.StrictPolicy(),
		log:      log,
	}
}

// Hello creates or refreshes a tab. An existing tab keeps its
// connectedAt, candidates, and delta history.
func (s *Store) Hello(h protocol.Hello) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	tab, ok := s.tabs[h.TabID]
	if !ok {
		tab = &TabState{
			TabID:       h.TabID,
			ConnectedAt: now,
			Candidates:  make(map[string]protocol.ActionCandidate),
		}
		s.tabs[h.TabID] = tab
	}
	tab.URL = h.URL
	tab.Viewport = h.Viewport
	tab.UserAgent = h.UserAgent
	tab.LastUpdate = now
}

// Snapshot replaces a tab's candidate set wholesale and clears its delta
// history.
func (s *Store) Snapshot(snap protocol.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	tab, ok := s.tabs[snap.TabID]
	if !ok {
		tab = &TabState{TabID: snap.TabID, ConnectedAt: now}
		s.tabs[snap.TabID] = tab
	}
	tab.URL = snap.URL
	tab.Viewport = snap.Viewport
	tab.LastUpdate = now
	tab.DeltaHistory = nil
	tab.Candidates = make(map[string]protocol.ActionCandidate, len(snap.Candidates))
	for _, c := range snap.Candidates {
		c.Name = s.clean(c.Name)
		tab.Candidates[c.ID] = c
	}
}

// Delta applies an incremental update: removals, then inserts, then
// per-id merges. Deltas for unknown tabs are logged and dropped.
func (s *Store) Delta(d protocol.Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, ok := s.tabs[d.TabID]
	if !ok {
		s.log.Warn("delta for unknown tab", zap.Int("tabId", d.TabID))
		return
	}
	for _, id := range d.Removed {
		delete(tab.Candidates, id)
	}
	for _, c := range d.Added {
		c.Name = s.clean(c.Name)
		tab.Candidates[c.ID] = c
	}
	for _, u := range d.Updated {
		if u.ID == "" {
			continue
		}
		c, ok := tab.Candidates[u.ID]
		if !ok {
			continue
		}
		if u.Name != nil {
			cleaned := s.clean(*u.Name)
			u.Name = &cleaned
		}
		u.Apply(&c)
		tab.Candidates[u.ID] = c
	}

	tab.LastUpdate = time.Now()
	tab.DeltaHistory = append(tab.DeltaHistory, d)
	if len(tab.DeltaHistory) > DeltaHistoryLimit {
		tab.DeltaHistory = tab.DeltaHistory[len(tab.DeltaHistory)-DeltaHistoryLimit:]
	}
}

// Disconnect erases a tab entirely.
func (s *Store) Disconnect(tabID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tabs, tabID)
}

// UpdatePointer records the last pointer report.
func (s *Store) UpdatePointer(p protocol.Pointer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointer = PointerState{X: p.X, Y: p.Y, Buttons: p.Buttons, At: time.Now()}
}

// Pointer returns the last pointer report.
func (s *Store) Pointer() PointerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pointer
}

// Tab returns a copy of one tab's state, false when unknown.
func (s *Store) Tab(tabID int) (TabState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tab, ok := s.tabs[tabID]
	if !ok {
		return TabState{}, false
	}
	return copyTab(tab), true
}

// URL returns a tab's current url, empty when unknown.
func (s *Store) URL(tabID int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tab, ok := s.tabs[tabID]; ok {
		return tab.URL
	}
	return ""
}

// CandidateName returns the name of one candidate in a tab, false when
// either the tab or the candidate is unknown.
func (s *Store) CandidateName(tabID int, id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tab, ok := s.tabs[tabID]
	if !ok {
		return "", false
	}
	c, ok := tab.Candidates[id]
	if !ok {
		return "", false
	}
	return c.Name, true
}

// Candidates returns a copy of a tab's candidate list.
func (s *Store) Candidates(tabID int) []protocol.ActionCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tab, ok := s.tabs[tabID]
	if !ok {
		return nil
	}
	out := make([]protocol.ActionCandidate, 0, len(tab.Candidates))
	for _, c := range tab.Candidates {
		out = append(out, c)
	}
	return out
}

// Search runs the shared candidate-search semantics over a tab.
func (s *Store) Search(tabID int, query string, filters *protocol.SearchFilters) []protocol.ActionCandidate {
	return perception.Search(s.Candidates(tabID), query, filters)
}

// Summaries lists every tab for list_tabs and the status surface.
func (s *Store) Summaries() []protocol.TabSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.TabSummary, 0, len(s.tabs))
	for _, tab := range s.tabs {
		out = append(out, protocol.TabSummary{
			TabID:          tab.TabID,
			URL:            tab.URL,
			CandidateCount: len(tab.Candidates),
			Viewport:       tab.Viewport,
			LastUpdate:     tab.LastUpdate.UnixMilli(),
		})
	}
	return out
}

func (s *Store) clean(name string) string {
	return s.sanitize.Sanitize(name)
}

func copyTab(tab *TabState) TabState {
	out := *tab
	out.Candidates = make(map[string]protocol.ActionCandidate, len(tab.Candidates))
	for id, c := range tab.Candidates {
		out.Candidates[id] = c
	}
	out.DeltaHistory = append([]protocol.Delta(nil), tab.DeltaHistory...)
	return out
}
