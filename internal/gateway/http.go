package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageplane/pageplane/internal/policy"
	"github.com/pageplane/pageplane/internal/protocol"
)

type statusResponse struct {
	Agents      int                   `json:"agents"`
	Controllers int                   `json:"controllers"`
	Tabs        []protocol.TabSummary `json:"tabs"`
	Policy      policy.Config         `json:"policy"`
	RateCounts  map[string]int        `json:"rateCounts"`
	Pending     int                   `json:"pendingCommands"`
	Pointer     map[string]int        `json:"pointer"`
	CDP         any                   `json:"cdp"`
	Type        string                `json:"type,omitempty"`
}

func (s *Server) statusPayload() statusResponse {
	perSec, perMin := s.guard.RateCounts()
	ptr := s.store.Pointer()
	return statusResponse{
		Type:        protocol.TypeCDPStatus,
		Agents:      s.agents.count(),
		Controllers: s.hub.count(),
		Tabs:        s.store.Summaries(),
		Policy:      s.guard.Config(),
		RateCounts:  map[string]int{"perSecond": perSec, "perMinute": perMin},
		Pending:     s.pending.size(),
		Pointer:     map[string]int{"x": ptr.X, "y": ptr.Y, "buttons": ptr.Buttons},
		CDP:         s.cdp.Status(),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := s.statusPayload()
	resp.Type = ""
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tabs": s.store.Summaries()})
}

func tabParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tab id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleCandidates(c *gin.Context) {
	tabID, ok := tabParam(c)
	if !ok {
		return
	}
	if _, exists := s.store.Tab(tabID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tab"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tabId":      tabID,
		"candidates": s.store.Candidates(tabID),
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	tabID, ok := tabParam(c)
	if !ok {
		return
	}
	filters := &protocol.SearchFilters{
		Role: c.Query("role"),
		Tag:  c.Query("tag"),
	}
	matches := s.store.Search(tabID, c.Query("q"), filters)
	c.JSON(http.StatusOK, gin.H{"tabId": tabID, "matches": matches})
}

// handleCommand is the HTTP equivalent of a controller act request: it
// runs the full pipeline and blocks for the single resolution.
func (s *Server) handleCommand(c *gin.Context) {
	var cmd protocol.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed command: " + err.Error()})
		return
	}

	ackCh := make(chan protocol.Ack, 1)
	s.dispatch(cmd, "", func(ack protocol.Ack) { ackCh <- ack })

	select {
	case ack := <-ackCh:
		c.JSON(http.StatusOK, ack)
	case <-time.After(CommandTimeout + time.Second):
		// The pending table always resolves inside the window; this is
		// a second-level backstop for the HTTP path only.
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "command did not resolve"})
	}
}

func (s *Server) handleGetPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, s.guard.Config())
}

func (s *Server) handleSetPolicy(c *gin.Context) {
	cfg := s.guard.Config()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed policy: " + err.Error()})
		return
	}
	if err := s.guard.SetConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.guard.Config())
}
