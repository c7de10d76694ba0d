package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pageplane/pageplane/internal/policy"
	"github.com/pageplane/pageplane/internal/protocol"
)

// GatewayStatus is the read-only status surface as served over HTTP.
type GatewayStatus struct {
	Agents      int                   `json:"agents"`
	Controllers int                   `json:"controllers"`
	Tabs        []protocol.TabSummary `json:"tabs"`
	Policy      policy.Config         `json:"policy"`
	RateCounts  map[string]int        `json:"rateCounts"`
	Pending     int                   `json:"pendingCommands"`
}

// StatusClient reads the gateway's HTTP surface without holding a
// websocket open.
type StatusClient struct {
	http *resty.Client
}

// NewStatusClient targets the gateway's HTTP base url
// (http://host:port).
func NewStatusClient(baseURL string) *StatusClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)
	return &StatusClient{http: client}
}

// Status fetches GET /status.
func (s *StatusClient) Status(ctx context.Context) (GatewayStatus, error) {
	var out GatewayStatus
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/status")
	if err != nil {
		return out, fmt.Errorf("gateway status: %w", err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("gateway status: %s", resp.Status())
	}
	return out, nil
}

// Tabs fetches GET /tabs.
func (s *StatusClient) Tabs(ctx context.Context) ([]protocol.TabSummary, error) {
	var out struct {
		Tabs []protocol.TabSummary `json:"tabs"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/tabs")
	if err != nil {
		return nil, fmt.Errorf("gateway tabs: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway tabs: %s", resp.Status())
	}
	return out.Tabs, nil
}

// SetPolicy posts a policy replacement.
func (s *StatusClient) SetPolicy(ctx context.Context, cfg policy.Config) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(cfg).
		Post("/policy")
	if err != nil {
		return fmt.Errorf("set policy: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("set policy: %s", resp.Status())
	}
	return nil
}
