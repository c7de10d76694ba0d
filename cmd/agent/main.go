package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pageplane/pageplane/internal/agent"
	"github.com/pageplane/pageplane/internal/cdp"
	"github.com/pageplane/pageplane/internal/config"
	"github.com/pageplane/pageplane/internal/dom"
	"github.com/pageplane/pageplane/internal/logging"
	"github.com/pageplane/pageplane/internal/protocol"
)

func main() {
	cfg := config.LoadOrDefault()

	root := &cobra.Command{
		Use:   "agent",
		Short: "Perception agent for one browser tab",
		Long:  "Mirrors a live page over CDP, runs the perception engine on it, and streams candidates to the gateway.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}
			defer logger.Sync()

			controlURL, err := cdp.Discover(cfg.Agent.RemoteDebugPort, 10*time.Second)
			if err != nil {
				return fmt.Errorf("browser not reachable: %w", err)
			}
			browser, err := cdp.Connect(controlURL)
			if err != nil {
				return err
			}
			defer browser.Close()

			page, err := browser.AttachPage(cfg.Agent.PageURL)
			if err != nil {
				return err
			}
			url, userAgent, err := browser.PageInfo(page)
			if err != nil {
				return err
			}

			doc := dom.NewDocument(protocol.Viewport{Width: 1280, Height: 720})
			mirror := agent.NewMirror(page, doc,
				time.Duration(cfg.Agent.MirrorPollMillis)*time.Millisecond,
				logger.Named("mirror"))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Prime the surface before perception starts so the first
			// snapshot is not empty.
			if err := mirror.Sync(ctx); err != nil {
				logger.Warn("initial mirror sync failed", zap.Error(err))
			}

			transport := agent.NewTransport(agent.TransportConfig{
				URL:               cfg.Agent.GatewayURL,
				TabID:             cfg.Agent.TabID,
				ReconnectInterval: time.Duration(cfg.Agent.ReconnectSeconds) * time.Second,
				MaxReconnects:     cfg.Agent.MaxReconnects,
				HeartbeatInterval: time.Duration(cfg.Agent.HeartbeatSeconds) * time.Second,
				QueueLimit:        cfg.Agent.QueueLimit,
			}, logger.Named("transport"))

			a := agent.New(doc, url, userAgent, transport, logger)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.Run(ctx) })
			g.Go(func() error { return mirror.Run(ctx) })
			return g.Wait()
		},
	}

	root.Flags().StringVar(&cfg.Agent.GatewayURL, "gateway", cfg.Agent.GatewayURL, "gateway agent endpoint")
	root.Flags().IntVar(&cfg.Agent.TabID, "tab", cfg.Agent.TabID, "tab id to report")
	root.Flags().IntVar(&cfg.Agent.RemoteDebugPort, "debug-port", cfg.Agent.RemoteDebugPort, "browser remote debugging port")
	root.Flags().StringVar(&cfg.Agent.PageURL, "url", cfg.Agent.PageURL, "navigate to this url before attaching")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
