package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pageplane/pageplane/internal/cdp"
	"github.com/pageplane/pageplane/internal/config"
	"github.com/pageplane/pageplane/internal/gateway"
	"github.com/pageplane/pageplane/internal/logging"
	"github.com/pageplane/pageplane/internal/policy"
)

func main() {
	cfg := config.LoadOrDefault()

	var (
		policyFile string
		attachCDP  bool
	)

	root := &cobra.Command{
		Use:   "gateway",
		Short: "Browser perception gateway",
		Long:  "Aggregates agent telemetry into per-tab world state and routes controller commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}
			defer logger.Sync()

			pol := policy.DefaultConfig()
			if policyFile == "" {
				policyFile = cfg.Gateway.PolicyFile
			}
			if policyFile != "" {
				pol, err = policy.LoadFile(policyFile)
				if err != nil {
					return err
				}
				logger.Info("policy loaded", zap.String("file", policyFile))
			}

			var client cdp.Client = cdp.Disconnected{}
			if attachCDP {
				client = cdp.Attach(cfg.Gateway.RemoteDebugPort, 10*time.Second)
				logger.Info("remote debugging",
					zap.Int("port", cfg.Gateway.RemoteDebugPort),
					zap.Bool("connected", client.Status().Connected))
			}

			srv := gateway.NewServer(cfg.Gateway, logger, gateway.Options{
				Policy: pol,
				CDP:    client,
			})
			defer srv.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(ctx) })
			return g.Wait()
		},
	}

	root.Flags().IntVar(&cfg.Gateway.Port, "port", cfg.Gateway.Port, "listen port")
	root.Flags().StringVar(&cfg.Gateway.Host, "host", cfg.Gateway.Host, "listen host")
	root.Flags().IntVar(&cfg.Gateway.RemoteDebugPort, "debug-port", cfg.Gateway.RemoteDebugPort, "browser remote debugging port")
	root.Flags().StringVar(&policyFile, "policy", "", "policy TOML file")
	root.Flags().BoolVar(&attachCDP, "cdp", true, "attach to the browser's remote debugging port")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
