package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pageplane/pageplane/internal/controller"
	"github.com/pageplane/pageplane/internal/logging"
	"github.com/pageplane/pageplane/internal/protocol"
)

var (
	gatewayWS   string
	gatewayHTTP string
	tabID       int
)

func dial(ctx context.Context) (*controller.Client, error) {
	return controller.Dial(ctx, gatewayWS, logging.NewDefault())
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	root := &cobra.Command{
		Use:   "planectl",
		Short: "One-shot controller operations against the gateway",
	}
	root.PersistentFlags().StringVar(&gatewayWS, "gateway", "ws://127.0.0.1:9333/ws", "gateway controller endpoint")
	root.PersistentFlags().StringVar(&gatewayHTTP, "gateway-http", "http://127.0.0.1:9333", "gateway HTTP base url")
	root.PersistentFlags().IntVar(&tabID, "tab", 1, "target tab id")

	root.AddCommand(
		tabsCmd(),
		statusCmd(),
		queryCmd(),
		clickCmd(),
		typeCmd(),
		navigateCmd(),
		watchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tabsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List connected tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			tabs, err := client.ListTabs(ctx)
			if err != nil {
				return err
			}
			return printJSON(tabs)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the gateway status surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := controller.NewStatusClient(gatewayHTTP).Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	}
}

func queryCmd() *cobra.Command {
	var role, tag string
	cmd := &cobra.Command{
		Use:   "query <search>",
		Short: "Search a tab's candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			filters := &protocol.SearchFilters{Role: role, Tag: tag}
			matches, err := client.Query(ctx, tabID, args[0], filters)
			if err != nil {
				return err
			}
			return printJSON(matches)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by ARIA role")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by element tag")
	return cmd
}

func clickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "click <search-or-id>",
		Short: "Click the best-matching candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			ack, err := client.FindAndClick(ctx, tabID, args[0])
			if err != nil {
				return err
			}
			return printJSON(ack)
		},
	}
}

func typeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "type <search> <text>",
		Short: "Type into the best-matching candidate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			ack, err := client.FindAndType(ctx, tabID, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(ack)
		},
	}
}

func navigateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <url>",
		Short: "Navigate the browser through the debugging collaborator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			result, err := client.Navigate(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func watchCmd() *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream telemetry for the target tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Subscribe(ctx, tabID); err != nil {
				return err
			}
			deadline := time.After(duration)
			for {
				select {
				case frame := <-client.Events():
					fmt.Println(string(frame))
				case <-deadline:
					return nil
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().DurationVar(&duration, "for", time.Minute, "how long to watch")
	return cmd
}
