package main

import (
	"github.com/spf13/cobra"

	"github.com/raaihank/regex-relay/internal/agent"
	"github.com/raaihank/regex-relay/internal/transport"
)

func newAgentCmd(opts *rootOpts) *cobra.Command {
	var (
		pagePath string
		cfg      agent.Config
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve an HTML page to a relay server as a page agent",
		Long: `Agent connects to a relay server's websocket endpoint and answers its
run requests against a local HTML page. The page file is rewritten after
every run that changes it and reloaded when the server re-attaches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := transport.NewLocalTarget(pagePath, opts.logger.WithComponent("page"))
			if err != nil {
				return err
			}

			if cfg.Username == "" && cfg.Password == "" {
				cfg.Username = opts.config.WebSocket.Username
				cfg.Password = opts.config.WebSocket.Password
			}
			if cfg.Tab == "" {
				cfg.Tab = pagePath
			}

			return agent.NewClient(cfg, page, opts.logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "HTML page to serve")
	cmd.Flags().StringVar(&cfg.ServerURL, "server", "ws://localhost:8080/ws", "relay server websocket URL")
	cmd.Flags().StringVar(&cfg.Tab, "tab", "", "agent id reported to the server (defaults to the page path)")
	cmd.Flags().StringVar(&cfg.Username, "user", "", "basic auth user (defaults to websocket.username)")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "basic auth password (defaults to websocket.password)")
	cmd.MarkFlagRequired("page")

	return cmd
}
