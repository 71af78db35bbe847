package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raaihank/regex-relay/internal/hotkey"
	"github.com/raaihank/regex-relay/internal/store"
	"github.com/raaihank/regex-relay/internal/transport"
)

func newHotkeyCmd(opts *rootOpts) *cobra.Command {
	var pagePath string

	cmd := &cobra.Command{
		Use:   "hotkey COMMAND",
		Short: "Run the group bound to a hotkey command against an HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, repo, closeFn, err := opts.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			handler, err := newPageHotkeys(opts, repo, pagePath)
			if err != nil {
				return err
			}

			result, err := handler.Handle(cmd.Context(), args[0])
			if errors.Is(err, hotkey.ErrSkipped) {
				fmt.Fprintln(cmd.OutOrStdout(), "Skipped:", err)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "HTML page to rewrite in place")
	cmd.MarkFlagRequired("page")

	return cmd
}

// newPageHotkeys wires a hotkey handler to a local page through the same
// dispatcher the server uses for connected agents
func newPageHotkeys(opts *rootOpts, repo *store.Repository, pagePath string) (*hotkey.Handler, error) {
	page, err := transport.NewLocalTarget(pagePath, opts.logger.WithComponent("page"))
	if err != nil {
		return nil, err
	}

	dispatcher := transport.NewDispatcher(page, transport.Config{
		Timeout:       opts.config.Transport.Timeout,
		AttachTimeout: opts.config.Transport.AttachTimeout,
	}, opts.logger.WithComponent("transport"))

	return hotkey.NewHandler(repo, dispatcher, opts.logger), nil
}
