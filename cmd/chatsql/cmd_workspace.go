package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chatsql/internal/mcp"
	"github.com/felixgeelhaar/chatsql/internal/mockserver"
	"github.com/felixgeelhaar/chatsql/internal/tui"
	"github.com/felixgeelhaar/chatsql/internal/workspace"
)

func workspaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws", "ui"},
		Short:   "Open the interactive three-pane workspace",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			a.restoreSession(ctx)

			shell := workspace.New(a.client, a.events, workspace.Layout{
				SidebarOpen:   a.cfg.UI.SidebarOpen,
				AssistantOpen: a.cfg.UI.AssistantOpen,
			}, a.logger)
			return tui.Run(ctx, shell, tui.Options{WordWrap: a.cfg.UI.WordWrap})
		},
	}
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the exercise tools over the Model Context Protocol",
		Long: `Serve exercises, query execution, grading and the AI tutor as MCP tools.
Uses stdio unless --http is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			a.restoreSession(ctx)

			srv := mcp.NewServer(mcp.Config{
				Backend: a.client,
				Version: Version,
				Logger:  a.logger,
			})
			addr, _ := cmd.Flags().GetString("http")
			if addr != "" {
				a.logger.Info("serving MCP over HTTP", "addr", addr)
				return srv.ServeHTTP(ctx, addr)
			}
			return srv.ServeStdio(ctx)
		},
	}
	cmd.Flags().String("http", "", "Listen address for the HTTP transport, e.g. :8090")
	return cmd
}

func demoServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Run an in-memory backend with the demo exercises and accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			addr, _ := cmd.Flags().GetString("addr")

			srv, err := mockserver.New(mockserver.Config{Logger: a.logger})
			if err != nil {
				return fmt.Errorf("create demo server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving demo backend on %s (API at http://localhost%s/api)\n", addr, addr)
			for _, u := range mockserver.DefaultUsers() {
				fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render(fmt.Sprintf("  %s / %s (%s)", u.Username, u.Password, u.Role)))
			}
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", ":8000", "Listen address")
	return cmd
}
