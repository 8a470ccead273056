package main

import (
	"fmt"

	"github.com/nvandessel/gridrun/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve gridrun tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing:
  gridrun_plan     grid size, axes and filenames of a configuration
  gridrun_resolve  the parameter assignment and command of one index
  gridrun_runs     recorded runs from the ledger

Configuration documents are resolved against --root and must lie inside it.
Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			events := openEvents(settings)
			defer events.Close()

			server, err := mcp.NewServer(cmd.Context(), &mcp.Config{
				Name:     "gridrun",
				Version:  version,
				Root:     root,
				Settings: settings,
				Logger:   newLogger(cmd, settings),
				Events:   events,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().String("root", ".", "Directory configuration documents are resolved against")

	return cmd
}
