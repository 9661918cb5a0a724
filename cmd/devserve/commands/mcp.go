package commands

import (
	"github.com/spf13/cobra"

	"github.com/devlocal-io/devserve/internal/conflict"
	"github.com/devlocal-io/devserve/internal/mcpserver"
	"github.com/devlocal-io/devserve/internal/orchestrator"
	"github.com/devlocal-io/devserve/internal/runner"
)

var mcpConfigPath string

// NewMCPCommand creates the mcp command, which serves devserve operations
// over the Model Context Protocol on stdio.
func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve devserve operations as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCore(mcpConfigPath)
			if err != nil {
				return err
			}

			// Headless by definition: conflicts resolve without prompting.
			orch := orchestrator.New(
				c.newResolver(conflict.AutoProvider{}),
				c.runner, c.shutdown, nil, runner.Events{},
			)

			srv := mcpserver.New(Version, orch, c.project, c.inspector, c.classifier, c.shutdown)
			return srv.ServeStdio()
		},
	}

	cmd.Flags().StringVarP(&mcpConfigPath, "config", "c", "", "Path to devserve.yaml (default: search upward from cwd)")
	return cmd
}
