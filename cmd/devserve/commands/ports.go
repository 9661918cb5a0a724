package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlocal-io/devserve/internal/audit"
	"github.com/devlocal-io/devserve/internal/classifier"
	"github.com/devlocal-io/devserve/internal/inspector"
	"github.com/devlocal-io/devserve/internal/output"
	"github.com/devlocal-io/devserve/internal/portmanager"
	"github.com/devlocal-io/devserve/internal/runner"
)

// NewFreeCommand creates the free command: aggressive reclamation of a port
// without starting anything.
func NewFreeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "free <port>",
		Short: "Terminate every process bound to a port and verify it was released",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}

			if portmanager.IsAvailable(port) {
				output.Success("Port %d is already free", port)
				return nil
			}

			auditLog := audit.Open(".")
			coordinator := runner.NewCoordinator(inspector.New(nil), auditLog)

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			if err := coordinator.ReclaimPort(ctx, port, "devserve free invocation"); err != nil {
				output.Warn("%v", err)
				return nil
			}

			output.Success("Port %d freed", port)
			return nil
		},
	}
}

// NewInspectCommand creates the inspect command: identify a port occupant.
func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <port>",
		Short: "Show which process is bound to a port and how it classifies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}

			if portmanager.IsAvailable(port) {
				output.Info("Port %d is free", port)
				return nil
			}

			ins := inspector.New(nil)
			info, err := ins.Inspect(cmd.Context(), port)
			if err != nil {
				output.Info("Port %d is busy but its occupant could not be identified", port)
				return nil
			}

			info.OwnEcosystem = classifier.New(nil).Classify(*info)

			kind := "foreign process"
			if info.OwnEcosystem {
				kind = "own-ecosystem dev server"
			}

			output.Info("Port %d is held by %s:", port, kind)
			output.Item("pid:     %d", info.PID)
			output.Item("command: %s", info.CommandLine())
			if info.WorkspacePath != "" {
				output.Item("project: %s (%s)", info.ProjectName, info.WorkspacePath)
			}
			if !info.StartedAt.IsZero() {
				output.Item("started: %s", info.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// parsePort validates a port argument.
func parsePort(arg string) (int, error) {
	port, err := strconv.Atoi(arg)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q: must be an integer in 1-65535", arg)
	}
	return port, nil
}
