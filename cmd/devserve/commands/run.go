package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlocal-io/devserve/internal/conflict"
	"github.com/devlocal-io/devserve/internal/dashboard"
	"github.com/devlocal-io/devserve/internal/history"
	"github.com/devlocal-io/devserve/internal/inspector"
	"github.com/devlocal-io/devserve/internal/orchestrator"
	"github.com/devlocal-io/devserve/internal/output"
	"github.com/devlocal-io/devserve/internal/runner"
)

var (
	runConfigPath    string
	runYes           bool
	runNoHistory     bool
	runDashboardPort int
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the project's dev server, resolving port conflicts",
		Long: `Starts the dev server configured in devserve.yaml. If the desired port is
busy, devserve negotiates with own-ecosystem occupants (prompting for a
decision) and forcibly reclaims the port from anything else.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject()
		},
	}

	cmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to devserve.yaml (default: search upward from cwd)")
	cmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Never prompt; conflicts with own-ecosystem servers use an alternative port")
	cmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run in the history database")
	cmd.Flags().IntVar(&runDashboardPort, "dashboard-port", 0, "Serve the status dashboard on this port (0 = disabled)")

	return cmd
}

func runProject() error {
	c, err := loadCore(runConfigPath)
	if err != nil {
		return err
	}

	var decisions conflict.DecisionProvider = promptProvider{}
	if runYes || !isInteractive() {
		decisions = conflict.AutoProvider{}
	}

	var store *history.Store
	if !runNoHistory {
		store, err = history.Open(c.project.Workspace)
		if err != nil {
			output.Warn("run history disabled: %v", err)
		} else {
			defer store.Close()
		}
	}

	events := runner.Events{
		OnOutput: func(line string, stderr bool) {
			stream := os.Stdout
			if stderr {
				stream = os.Stderr
			}
			fmt.Fprintf(stream, "%s%-12s%s %s\n", output.Gray, c.project.Name, output.Reset, line)
		},
		OnReady: func(port int) {
			output.Success("%s ready → %s", c.project.Name, output.URL(port))
		},
		OnError: func(err error) {
			output.Error("%v", err)
		},
	}

	orch := orchestrator.New(c.newResolver(decisions), c.runner, c.shutdown, store, events)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := orch.Start(ctx, c.project)
	if err != nil {
		var cancelled *conflict.UserCancelledError
		if errors.As(err, &cancelled) {
			output.Info("Start cancelled.")
			return nil
		}
		return err
	}

	output.Info("Starting %s (%s) on port %d, pid %d",
		c.project.Name, c.project.Framework, handle.Port(), handle.PID())

	if runDashboardPort > 0 {
		dash := dashboard.New(orch)
		if err := dash.Start(runDashboardPort); err != nil {
			output.Warn("dashboard disabled: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = dash.Shutdown(shutdownCtx)
			}()
		}
	}

	// Block until Ctrl-C or the child exits on its own.
	select {
	case <-ctx.Done():
		output.Info("Shutting down...")
	case <-handle.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := orch.Stop(stopCtx)
	if err != nil {
		return err
	}
	if result.Warning != nil {
		output.Warn("%v", result.Warning)
	}
	return nil
}

// isInteractive reports whether stdin looks like a terminal the user can
// answer prompts on.
func isInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// promptProvider asks the user on stdin how to handle an own-ecosystem
// conflict, in the spirit of a y/N shell prompt.
type promptProvider struct{}

func (promptProvider) AskConflict(_ context.Context, port int, occupant inspector.ProcessInfo) (conflict.Decision, error) {
	name := occupant.ProjectName
	if name == "" {
		name = occupant.Command
	}

	fmt.Printf("Port %d is in use by dev server %q (pid %d).\n", port, name, occupant.PID)
	fmt.Print("Use an [a]lternative port, [s]top the other project, or [c]ancel? (a/s/c): ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return conflict.Decision{}, fmt.Errorf("failed to read conflict decision: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case "a", "alt", "alternative", "":
		return conflict.Decision{Action: conflict.ActionUseAlternative}, nil
	case "s", "stop":
		return conflict.Decision{Action: conflict.ActionStopOther}, nil
	default:
		return conflict.Decision{Action: conflict.ActionCancel}, nil
	}
}
