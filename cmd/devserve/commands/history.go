package commands

import (
	"github.com/spf13/cobra"

	"github.com/devlocal-io/devserve/internal/history"
	"github.com/devlocal-io/devserve/internal/output"
)

var historyLimit int

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent dev server runs for this project",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCore(runConfigPath)
			if err != nil {
				return err
			}

			store, err := history.Open(c.project.Workspace)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(historyLimit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				output.Info("No recorded runs for %s", c.project.Name)
				return nil
			}

			for _, run := range runs {
				outcome := run.Outcome
				if outcome == "" {
					outcome = "running"
				}
				output.Item("%s  %-10s port %-5d pid %-7d %s",
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					outcome, run.Port, run.PID, run.Project)
				if run.Warning != "" {
					output.Item("  warning: %s", run.Warning)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Path to devserve.yaml (default: search upward from cwd)")
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}
