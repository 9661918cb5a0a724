package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/devlocal-io/devserve/cmd/devserve/commands"
	"github.com/devlocal-io/devserve/internal/logging"
)

var (
	debugMode      bool
	structuredLogs bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "devserve",
		Short: "devserve - run your project's dev server without port fights",
		Long: `devserve starts a project's development server on its configured port,
resolving port conflicts along the way: cooperatively when the occupant is
another dev server, forcibly when it is not.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(debugMode, structuredLogs)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&structuredLogs, "structured-logs", false, "Enable structured JSON logging to stderr")

	rootCmd.AddCommand(
		commands.NewRunCommand(),
		commands.NewFreeCommand(),
		commands.NewInspectCommand(),
		commands.NewHistoryCommand(),
		commands.NewMCPCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
