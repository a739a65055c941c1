package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "launch",
		Short: "OpenLaunch - Project Lifecycle Engine",
		Long: `OpenLaunch drives projects through their lifecycle states:
DRAFT -> BUILT -> ONLINE -> OFFLINE.

Every transition runs the same workflow: evidence detection, validation,
filesystem pre-checks, the state change itself, postcondition verification,
and cleanup. Failures are classified into recovery strategies and every run
is journaled for audit.

State is never stored centrally; it is inferred from evidence files in the
project directory on every call.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newSaveCommand())
	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newStartCommand())
	rootCmd.AddCommand(newStopCommand())
	rootCmd.AddCommand(newEditCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
