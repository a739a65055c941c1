package commands

import (
	"github.com/spf13/cobra"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/transition"
)

func newStopCommand() *cobra.Command {
	var (
		projectPath string
		services    []string
	)

	cmd := &cobra.Command{
		Use:   "stop <project-id>",
		Short: "Take a serving project down (ONLINE -> OFFLINE)",
		Long: `Stop a serving project.

The graceful, timeout, and drain-connections settings are required by the
stop contract; passing --graceful=false is a valid explicit choice and is
distinct from omitting the flag.`,
		Example: `  # Graceful stop with connection draining
  launch stop projet-alpha --graceful --timeout 30 --drain

  # Immediate stop
  launch stop projet-alpha --graceful=false --timeout 0 --drain=false --reason incident`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID := args[0]

			rt, err := newRuntime(ctx, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			if projectPath == "" {
				projectPath = rt.projectPath(projectID)
			}

			tc := &lifecycle.TransitionContext{
				ProjectID:   projectID,
				ProjectPath: projectPath,
				Stop: &lifecycle.StopConfig{
					Graceful:         boolFlag(cmd, "graceful"),
					Timeout:          intFlag(cmd, "timeout"),
					DrainConnections: boolFlag(cmd, "drain"),
					Reason:           stringFlag(cmd, "reason"),
					Services:         services,
				},
			}

			return rt.runTransition(ctx, transition.NewStop(), projectID, tc)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "project directory (default: <projectsRoot>/<project-id>)")
	cmd.Flags().Bool("graceful", true, "drain work before stopping")
	cmd.Flags().Int("timeout", 30, "shutdown timeout in seconds")
	cmd.Flags().Bool("drain", true, "drain open connections")
	cmd.Flags().String("reason", "", "stop reason (default: manual)")
	cmd.Flags().StringSliceVar(&services, "service", nil, "services being stopped")

	return cmd
}
