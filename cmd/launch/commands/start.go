package commands

import (
	"github.com/spf13/cobra"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/transition"
)

func newStartCommand() *cobra.Command {
	var (
		projectPath string
		services    []string
	)

	cmd := &cobra.Command{
		Use:   "start <project-id>",
		Short: "Bring a stopped deployment back up (OFFLINE -> ONLINE)",
		Example: `  # Start every service with a warm cache
  launch start projet-alpha --service web --service worker --warm-cache

  # Start on a specific port
  launch start projet-alpha --service web --warm-cache=false --port 8080`,
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
				Start: &lifecycle.StartConfig{
					Services:  services,
					WarmCache: boolFlag(cmd, "warm-cache"),
					Port:      intFlag(cmd, "port"),
				},
			}

			return rt.runTransition(ctx, transition.NewStart(), projectID, tc)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "project directory (default: <projectsRoot>/<project-id>)")
	cmd.Flags().StringSliceVar(&services, "service", nil, "services to start")
	cmd.Flags().Bool("warm-cache", true, "warm service caches on start")
	cmd.Flags().Int("port", 0, "serving port override")

	return cmd
}
