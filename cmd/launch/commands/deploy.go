package commands

import (
	"github.com/spf13/cobra"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/transition"
)

func newDeployCommand() *cobra.Command {
	var (
		projectPath  string
		deploymentID string
	)

	cmd := &cobra.Command{
		Use:   "deploy <project-id>",
		Short: "Deploy a built project (BUILT -> ONLINE)",
		Long: `Publish a completed build.

A deployment identifier is required; it travels through the transition
record and the run journal.`,
		Example: `  # Deploy to production with health checks
  launch deploy projet-alpha --deployment-id dep-42 --health-check

  # Deploy to staging without automatic rollback
  launch deploy projet-alpha --deployment-id dep-43 --environment staging --rollback-on-fail=false`,
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
				ProjectID:    projectID,
				ProjectPath:  projectPath,
				DeploymentID: deploymentID,
				Deploy: &lifecycle.DeployConfig{
					Environment:    stringFlag(cmd, "environment"),
					HealthCheck:    boolFlag(cmd, "health-check"),
					RollbackOnFail: boolFlag(cmd, "rollback-on-fail"),
				},
			}

			return rt.runTransition(ctx, transition.NewDeploy(), projectID, tc)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "project directory (default: <projectsRoot>/<project-id>)")
	cmd.Flags().StringVar(&deploymentID, "deployment-id", "", "deployment identifier")
	cmd.Flags().String("environment", "production", "deployment environment")
	cmd.Flags().Bool("health-check", true, "run health checks after deploy")
	cmd.Flags().Bool("rollback-on-fail", true, "roll back on failed health checks")
	cmd.MarkFlagRequired("deployment-id")

	return cmd
}
